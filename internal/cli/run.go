package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thesyncim/bugreport/pkg/appserver"
	"github.com/thesyncim/bugreport/pkg/browser"
	"github.com/thesyncim/bugreport/pkg/driver"
	"github.com/thesyncim/bugreport/pkg/suite"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filters suite.RegexFilters
	Headful bool
	Verbose bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <suite.yaml>",
		Short: "Run a bug report suite in headless Chrome",
		Long: `Build the suite's fixture once, serve it, and check every case in a fresh
browser page. Cases marked expect_failure document a known defect: they pass
while the defect is present and fail once it is fixed.

Exit codes:
  0  every case behaved as expected
  1  a case failed or unexpectedly passed
  2  the suite could not be loaded, built or run

Example:
  bugreport run ./testdata/usefetcher.yaml
  bugreport run ./testdata/usefetcher.yaml --run '^fetch' --skip slow`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, opts, args[0])
		},
	}

	cmd.Flags().Var(&opts.Filters.MustMatch, "run", "regex pattern(s) to select cases to run")
	cmd.Flags().Var(&opts.Filters.MustNotMatch, "skip", "regex pattern(s) to select cases not to run")
	cmd.Flags().BoolVar(&opts.Headful, "headful", false, "show the browser window, overrides config")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print console output of passing cases too")

	return cmd
}

func runSuite(cmd *cobra.Command, opts *RunOptions, path string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	s, err := suite.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load suite", err)
	}
	lf := loggerFactory(cfg, cmd.ErrOrStderr())
	out := cmd.OutOrStdout()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	bc := browser.Config{
		Headless:      cfg.Browser.Headless && !opts.Headful,
		Timeout:       cfg.Browser.Timeout.Duration,
		Bin:           cfg.Browser.Bin,
		LoggerFactory: lf,
	}
	client, err := browser.New(bc)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to launch browser", err)
	}
	defer client.Close()

	if desc := opts.Filters.Describe(); desc != "" {
		fmt.Fprintf(out, "Some cases will be skipped based on the filter criteria for this run:\n%s\n\n", desc)
	}
	fmt.Fprintf(out, "Running %s\n", s.Name)

	reporter := &suite.ConsoleReporter{Out: out, NoColor: opts.NoColor, Verbose: opts.Verbose}
	env := suite.Env{
		Pages: client,
		Server: appserver.Config{
			Addr:         cfg.Server.Addr,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
		},
		DriverOptions: []driver.Option{
			driver.WithNavigationTimeout(cfg.Driver.NavigationTimeout.Duration),
			driver.WithQueryTimeout(cfg.Driver.QueryTimeout.Duration),
		},
		LoggerFactory: lf,
		Logger:        reporter,
	}

	results, err := suite.Run(ctx, s, env, opts.Filters.AsFilter)
	if err != nil {
		return WrapExitError(ExitCommandError, "suite aborted", err)
	}

	fmt.Fprintln(out)
	reporter.PrintResults(results, rerunPrefix(cmd, path)...)
	if !results.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", len(results.Failures)))
	}
	return nil
}

// rerunPrefix is the command line that reruns this suite, without filters.
func rerunPrefix(cmd *cobra.Command, path string) []string {
	args := []string{cmd.Root().Name(), "run", path}
	if f := cmd.Flag("config"); f != nil && f.Changed {
		args = append(args, "--config", f.Value.String())
	}
	return args
}
