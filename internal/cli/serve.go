package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thesyncim/bugreport/pkg/appserver"
	"github.com/thesyncim/bugreport/pkg/fixture"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// OnReady is called with the base URL once the app is serving (for testing).
	OnReady func(baseURL string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}
	return newServeCommand(opts)
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <dir|suite.yaml>",
		Short: "Build a fixture and serve it until interrupted",
		Long: `Build a fixture and serve it as an App Instance so it can be opened in a
regular browser while investigating a bug. The fixture is removed on exit.

Example:
  bugreport serve ./testdata/usefetcher.yaml --addr :3000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", opts.Addr, "listen address, overrides config (e.g. :3000)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions, input string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	files, name, err := loadFiles(input)
	if err != nil {
		return err
	}
	lf := loggerFactory(cfg, cmd.ErrOrStderr())

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

	fx, err := fixture.Build(ctx, files, fixture.WithLoggerFactory(lf))
	if err != nil {
		return WrapExitError(ExitCommandError, "build failed", err)
	}

	srvCfg := appserver.Config{
		Addr:          cfg.Server.Addr,
		ReadTimeout:   cfg.Server.ReadTimeout.Duration,
		WriteTimeout:  cfg.Server.WriteTimeout.Duration,
		CloseFixture:  true,
		LoggerFactory: lf,
	}
	if opts.Addr != "" {
		srvCfg.Addr = opts.Addr
	}
	app, err := appserver.Create(fx, srvCfg)
	if err != nil {
		fx.Close()
		return WrapExitError(ExitCommandError, "failed to start app", err)
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Serving %s at %s\n", name, app.BaseURL())
	for _, r := range fx.Routes() {
		fmt.Fprintf(out, "  %s%s  (%s)\n", app.BaseURL(), r.Path, r.ID)
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop")
	if opts.OnReady != nil {
		opts.OnReady(app.BaseURL())
	}

	<-ctx.Done()
	fmt.Fprintln(out, "Shutting down")
	return nil
}
