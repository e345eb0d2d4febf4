package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thesyncim/bugreport/pkg/fixture"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Keep bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <dir|suite.yaml>",
		Short: "Build a fixture and print its manifest",
		Long: `Build a fixture from an app directory or a suite file and print the
route manifest. Route modules that fail to compile are reported with their
path.

Example:
  bugreport build ./testdata/usefetcher.yaml
  bugreport build ./myapp --keep`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Keep, "keep", false, "keep the built fixture directory and print its path")

	return cmd
}

func runBuild(cmd *cobra.Command, opts *BuildOptions, input string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	files, _, err := loadFiles(input)
	if err != nil {
		return err
	}

	fx, err := fixture.Build(cmd.Context(), files, fixture.WithLoggerFactory(loggerFactory(cfg, cmd.ErrOrStderr())))
	if err != nil {
		return WrapExitError(ExitCommandError, "build failed", err)
	}
	if opts.Keep {
		fmt.Fprintf(cmd.ErrOrStderr(), "fixture %s kept at %s\n", fx.ID, fx.Dir)
	} else {
		defer fx.Close()
	}

	data, err := json.MarshalIndent(fx.Manifest(), "", "  ")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode manifest", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
