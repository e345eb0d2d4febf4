// Package cli implements the bugreport command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pion/logging"
	"github.com/spf13/cobra"

	"github.com/thesyncim/bugreport/pkg/config"
	"github.com/thesyncim/bugreport/pkg/fixture"
	"github.com/thesyncim/bugreport/pkg/suite"
)

// Version is set at build time via ldflags
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	NoColor    bool
}

// NewRootCommand creates the root command for the bugreport CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bugreport",
		Short: "Reproduce framework bugs against throwaway fixture apps",
		Long: `bugreport builds a small fixture app from a set of files, serves it and
drives it with headless Chrome, so a bug can be shown as a failing case.

A suite file (YAML) holds the files plus the cases to check; a directory
with app/ and public/ trees can be built or served directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.LogLevel == "" {
				return nil
			}
			if _, err := config.ParseLevel(opts.LogLevel); err != nil {
				return NewExitError(ExitCommandError, err.Error())
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultFile, "path to config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (disabled|error|warn|info|debug|trace), overrides config")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	cmd.Version = Version
	cmd.SetVersionTemplate("bugreport {{.Version}}\n")

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// loadConfig reads the config file and applies flag overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

func loggerFactory(cfg *config.Config, w io.Writer) logging.LoggerFactory {
	f, err := cfg.LoggerFactory(w)
	if err != nil {
		// Validate already checked the level.
		return logging.NewDefaultLoggerFactory()
	}
	return f
}

// loadFiles reads a file set from a suite file or an app directory.
func loadFiles(path string) (fixture.FileSet, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "failed to read input", err)
	}
	if info.IsDir() {
		files, err := fixture.ReadDir(path)
		if err != nil {
			return nil, "", WrapExitError(ExitCommandError, "failed to read app directory", err)
		}
		if len(files) == 0 {
			return nil, "", NewExitError(ExitCommandError, fmt.Sprintf("%s has no app/ or public/ files", path))
		}
		return files, filepath.Base(path), nil
	}
	if !isSuiteFile(path) {
		return nil, "", NewExitError(ExitCommandError, fmt.Sprintf("%s is neither a directory nor a .yaml suite", path))
	}
	s, err := suite.Load(path)
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "failed to load suite", err)
	}
	return s.Files, s.Name, nil
}

func isSuiteFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
