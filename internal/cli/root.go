package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pixi-outdated/internal/shared"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "PIXI_OUTDATED"

const (
	exitOK            = 0
	exitUpdatesFound  = 1
	exitConfigError   = 2
	exitCatalogError  = 3
	exitInternalError = 4
)

// errUpdatesFound signals a successful run that found outdated packages.
var errUpdatesFound = errors.New("updates found")

type RootConfig struct {
	ConfigFile string
	LogLevel   string
}

func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errUpdatesFound) {
		return exitUpdatesFound
	}
	fmt.Fprintf(stderr, "Error: %s\n", describeError(err))
	return exitCodeForError(err)
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	opts := outdatedOptions{}
	cmd := &cobra.Command{
		Use:   "pixi-outdated [PACKAGE...]",
		Short: "Report outdated packages of a pixi workspace across platforms",
		Long: "Lists packages of a pixi environment that have newer releases, querying each\n" +
			"conda channel and PyPI name once for all locked platforms and grouping updates\n" +
			"shared by every platform under \"All Platforms\".",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			level := viper.GetString("log_level")
			if resolve(cmd, opts.Verbose, "verbose", "verbose", viper.GetBool) {
				level = "debug"
			}
			setupLogging(cmd.ErrOrStderr(), level)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutdated(cmd, args, opts)
		},
	}
	cmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	bindWorkspaceFlags(cmd)
	bindOutdatedFlags(cmd, &opts)

	cmd.AddCommand(newPlatformsCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("pixi-outdated")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/pixi-outdated")
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	return nil
}

// setupLogging sends logs to stderr; stdout carries the report.
func setupLogging(out io.Writer, level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func exitCodeForError(err error) int {
	if errors.Is(err, errUpdatesFound) {
		return exitUpdatesFound
	}
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeNotFound, errbuilder.CodeAlreadyExists:
		return exitConfigError
	case errbuilder.CodeFailedPrecondition, errbuilder.CodePermissionDenied:
		return exitCatalogError
	default:
		return exitInternalError
	}
}

// describeError appends the underlying cause chain to the coded message.
func describeError(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) {
		return shared.DescribeError(builder)
	}
	return err.Error()
}
