package cli

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pixi-outdated/internal/adapters"
	"pixi-outdated/internal/app"
	"pixi-outdated/internal/ports"
)

const defaultManifest = "pixi.toml"

type workspaceOptions struct {
	Manifest    string
	Environment string
}

type outdatedOptions struct {
	Explicit     bool
	JSON         bool
	Verbose      bool
	Platforms    []string
	Timeout      time.Duration
	Workers      int
	PyPIURL      string
	ChannelAlias string
	NoProgress   bool
}

// workspaceFlags are persistent and shared with subcommands.
var workspaceFlags workspaceOptions

// newAppService is replaced in tests.
var newAppService = func(cfg app.RegistryConfig) app.Service {
	return app.NewService(cfg)
}

func bindWorkspaceFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&workspaceFlags.Manifest, "manifest", "f", defaultManifest, "Path to pixi.toml, pyproject.toml or the workspace directory")
	cmd.PersistentFlags().StringVar(&workspaceFlags.Environment, "environment", "", "Environment to check (default environment when empty)")
	_ = viper.BindPFlag("manifest", cmd.PersistentFlags().Lookup("manifest"))
	_ = viper.BindPFlag("environment", cmd.PersistentFlags().Lookup("environment"))
}

func bindOutdatedFlags(cmd *cobra.Command, opts *outdatedOptions) {
	cmd.Flags().BoolVarP(&opts.Explicit, "explicit", "e", false, "Only check packages declared in the manifest")
	cmd.Flags().BoolVarP(&opts.JSON, "json", "j", false, "Print the report as JSON")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Print run options and lookup statistics")
	cmd.Flags().StringSliceVar(&opts.Platforms, "platform", nil, "Platform to check (repeatable, default all locked platforms)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 60*time.Second, "Time budget for all registry lookups")
	cmd.Flags().IntVar(&opts.Workers, "workers", 8, "Concurrent registry lookups")
	cmd.Flags().StringVar(&opts.PyPIURL, "pypi-url", adapters.DefaultPyPIURL, "PyPI base URL")
	cmd.Flags().StringVar(&opts.ChannelAlias, "channel-alias", adapters.DefaultChannelAlias, "Base URL for bare conda channel names")
	cmd.Flags().BoolVar(&opts.NoProgress, "no-progress", false, "Disable the progress line")

	_ = viper.BindPFlag("explicit", cmd.Flags().Lookup("explicit"))
	_ = viper.BindPFlag("json", cmd.Flags().Lookup("json"))
	_ = viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
	_ = viper.BindPFlag("platforms", cmd.Flags().Lookup("platform"))
	_ = viper.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("pypi_url", cmd.Flags().Lookup("pypi-url"))
	_ = viper.BindPFlag("channel_alias", cmd.Flags().Lookup("channel-alias"))
	_ = viper.BindPFlag("no_progress", cmd.Flags().Lookup("no-progress"))
}

func runOutdated(cmd *cobra.Command, args []string, opts outdatedOptions) error {
	req := app.OutdatedRequest{
		ManifestPath: resolve(cmd, workspaceFlags.Manifest, "manifest", "manifest", viper.GetString),
		Environment:  resolve(cmd, workspaceFlags.Environment, "environment", "environment", viper.GetString),
		Platforms:    resolve(cmd, opts.Platforms, "platforms", "platform", viper.GetStringSlice),
		PackageNames: args,
		ExplicitOnly: resolve(cmd, opts.Explicit, "explicit", "explicit", viper.GetBool),
		Timeout:      resolve(cmd, opts.Timeout, "timeout", "timeout", viper.GetDuration),
		Workers:      resolve(cmd, opts.Workers, "workers", "workers", viper.GetInt),
	}
	asJSON := resolve(cmd, opts.JSON, "json", "json", viper.GetBool)
	registry := app.RegistryConfig{
		ChannelAlias: resolve(cmd, opts.ChannelAlias, "channel_alias", "channel-alias", viper.GetString),
		PyPIURL:      resolve(cmd, opts.PyPIURL, "pypi_url", "pypi-url", viper.GetString),
		TimeoutSec:   int(req.Timeout / time.Second),
	}
	log.Debug().
		Str("manifest", req.ManifestPath).
		Str("environment", req.Environment).
		Strs("platforms", req.Platforms).
		Strs("packages", req.PackageNames).
		Bool("explicit", req.ExplicitOnly).
		Bool("json", asJSON).
		Dur("timeout", req.Timeout).
		Int("workers", req.Workers).
		Str("pypi_url", registry.PyPIURL).
		Str("channel_alias", registry.ChannelAlias).
		Msg("run options")

	service := newAppService(registry)
	noProgress := resolve(cmd, opts.NoProgress, "no_progress", "no-progress", viper.GetBool)
	service.Progress = newProgress(cmd.ErrOrStderr(), !noProgress)

	result, err := service.Outdated(cmd.Context(), req)
	if err != nil {
		return err
	}
	log.Debug().
		Int("packages", result.Stats.Packages).
		Int("identities", result.Stats.Identities).
		Int("conda_batches", result.Stats.CondaBatches).
		Int("pypi_queries", result.Stats.PyPIQueries).
		Int("failures", result.Stats.Failures).
		Msg("lookup statistics")

	var writer ports.ReportWriterPort = adapters.NewTextReportWriter(cmd.OutOrStdout())
	if asJSON {
		writer = adapters.NewJSONReportWriter(cmd.OutOrStdout())
	}
	if err := writer.Write(result.Report); err != nil {
		return err
	}
	if result.Report.HasUpdates() {
		return errUpdatesFound
	}
	return nil
}

// newProgress only draws on an interactive terminal.
func newProgress(out io.Writer, enabled bool) *adapters.LookupProgress {
	if enabled {
		file, ok := out.(*os.File)
		enabled = ok && (isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd()))
	}
	return adapters.NewLookupProgress(out, "Checking versions", enabled)
}
