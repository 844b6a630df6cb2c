package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pixi-outdated/internal/app"
)

func newPlatformsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List the locked platforms of an environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlatforms(cmd)
		},
	}
}

func runPlatforms(cmd *cobra.Command) error {
	service := newAppService(app.RegistryConfig{})
	result, err := service.Platforms(cmd.Context(), app.PlatformsRequest{
		ManifestPath: resolve(cmd, workspaceFlags.Manifest, "manifest", "manifest", viper.GetString),
		Environment:  resolve(cmd, workspaceFlags.Environment, "environment", "environment", viper.GetString),
	})
	if err != nil {
		return err
	}
	for _, platform := range result.Platforms {
		fmt.Fprintln(cmd.OutOrStdout(), platform)
	}
	return nil
}
