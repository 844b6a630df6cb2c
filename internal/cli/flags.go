package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// resolve picks the value for one option. A flag set on the command line
// wins, then config file and PIXI_OUTDATED_* environment values, then the
// flag default. Without a command only config and env can override value.
func resolve[T any](cmd *cobra.Command, value T, key string, flagName string, fromConfig func(string) T) T {
	if flagChanged(cmd, flagName) {
		return value
	}
	if cmd == nil && !viper.IsSet(key) {
		return value
	}
	return fromConfig(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	flag := cmd.Flag(name)
	return flag != nil && flag.Changed
}
