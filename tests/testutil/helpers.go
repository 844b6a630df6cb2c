// Package testutil provides shared test helpers used across integration,
// e2e, and unit test packages.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// RepoRoot returns the absolute path to the repository root by walking
// up from the current working directory. It fails the test if the
// working directory cannot be determined.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}

// PixiListRunner stands in for the pixi binary. It answers `pixi list`
// with the JSON listing registered for the requested --platform.
func PixiListRunner(listings map[string]string) func(context.Context, string, ...string) ([]byte, []byte, error) {
	return func(ctx context.Context, _ string, args ...string) ([]byte, []byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for i, arg := range args {
			if arg == "--platform" && i+1 < len(args) {
				if listing, ok := listings[args[i+1]]; ok {
					return []byte(listing), nil, nil
				}
			}
		}
		return []byte("[]"), nil, nil
	}
}
