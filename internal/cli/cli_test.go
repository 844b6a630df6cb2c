package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixi-outdated/internal/adapters"
	"pixi-outdated/internal/app"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Contains(t, names, "platforms")
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestRootCommandFlags(t *testing.T) {
	root := newRootCommand()
	flags := []string{
		"explicit", "json", "verbose", "platform", "timeout",
		"workers", "pypi-url", "channel-alias", "no-progress",
	}
	for _, name := range flags {
		assert.NotNil(t, root.Flags().Lookup(name), "missing flag: %s", name)
	}
	for _, name := range []string{"config", "log-level", "manifest", "environment"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing persistent flag: %s", name)
	}
	for name, short := range map[string]string{"explicit": "e", "json": "j", "verbose": "v"} {
		assert.Equal(t, short, root.Flags().Lookup(name).Shorthand)
	}
	assert.Equal(t, "f", root.PersistentFlags().Lookup("manifest").Shorthand)
	assert.Equal(t, "pixi.toml", root.PersistentFlags().Lookup("manifest").DefValue)
}

// ---------- Helper function tests ----------

func TestResolveWithoutCommand(t *testing.T) {
	viper.Reset()
	assert.Equal(t, "explicit", resolve(nil, "explicit", "test_key", "test-flag", viper.GetString))
	assert.Equal(t, "", resolve(nil, "", "test_key", "test-flag", viper.GetString))
	assert.Equal(t, []string{"a", "b"}, resolve(nil, []string{"a", "b"}, "test_key", "test-flag", viper.GetStringSlice))
	assert.True(t, resolve(nil, true, "test_key", "test-flag", viper.GetBool))
	assert.Equal(t, 42, resolve(nil, 42, "test_key", "test-flag", viper.GetInt))
	assert.Equal(t, 3*time.Second, resolve(nil, 3*time.Second, "test_key", "test-flag", viper.GetDuration))

	viper.Set("test_key", "90s")
	assert.Equal(t, 90*time.Second, resolve(nil, 3*time.Second, "test_key", "test-flag", viper.GetDuration))
}

func TestResolvePrefersChangedFlagOverConfig(t *testing.T) {
	viper.Reset()
	viper.Set("workers", 3)
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("workers", 8, "")
	assert.Equal(t, 3, resolve(cmd, 8, "workers", "workers", viper.GetInt))

	require.NoError(t, cmd.Flags().Set("workers", "12"))
	assert.Equal(t, 12, resolve(cmd, 12, "workers", "workers", viper.GetInt))
}

func TestFlagChangedSeesParentPersistentFlags(t *testing.T) {
	root := &cobra.Command{Use: "root"}
	root.PersistentFlags().String("manifest", "pixi.toml", "")
	child := &cobra.Command{Use: "child"}
	root.AddCommand(child)
	assert.False(t, flagChanged(child, "manifest"))

	require.NoError(t, root.PersistentFlags().Set("manifest", "other.toml"))
	assert.True(t, flagChanged(child, "manifest"))
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")
	assert.False(t, flagChanged(nil, ""), "nil cmd with empty name")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")

	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "updates found",
			err:      errUpdatesFound,
			expected: 1,
		},
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("environment 'docs' not found in lockfile"),
			expected: 2,
		},
		{
			name: "missing lockfile",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("failed to read lockfile at pixi.lock"),
			expected: 2,
		},
		{
			name: "catalog failure",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("pixi list failed for platform linux-64"),
			expected: 3,
		},
		{
			name: "internal",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to write report"),
			expected: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCodeForError(tt.err))
		})
	}
}

func TestDescribeError(t *testing.T) {
	err := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("pixi list failed for platform linux-64").
		WithCause(context.DeadlineExceeded)
	assert.Equal(t, "pixi list failed for platform linux-64: context deadline exceeded", describeError(err))
	assert.Equal(t, "plain", describeError(assertError("plain")))
}

type assertError string

func (e assertError) Error() string { return string(e) }

// ---------- Command runs ----------

const cliManifest = `[workspace]
name = "demo"
channels = ["conda-forge"]
platforms = ["linux-64", "osx-arm64"]
`

const cliLockfile = `version: 6
environments:
  default:
    channels:
    - url: https://conda.anaconda.org/conda-forge/
    packages:
      linux-64:
      - conda: python
      osx-arm64:
      - conda: python
packages: []
`

func writeWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pixi.toml"), []byte(cliManifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pixi.lock"), []byte(cliLockfile), 0644))
	return dir
}

func registryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/conda-forge/noarch/repodata.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"packages": {"python-3.14.0.tar.bz2": {"name": "python", "version": "3.14.0"}}}`))
	})
	mux.HandleFunc("/pypi/cowsay/json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"info": {"version": "6.1"}}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func stubService(t *testing.T, listings map[string]string) {
	t.Helper()
	previous := newAppService
	t.Cleanup(func() { newAppService = previous })
	newAppService = func(cfg app.RegistryConfig) app.Service {
		service := app.NewService(cfg)
		service.Catalog = adapters.PixiCatalogAdapter{
			Binary: "pixi",
			Run: func(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
				for i, arg := range args {
					if arg == "--platform" && i+1 < len(args) {
						return []byte(listings[args[i+1]]), nil, nil
					}
				}
				return []byte("[]"), nil, nil
			},
		}
		return service
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	viper.Reset()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunReportsUpdates(t *testing.T) {
	dir := writeWorkspace(t)
	ts := registryServer(t)
	listing := `[{"name": "python", "version": "3.12.11", "kind": "conda", "source": "conda-forge", "is_explicit": true},
	             {"name": "cowsay", "version": "5.0", "kind": "pypi", "is_explicit": true}]`
	stubService(t, map[string]string{"linux-64": listing, "osx-arm64": listing})

	code, stdout, stderr := runCLI(t,
		"--manifest", filepath.Join(dir, "pixi.toml"),
		"--channel-alias", ts.URL,
		"--pypi-url", ts.URL,
		"--json",
	)
	require.Equal(t, 1, code, stderr)

	var report struct {
		Platforms   []string                    `json:"platforms"`
		Common      []map[string]any            `json:"common"`
		PerPlatform map[string][]map[string]any `json:"per_platform"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, []string{"linux-64", "osx-arm64"}, report.Platforms)
	require.Len(t, report.Common, 2)
	assert.Equal(t, "cowsay", report.Common[0]["name"])
	assert.Equal(t, "python", report.Common[1]["name"])
	assert.Empty(t, report.PerPlatform["linux-64"])
}

func TestRunUpToDate(t *testing.T) {
	dir := writeWorkspace(t)
	ts := registryServer(t)
	listing := `[{"name": "python", "version": "3.14.0", "kind": "conda", "source": "conda-forge", "is_explicit": true}]`
	stubService(t, map[string]string{"linux-64": listing})

	code, stdout, stderr := runCLI(t,
		"-f", dir,
		"--platform", "linux-64",
		"--channel-alias", ts.URL,
		"--pypi-url", ts.URL,
	)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "All packages are up to date.\n", stdout)
}

func TestRunConfigurationError(t *testing.T) {
	dir := t.TempDir()
	code, stdout, stderr := runCLI(t, "--manifest", filepath.Join(dir, "pixi.toml"))
	assert.Equal(t, 2, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Error: manifest not found at")
}

func TestRunCatalogError(t *testing.T) {
	dir := writeWorkspace(t)
	previous := newAppService
	t.Cleanup(func() { newAppService = previous })
	newAppService = func(cfg app.RegistryConfig) app.Service {
		service := app.NewService(cfg)
		service.Catalog = adapters.PixiCatalogAdapter{
			Binary: "pixi",
			Run: func(context.Context, string, ...string) ([]byte, []byte, error) {
				return nil, []byte("lockfile out of date"), assertError("exit status 1")
			},
		}
		return service
	}

	code, _, stderr := runCLI(t, "--manifest", dir)
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "lockfile out of date")
}

func TestRunUnknownPlatformIsConfigurationError(t *testing.T) {
	dir := writeWorkspace(t)
	stubService(t, map[string]string{})

	code, stdout, stderr := runCLI(t, "--manifest", dir, "--platform", "lnux-64")
	assert.Equal(t, 2, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Error: unknown platform 'lnux-64' for environment 'default' (available: linux-64, osx-arm64)")
}

func TestRunPlatforms(t *testing.T) {
	dir := writeWorkspace(t)
	code, stdout, stderr := runCLI(t, "platforms", "--manifest", filepath.Join(dir, "pixi.toml"))
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "linux-64\nosx-arm64\n", stdout)

	code, _, stderr = runCLI(t, "platforms", "--manifest", dir, "--environment", "docs")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "environment 'docs' not found in lockfile")
}

func TestRunReadsEnvironmentConfig(t *testing.T) {
	dir := writeWorkspace(t)
	t.Setenv("PIXI_OUTDATED_MANIFEST", dir)
	code, stdout, stderr := runCLI(t, "platforms")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "linux-64\nosx-arm64\n", stdout)
}
