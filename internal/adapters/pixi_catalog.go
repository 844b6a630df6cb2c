package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pixi-outdated/internal/ports"
	"pixi-outdated/internal/shared"
	"pixi-outdated/internal/types"
)

// CommandRunner runs an external program and returns its stdout and stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// PixiCatalogAdapter lists resolved packages through `pixi list --json`.
type PixiCatalogAdapter struct {
	Binary string
	Run    CommandRunner
}

func NewPixiCatalogAdapter(binary string) PixiCatalogAdapter {
	if strings.TrimSpace(binary) == "" {
		binary = "pixi"
	}
	return PixiCatalogAdapter{Binary: binary, Run: execRunner}
}

func (a PixiCatalogAdapter) ListPackages(ctx context.Context, query ports.CatalogQuery) ([]types.ResolvedPackage, error) {
	run := a.Run
	if run == nil {
		run = execRunner
	}
	args := pixiListArgs(query)
	log.Debug().Str("platform", query.Platform).Strs("args", args).Msg("listing packages")
	stdout, stderr, err := run(ctx, a.Binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("pixi list cancelled for platform %s", query.Platform)).
				WithCause(ctx.Err())
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("failed to execute `pixi list`, is pixi installed?").
				WithCause(err)
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("pixi list failed for platform %s", query.Platform)).
			WithCause(shared.CommandError(stderr, err))
	}
	packages, err := parsePixiList(stdout)
	if err != nil {
		return nil, err
	}
	resolved := make([]types.ResolvedPackage, 0, len(packages))
	for _, pkg := range packages {
		if !pkg.Kind.Valid() {
			log.Debug().Str("package", pkg.Name).Str("kind", string(pkg.Kind)).Msg("skipping package of unknown kind")
			continue
		}
		resolved = append(resolved, types.ResolvedPackage{
			Identity:       types.NewPackageIdentity(pkg.Name, pkg.Kind, pkg.Source),
			CurrentVersion: pkg.Version,
			Build:          pkg.Build,
			Platform:       query.Platform,
			Explicit:       pkg.IsExplicit,
		})
	}
	return resolved, nil
}

func pixiListArgs(query ports.CatalogQuery) []string {
	args := []string{"list", "--json"}
	if query.ExplicitOnly {
		args = append(args, "--explicit")
	}
	if query.Environment != "" {
		args = append(args, "--environment", query.Environment)
	}
	if query.Platform != "" {
		args = append(args, "--platform", query.Platform)
	}
	if query.ManifestPath != "" {
		args = append(args, "--manifest-path", query.ManifestPath)
	}
	if pattern := packageNamePattern(query.PackageNames); pattern != "" {
		args = append(args, pattern)
	}
	return args
}

// packageNamePattern anchors the requested names so pixi does not match
// substrings.
func packageNamePattern(names []string) string {
	var escaped []string
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			escaped = append(escaped, regexp.QuoteMeta(trimmed))
		}
	}
	switch len(escaped) {
	case 0:
		return ""
	case 1:
		return "^" + escaped[0] + "$"
	default:
		return "^(" + strings.Join(escaped, "|") + ")$"
	}
}

func parsePixiList(output []byte) ([]types.PixiPackage, error) {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var packages []types.PixiPackage
	if err := json.Unmarshal(trimmed, &packages); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("failed to parse JSON output from pixi list").
			WithCause(err)
	}
	for i, pkg := range packages {
		if strings.TrimSpace(pkg.Name) == "" {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("pixi list reported a package without a name at index %d", i))
		}
	}
	return packages, nil
}

var _ ports.PackageCatalogPort = PixiCatalogAdapter{}
