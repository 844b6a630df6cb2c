package adapters

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/ZanzyTHEbar/errbuilder-go"

	"pixi-outdated/internal/ports"
	"pixi-outdated/internal/types"
)

const (
	pixiManifestName      = "pixi.toml"
	pyprojectManifestName = "pyproject.toml"
)

type PixiManifestAdapter struct{}

func NewPixiManifestAdapter() PixiManifestAdapter {
	return PixiManifestAdapter{}
}

// ResolveManifestPath turns a directory into the manifest it contains,
// preferring pixi.toml over pyproject.toml.
func ResolveManifestPath(path string) (string, error) {
	if path == "" {
		path = "."
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("manifest not found at %s", path)).
			WithCause(err)
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range []string{pixiManifestName, pyprojectManifestName} {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("no %s or %s in %s", pixiManifestName, pyprojectManifestName, path))
}

func (a PixiManifestAdapter) Load(path string) (types.PixiManifest, error) {
	resolved, err := ResolveManifestPath(path)
	if err != nil {
		return types.PixiManifest{}, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return types.PixiManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to read manifest at %s", resolved)).
			WithCause(err)
	}
	if filepath.Base(resolved) == pyprojectManifestName {
		var pyproject types.PyProjectManifest
		if err := toml.Unmarshal(data, &pyproject); err != nil {
			return types.PixiManifest{}, invalidManifest(resolved, err)
		}
		return pyproject.Tool.Pixi, nil
	}
	var manifest types.PixiManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return types.PixiManifest{}, invalidManifest(resolved, err)
	}
	return manifest, nil
}

func invalidManifest(path string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("failed to parse manifest at %s", path)).
		WithCause(err)
}

var _ ports.ManifestPort = PixiManifestAdapter{}
