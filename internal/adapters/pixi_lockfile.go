package adapters

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"pixi-outdated/internal/ports"
)

const defaultEnvironment = "default"

// PixiLockfileAdapter reads platforms from pixi.lock. The document is walked
// as a yaml.Node so the platform order of the file is preserved.
type PixiLockfileAdapter struct{}

func NewPixiLockfileAdapter() PixiLockfileAdapter {
	return PixiLockfileAdapter{}
}

// LockfilePath returns the pixi.lock that belongs to a manifest path, which
// may be a manifest file or a workspace directory.
func LockfilePath(manifestPath string) string {
	if manifestPath == "" {
		return "pixi.lock"
	}
	if info, err := os.Stat(manifestPath); err == nil && info.IsDir() {
		return filepath.Join(manifestPath, "pixi.lock")
	}
	return filepath.Join(filepath.Dir(manifestPath), "pixi.lock")
}

func (a PixiLockfileAdapter) Platforms(lockfilePath string, environment string) ([]string, error) {
	if environment == "" {
		environment = defaultEnvironment
	}
	data, err := os.ReadFile(lockfilePath)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to read lockfile at %s", lockfilePath)).
			WithCause(err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("failed to parse lockfile at %s", lockfilePath)).
			WithCause(err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	env := mappingValue(mappingValue(root, "environments"), environment)
	if env == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("environment '%s' not found in lockfile", environment))
	}
	packages := mappingValue(env, "packages")
	var platforms []string
	if packages != nil && packages.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(packages.Content); i += 2 {
			platforms = append(platforms, packages.Content[i].Value)
		}
	}
	if len(platforms) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("no platforms found for environment '%s'", environment))
	}
	return platforms, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

var _ ports.LockfilePort = PixiLockfileAdapter{}
