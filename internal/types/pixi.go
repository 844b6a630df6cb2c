package types

import "sort"

// PixiPackage is one element of `pixi list --json`.
type PixiPackage struct {
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	Build      string    `json:"build,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	Kind       Ecosystem `json:"kind"`
	Source     string    `json:"source,omitempty"`
	IsExplicit bool      `json:"is_explicit"`
}

type PixiLockChannel struct {
	URL string `yaml:"url"`
}

// PixiLockEnvironment keeps only what platform discovery needs. Platform
// order is read from the YAML node separately because maps lose it.
type PixiLockEnvironment struct {
	Channels []PixiLockChannel `yaml:"channels"`
	Indexes  []string          `yaml:"indexes"`
}

type PixiLock struct {
	Version      int                            `yaml:"version"`
	Environments map[string]PixiLockEnvironment `yaml:"environments"`
}

type PixiWorkspace struct {
	Name      string   `toml:"name"`
	Channels  []string `toml:"channels"`
	Platforms []string `toml:"platforms"`
}

type PixiFeature struct {
	Platforms []string `toml:"platforms"`
}

// PixiManifest is the subset of pixi.toml used to validate requests.
// Older manifests use [project] instead of [workspace].
type PixiManifest struct {
	Workspace    PixiWorkspace          `toml:"workspace"`
	Project      PixiWorkspace          `toml:"project"`
	Environments map[string]any         `toml:"environments"`
	Feature      map[string]PixiFeature `toml:"feature"`
}

func (m PixiManifest) Platforms() []string {
	if len(m.Workspace.Platforms) > 0 {
		return m.Workspace.Platforms
	}
	return m.Project.Platforms
}

// DeclaredPlatforms lists the workspace platforms followed by any platform
// that only a feature adds, without duplicates.
func (m PixiManifest) DeclaredPlatforms() []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(platforms []string) {
		for _, platform := range platforms {
			if _, ok := seen[platform]; ok {
				continue
			}
			seen[platform] = struct{}{}
			out = append(out, platform)
		}
	}
	add(m.Platforms())
	names := make([]string, 0, len(m.Feature))
	for name := range m.Feature {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		add(m.Feature[name].Platforms)
	}
	return out
}

func (m PixiManifest) Channels() []string {
	if len(m.Workspace.Channels) > 0 {
		return m.Workspace.Channels
	}
	return m.Project.Channels
}

// HasEnvironment reports whether name is declared. The default environment
// always exists.
func (m PixiManifest) HasEnvironment(name string) bool {
	if name == "" || name == "default" {
		return true
	}
	_, ok := m.Environments[name]
	return ok
}

// PyProjectManifest wraps a pixi manifest embedded in pyproject.toml.
type PyProjectManifest struct {
	Tool struct {
		Pixi PixiManifest `toml:"pixi"`
	} `toml:"tool"`
}
