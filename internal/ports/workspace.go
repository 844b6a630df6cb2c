package ports

import "pixi-outdated/internal/types"

// LockfilePort reads the ordered platform list of an environment.
type LockfilePort interface {
	Platforms(lockfilePath string, environment string) ([]string, error)
}

type ManifestPort interface {
	Load(path string) (types.PixiManifest, error)
}
