package app

import (
	"time"

	"pixi-outdated/internal/core"
	"pixi-outdated/internal/types"
)

type OutdatedRequest struct {
	ManifestPath string
	Environment  string
	Platforms    []string
	PackageNames []string
	ExplicitOnly bool
	Timeout      time.Duration
	Workers      int
}

type OutdatedResult struct {
	Report types.CoalescedReport
	Stats  core.ResolveStats
}

type PlatformsRequest struct {
	ManifestPath string
	Environment  string
}

type PlatformsResult struct {
	Environment  string
	LockfilePath string
	Platforms    []string
}
