package ports

import (
	"context"

	"pixi-outdated/internal/types"
)

type CatalogQuery struct {
	ManifestPath string
	Environment  string
	Platform     string
	ExplicitOnly bool
	PackageNames []string
}

// PackageCatalogPort lists the resolved packages of one environment on one
// platform. An invocation failure is returned as an error, never as an empty list.
type PackageCatalogPort interface {
	ListPackages(ctx context.Context, query CatalogQuery) ([]types.ResolvedPackage, error)
}
