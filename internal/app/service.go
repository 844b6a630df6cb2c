package app

import (
	"pixi-outdated/internal/adapters"
	"pixi-outdated/internal/ports"
)

type Service struct {
	Manifest     ports.ManifestPort
	Lockfile     ports.LockfilePort
	Catalog      ports.PackageCatalogPort
	Repodata     ports.CondaRepodataPort
	PyPI         ports.PyPIPort
	Progress     ports.ProgressPort
	LockfileFor  func(manifestPath string) string
	ChannelAlias string
}

// RegistryConfig selects the remote registries and their HTTP behaviour.
type RegistryConfig struct {
	ChannelAlias string
	PyPIURL      string
	TimeoutSec   int
	Retries      int
	RetryDelayMs int
}

func NewService(cfg RegistryConfig) Service {
	repodata := adapters.NewCondaRepodataAdapter(cfg.ChannelAlias, cfg.TimeoutSec, cfg.Retries, cfg.RetryDelayMs)
	return Service{
		Manifest:     adapters.NewPixiManifestAdapter(),
		Lockfile:     adapters.NewPixiLockfileAdapter(),
		Catalog:      adapters.NewPixiCatalogAdapter("pixi"),
		Repodata:     repodata,
		PyPI:         adapters.NewPyPIJSONAdapter(cfg.PyPIURL, cfg.TimeoutSec, cfg.Retries, cfg.RetryDelayMs),
		LockfileFor:  adapters.LockfilePath,
		ChannelAlias: repodata.ChannelAlias,
	}
}
