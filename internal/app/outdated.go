package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pixi-outdated/internal/core"
	"pixi-outdated/internal/ports"
	"pixi-outdated/internal/types"
)

const defaultEnvironment = "default"

const defaultLookupTimeout = 60 * time.Second

// Outdated reports every package of the environment with a newer release,
// coalesced across the requested platforms.
func (s Service) Outdated(ctx context.Context, req OutdatedRequest) (OutdatedResult, error) {
	environment := environmentName(req.Environment)
	manifest, err := s.Manifest.Load(req.ManifestPath)
	if err != nil {
		return OutdatedResult{}, err
	}
	if !manifest.HasEnvironment(environment) {
		return OutdatedResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("environment '%s' is not defined in the manifest", environment))
	}
	platforms, err := s.discoverPlatforms(req.ManifestPath, environment, manifest, req.Platforms)
	if err != nil {
		return OutdatedResult{}, err
	}
	log.Debug().Str("environment", environment).Strs("platforms", platforms).Msg("checking platforms")

	catalogs, err := s.fetchCatalogs(ctx, req, platforms)
	if err != nil {
		return OutdatedResult{}, err
	}
	s.fillChannels(catalogs, manifest.Channels())
	filter := core.PackageFilter{ExplicitOnly: req.ExplicitOnly, Names: req.PackageNames}
	catalogs = filter.Apply(catalogs)

	resolver := core.NewVersionResolver(
		core.NewCondaVersionSource(s.Repodata),
		core.NewPyPIVersionSource(s.PyPI),
	)
	resolver.Progress = s.Progress
	if req.Workers > 0 {
		resolver.Workers = req.Workers
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	table, stats, err := resolver.Resolve(lookupCtx, catalogs)
	if err != nil {
		return OutdatedResult{}, err
	}

	sets := core.BuildOutdatedSets(platforms, catalogs, table)
	report := core.Coalesce(platforms, sets.PerPlatform, sets.Unchecked)
	return OutdatedResult{Report: report, Stats: stats}, nil
}

// discoverPlatforms prefers explicitly requested platforms and falls back to
// the lockfile order. Requested platforms must be locked for the environment,
// or declared in the manifest when there is no lockfile yet.
func (s Service) discoverPlatforms(manifestPath string, environment string, manifest types.PixiManifest, requested []string) ([]string, error) {
	var platforms []string
	seen := map[string]struct{}{}
	for _, platform := range requested {
		platform = strings.TrimSpace(platform)
		if platform == "" {
			continue
		}
		if _, ok := seen[platform]; ok {
			continue
		}
		seen[platform] = struct{}{}
		platforms = append(platforms, platform)
	}
	known, err := s.Lockfile.Platforms(s.lockfilePath(manifestPath), environment)
	if len(platforms) == 0 {
		return known, err
	}
	if err != nil {
		if errbuilder.CodeOf(err) != errbuilder.CodeNotFound {
			return nil, err
		}
		known = manifest.DeclaredPlatforms()
		log.Debug().Strs("platforms", known).Msg("no lockfile, validating against manifest platforms")
	}
	if err := validatePlatforms(platforms, known, environment); err != nil {
		return nil, err
	}
	return platforms, nil
}

func validatePlatforms(requested []string, known []string, environment string) error {
	allowed := make(map[string]struct{}, len(known))
	for _, platform := range known {
		allowed[platform] = struct{}{}
	}
	for _, platform := range requested {
		if _, ok := allowed[platform]; ok {
			continue
		}
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown platform '%s' for environment '%s' (available: %s)",
				platform, environment, strings.Join(known, ", ")))
	}
	return nil
}

// fetchCatalogs runs one catalog query per platform in parallel. The first
// failure cancels the others and aborts the run.
func (s Service) fetchCatalogs(ctx context.Context, req OutdatedRequest, platforms []string) (map[string][]types.ResolvedPackage, error) {
	var mu sync.Mutex
	catalogs := make(map[string][]types.ResolvedPackage, len(platforms))
	g, groupCtx := errgroup.WithContext(ctx)
	for _, platform := range platforms {
		platform := platform
		g.Go(func() error {
			packages, err := s.Catalog.ListPackages(groupCtx, ports.CatalogQuery{
				ManifestPath: req.ManifestPath,
				Environment:  req.Environment,
				Platform:     platform,
				ExplicitOnly: req.ExplicitOnly,
				PackageNames: req.PackageNames,
			})
			if err != nil {
				return err
			}
			log.Debug().Str("platform", platform).Int("packages", len(packages)).Msg("catalog loaded")
			mu.Lock()
			catalogs[platform] = packages
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errbuilder.CodeOf(err) == errbuilder.CodeFailedPrecondition {
			return nil, err
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("failed to list packages").
			WithCause(err)
	}
	return catalogs, nil
}

// fillChannels gives conda packages without a reported source the first
// manifest channel, and expands bare channel names with the channel alias so
// that one channel always maps to one identity.
func (s Service) fillChannels(catalogs map[string][]types.ResolvedPackage, manifestChannels []string) {
	fallback := ""
	if len(manifestChannels) > 0 {
		fallback = manifestChannels[0]
	}
	for platform, packages := range catalogs {
		for i, pkg := range packages {
			if pkg.Identity.Ecosystem != types.EcosystemConda {
				continue
			}
			channel := pkg.Identity.Channel
			if channel == "" {
				channel = fallback
			}
			channel = s.expandChannel(channel)
			if channel != pkg.Identity.Channel {
				packages[i].Identity = types.NewPackageIdentity(pkg.Identity.Name, types.EcosystemConda, channel)
			}
		}
		catalogs[platform] = packages
	}
}

func (s Service) expandChannel(channel string) string {
	channel = types.CanonicalChannel(channel)
	if channel == "" || strings.Contains(channel, "://") || s.ChannelAlias == "" {
		return channel
	}
	return strings.TrimRight(s.ChannelAlias, "/") + "/" + channel
}

func (s Service) lockfilePath(manifestPath string) string {
	if s.LockfileFor != nil {
		return s.LockfileFor(manifestPath)
	}
	return "pixi.lock"
}

func environmentName(value string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return defaultEnvironment
}
