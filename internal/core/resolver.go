package core

import (
	"context"
	"sort"
	"sync"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pixi-outdated/internal/ports"
	"pixi-outdated/internal/types"
)

const defaultLookupWorkers = 8

// VersionResolver collapses the packages of every platform into the minimal
// set of registry queries: one batched query per conda channel and one query
// per PyPI name, independent of the number of platforms.
type VersionResolver struct {
	Sources  map[types.Ecosystem]VersionSource
	Progress ports.ProgressPort
	Workers  int
}

type ResolveStats struct {
	Packages     int
	Identities   int
	CondaBatches int
	PyPIQueries  int
	Failures     int
}

// lookupGroup is one unit of dispatch: all conda names of a channel, or a
// single PyPI name.
type lookupGroup struct {
	ecosystem types.Ecosystem
	channel   string
	subdirs   []string
	ids       []types.PackageIdentity
}

func NewVersionResolver(sources ...VersionSource) VersionResolver {
	byEcosystem := map[types.Ecosystem]VersionSource{}
	for _, source := range sources {
		if source == nil {
			continue
		}
		byEcosystem[source.Ecosystem()] = source
	}
	return VersionResolver{
		Sources: byEcosystem,
		Workers: defaultLookupWorkers,
	}
}

// Resolve builds the lookup table for every identity referenced by catalogs.
// Lookup failures are recorded in the table and never returned as errors.
func (r VersionResolver) Resolve(ctx context.Context, catalogs map[string][]types.ResolvedPackage) (types.VersionLookupTable, ResolveStats, error) {
	if len(r.Sources) == 0 {
		return types.VersionLookupTable{}, ResolveStats{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("version resolver requires at least one version source")
	}
	groups, identities, packages := planLookups(ctx, catalogs)
	stats := ResolveStats{Packages: packages, Identities: len(identities)}
	for _, group := range groups {
		if group.ecosystem == types.EcosystemConda {
			stats.CondaBatches++
		} else {
			stats.PyPIQueries++
		}
	}

	if r.Progress != nil {
		r.Progress.Start(len(identities))
		defer r.Progress.Done()
	}

	workers := r.Workers
	if workers <= 0 {
		workers = defaultLookupWorkers
	}
	var mu sync.Mutex
	results := make(map[types.PackageIdentity]types.LookupResult, len(identities))
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			source, ok := r.Sources[group.ecosystem]
			var batch map[types.PackageIdentity]types.LookupResult
			if ok {
				batch = source.Lookup(ctx, group.subdirs, group.ids)
			} else {
				batch = unsupportedEcosystem(group)
			}
			mu.Lock()
			for id, result := range batch {
				results[id] = result
			}
			mu.Unlock()
			if r.Progress != nil {
				for _, id := range group.ids {
					r.Progress.Advance(id)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, id := range identities {
		if _, ok := results[id]; ok {
			continue
		}
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		results[id] = types.LookupResult{Err: errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("lookup aborted").
			WithCause(cause)}
	}
	table := types.NewVersionLookupTable(results)
	stats.Failures = len(table.Failures())
	log.Debug().
		Int("packages", stats.Packages).
		Int("identities", stats.Identities).
		Int("conda_batches", stats.CondaBatches).
		Int("pypi_queries", stats.PyPIQueries).
		Int("failures", stats.Failures).
		Msg("version lookups resolved")
	return table, stats, nil
}

// planLookups projects packages to identities and partitions them by
// ecosystem and channel. Groups and identities come back in a deterministic
// order regardless of map iteration.
func planLookups(ctx context.Context, catalogs map[string][]types.ResolvedPackage) ([]lookupGroup, []types.PackageIdentity, int) {
	seen := map[types.PackageIdentity]struct{}{}
	var identities []types.PackageIdentity
	condaNames := map[string]map[types.PackageIdentity]struct{}{}
	condaSubdirs := map[string]map[string]struct{}{}
	var pypi []types.PackageIdentity
	packages := 0

	platforms := make([]string, 0, len(catalogs))
	for platform := range catalogs {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)

	for _, platform := range platforms {
		for _, pkg := range catalogs[platform] {
			packages++
			id := pkg.Identity
			assert.NotEmpty(ctx, id.Name, "package identity name must be set")
			if id.Ecosystem == types.EcosystemConda {
				if condaSubdirs[id.Channel] == nil {
					condaSubdirs[id.Channel] = map[string]struct{}{types.NoarchSubdir: {}}
					condaNames[id.Channel] = map[types.PackageIdentity]struct{}{}
				}
				if pkg.Platform != "" {
					condaSubdirs[id.Channel][pkg.Platform] = struct{}{}
				}
				condaNames[id.Channel][id] = struct{}{}
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			identities = append(identities, id)
			if id.Ecosystem != types.EcosystemConda {
				pypi = append(pypi, id)
			}
		}
	}

	var groups []lookupGroup
	channels := make([]string, 0, len(condaNames))
	for channel := range condaNames {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	for _, channel := range channels {
		ids := make([]types.PackageIdentity, 0, len(condaNames[channel]))
		for id := range condaNames[channel] {
			ids = append(ids, id)
		}
		sortIdentities(ids)
		groups = append(groups, lookupGroup{
			ecosystem: types.EcosystemConda,
			channel:   channel,
			subdirs:   sortedKeys(condaSubdirs[channel]),
			ids:       ids,
		})
	}
	sortIdentities(pypi)
	for _, id := range pypi {
		groups = append(groups, lookupGroup{
			ecosystem: id.Ecosystem,
			ids:       []types.PackageIdentity{id},
		})
	}
	sortIdentities(identities)
	return groups, identities, packages
}

func unsupportedEcosystem(group lookupGroup) map[types.PackageIdentity]types.LookupResult {
	out := make(map[types.PackageIdentity]types.LookupResult, len(group.ids))
	for _, id := range group.ids {
		out[id] = types.LookupResult{Err: errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("no version source for ecosystem " + string(group.ecosystem))}
	}
	return out
}

func sortIdentities(ids []types.PackageIdentity) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Less(ids[j])
	})
}

func sortedKeys(values map[string]struct{}) []string {
	out := make([]string, 0, len(values))
	for key := range values {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
