package core

import (
	"fmt"
	"strings"

	"pixi-outdated/internal/shared"
	"pixi-outdated/internal/types"
)

// PackageFilter restricts catalogs before any lookup is planned, so filtered
// packages cost neither comparisons nor queries.
type PackageFilter struct {
	ExplicitOnly bool
	Names        []string
}

func (f PackageFilter) Active() bool {
	return f.ExplicitOnly || len(f.Names) > 0
}

func (f PackageFilter) Matches(pkg types.ResolvedPackage) bool {
	if f.ExplicitOnly && !pkg.Explicit {
		return false
	}
	if len(f.Names) == 0 {
		return true
	}
	for _, name := range f.Names {
		trimmed := strings.TrimSpace(name)
		if trimmed == pkg.Identity.Name {
			return true
		}
		if pkg.Identity.Ecosystem == types.EcosystemPyPI && shared.NormalizePipName(trimmed) == pkg.Identity.Name {
			return true
		}
	}
	return false
}

// Apply returns filtered copies of the catalogs; order is preserved.
func (f PackageFilter) Apply(catalogs map[string][]types.ResolvedPackage) map[string][]types.ResolvedPackage {
	out := make(map[string][]types.ResolvedPackage, len(catalogs))
	for platform, packages := range catalogs {
		kept := make([]types.ResolvedPackage, 0, len(packages))
		for _, pkg := range packages {
			if f.Matches(pkg) {
				kept = append(kept, pkg)
			}
		}
		out[platform] = kept
	}
	return out
}

// OutdatedSets is the per-platform comparison result plus every package that
// could not be compared.
type OutdatedSets struct {
	PerPlatform map[string][]types.OutdatedEntry
	Unchecked   []types.UncheckedEntry
}

// BuildOutdated compares every package of one platform against the lookup
// table. Packages are kept in catalog order. The second return value lists
// packages that could not be checked together with the reason.
func BuildOutdated(packages []types.ResolvedPackage, table types.VersionLookupTable) ([]types.OutdatedEntry, map[types.PackageIdentity]string) {
	var entries []types.OutdatedEntry
	unchecked := map[types.PackageIdentity]string{}
	caches := map[types.Ecosystem]*versionCache{}
	for _, pkg := range packages {
		result, ok := table.Get(pkg.Identity)
		if !ok || result.Failed() {
			unchecked[pkg.Identity] = lookupFailureReason(result, ok)
			continue
		}
		cache, ok := caches[pkg.Identity.Ecosystem]
		if !ok {
			cache = newVersionCache(pkg.Identity.Ecosystem)
			caches[pkg.Identity.Ecosystem] = cache
		}
		newer, err := cache.isNewer(pkg.CurrentVersion, result.Version)
		if err != nil {
			unchecked[pkg.Identity] = fmt.Sprintf("cannot compare %s with %s: %s", pkg.CurrentVersion, result.Version, errorMessage(err))
			continue
		}
		if !newer {
			continue
		}
		entries = append(entries, types.OutdatedEntry{
			Identity:       pkg.Identity,
			CurrentVersion: pkg.CurrentVersion,
			LatestVersion:  result.Version,
			Platform:       pkg.Platform,
			Explicit:       pkg.Explicit,
		})
	}
	return entries, unchecked
}

type uncheckedKey struct {
	identity types.PackageIdentity
	current  string
}

// BuildOutdatedSets runs BuildOutdated for every requested platform and merges
// the unchecked packages across platforms. Platforms locking different
// versions of one package get separate unchecked entries.
func BuildOutdatedSets(platforms []string, catalogs map[string][]types.ResolvedPackage, table types.VersionLookupTable) OutdatedSets {
	sets := OutdatedSets{PerPlatform: make(map[string][]types.OutdatedEntry, len(platforms))}
	index := map[uncheckedKey]int{}
	for _, platform := range platforms {
		entries, unchecked := BuildOutdated(catalogs[platform], table)
		sets.PerPlatform[platform] = entries
		for _, pkg := range catalogs[platform] {
			reason, ok := unchecked[pkg.Identity]
			if !ok {
				continue
			}
			key := uncheckedKey{identity: pkg.Identity, current: pkg.CurrentVersion}
			if idx, seen := index[key]; seen {
				entry := &sets.Unchecked[idx]
				if entry.Platforms[len(entry.Platforms)-1] != platform {
					entry.Platforms = append(entry.Platforms, platform)
				}
				continue
			}
			index[key] = len(sets.Unchecked)
			sets.Unchecked = append(sets.Unchecked, types.UncheckedEntry{
				Identity:       pkg.Identity,
				CurrentVersion: pkg.CurrentVersion,
				Platforms:      []string{platform},
				Reason:         reason,
			})
		}
	}
	sortByName(sets.Unchecked, func(e types.UncheckedEntry) string { return e.Identity.Name })
	return sets
}

func lookupFailureReason(result types.LookupResult, present bool) string {
	switch {
	case !present:
		return "not queried"
	case result.Err != nil:
		return errorMessage(result.Err)
	default:
		return "no version reported upstream"
	}
}

func errorMessage(err error) string {
	return shared.DescribeError(err)
}
