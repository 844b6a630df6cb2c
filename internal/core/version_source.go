package core

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pixi-outdated/internal/ports"
	"pixi-outdated/internal/types"
)

// VersionSource answers latest-version lookups for one ecosystem. Calling it
// twice with the same identity during a run never queries the registry twice.
type VersionSource interface {
	Ecosystem() types.Ecosystem
	Lookup(ctx context.Context, subdirs []string, ids []types.PackageIdentity) map[types.PackageIdentity]types.LookupResult
	Queries() int
}

type CondaVersionSource struct {
	repodata ports.CondaRepodataPort
	cache    *lookupCache
	queries  atomic.Int64
}

func NewCondaVersionSource(repodata ports.CondaRepodataPort) *CondaVersionSource {
	return &CondaVersionSource{
		repodata: repodata,
		cache:    newLookupCache(),
	}
}

func (s *CondaVersionSource) Ecosystem() types.Ecosystem {
	return types.EcosystemConda
}

// Queries returns how many batched repodata queries were issued.
func (s *CondaVersionSource) Queries() int {
	return int(s.queries.Load())
}

// Lookup issues one batched repodata query per channel among the identities
// not yet cached, then picks the highest version of each name over every
// subdir and build variant.
func (s *CondaVersionSource) Lookup(ctx context.Context, subdirs []string, ids []types.PackageIdentity) map[types.PackageIdentity]types.LookupResult {
	owned, pending := s.cache.claim(ids)
	results := make(map[types.PackageIdentity]types.LookupResult, len(ids))
	if len(owned) > 0 {
		byChannel := map[string][]types.PackageIdentity{}
		for _, id := range owned {
			byChannel[id.Channel] = append(byChannel[id.Channel], id)
		}
		channels := make([]string, 0, len(byChannel))
		for channel := range byChannel {
			channels = append(channels, channel)
		}
		sort.Strings(channels)
		for _, channel := range channels {
			group := byChannel[channel]
			batch := s.queryChannel(ctx, channel, subdirs, group)
			s.cache.settle(group, batch)
			for id, result := range batch {
				results[id] = result
			}
		}
	}
	for id, result := range s.cache.await(ctx, pending) {
		results[id] = result
	}
	return results
}

func (s *CondaVersionSource) queryChannel(ctx context.Context, channel string, subdirs []string, ids []types.PackageIdentity) map[types.PackageIdentity]types.LookupResult {
	results := make(map[types.PackageIdentity]types.LookupResult, len(ids))
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, id.Name)
	}
	sort.Strings(names)
	s.queries.Add(1)
	available, err := s.repodata.AvailableVersions(ctx, channel, subdirs, names)
	if err != nil {
		log.Debug().Str("error", errorMessage(err)).Str("channel", channel).Int("packages", len(names)).Msg("repodata query failed")
		for _, id := range ids {
			results[id] = types.LookupResult{Err: err}
		}
		return results
	}
	for _, id := range ids {
		versions := available[id.Name]
		if len(versions) == 0 {
			results[id] = types.LookupResult{Err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("package %s not found in channel %s", id.Name, channel))}
			continue
		}
		latest, err := highestVersion(types.EcosystemConda, versions)
		if err != nil {
			results[id] = types.LookupResult{Err: err}
			continue
		}
		results[id] = types.LookupResult{Version: latest, Found: true}
	}
	return results
}

type PyPIVersionSource struct {
	registry ports.PyPIPort
	cache    *lookupCache
	queries  atomic.Int64
}

func NewPyPIVersionSource(registry ports.PyPIPort) *PyPIVersionSource {
	return &PyPIVersionSource{
		registry: registry,
		cache:    newLookupCache(),
	}
}

func (s *PyPIVersionSource) Ecosystem() types.Ecosystem {
	return types.EcosystemPyPI
}

// Queries returns how many registry requests were issued.
func (s *PyPIVersionSource) Queries() int {
	return int(s.queries.Load())
}

// Lookup queries the registry once per uncached name. Subdirs are ignored:
// a PyPI release is platform independent.
func (s *PyPIVersionSource) Lookup(ctx context.Context, _ []string, ids []types.PackageIdentity) map[types.PackageIdentity]types.LookupResult {
	owned, pending := s.cache.claim(ids)
	results := make(map[types.PackageIdentity]types.LookupResult, len(ids))
	for _, id := range owned {
		s.queries.Add(1)
		latest, err := s.registry.LatestVersion(ctx, id.Name)
		result := types.LookupResult{Version: latest, Found: err == nil && latest != ""}
		if err != nil {
			log.Debug().Str("error", errorMessage(err)).Str("package", id.Name).Msg("pypi query failed")
			result = types.LookupResult{Err: err}
		}
		s.cache.settle([]types.PackageIdentity{id}, map[types.PackageIdentity]types.LookupResult{id: result})
		results[id] = result
	}
	for id, result := range s.cache.await(ctx, pending) {
		results[id] = result
	}
	return results
}

var _ VersionSource = (*CondaVersionSource)(nil)
var _ VersionSource = (*PyPIVersionSource)(nil)
