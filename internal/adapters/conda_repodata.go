package adapters

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pixi-outdated/internal/ports"
	"pixi-outdated/internal/shared"
)

const DefaultChannelAlias = "https://conda.anaconda.org"

const defaultSubdirWorkers = 4

type repodataRecord struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Build   string `json:"build"`
}

type repodataDocument struct {
	Packages      map[string]repodataRecord `json:"packages"`
	CondaPackages map[string]repodataRecord `json:"packages.conda"`
}

// subdirIndex holds the distinct versions of every package in one channel subdir.
type subdirIndex map[string][]string

// CondaRepodataAdapter queries channel repodata. Fetched subdirs stay warm in
// memory for the adapter's lifetime, so only the first query against a
// channel pays for the download; concurrent fetches of one subdir collapse
// into a single request.
type CondaRepodataAdapter struct {
	ChannelAlias string
	http         registryClient

	mu      sync.RWMutex
	indexes map[string]subdirIndex
	group   singleflight.Group
	fetches int
}

func NewCondaRepodataAdapter(channelAlias string, timeoutSec int, retries int, retryDelayMs int) *CondaRepodataAdapter {
	alias := strings.TrimRight(strings.TrimSpace(channelAlias), "/")
	if alias == "" {
		alias = DefaultChannelAlias
	}
	return &CondaRepodataAdapter{
		ChannelAlias: alias,
		http:         newRegistryClient(normalizeHTTPConfig(timeoutSec, retries, retryDelayMs)),
		indexes:      map[string]subdirIndex{},
	}
}

func (a *CondaRepodataAdapter) AvailableVersions(ctx context.Context, channel string, subdirs []string, names []string) (map[string][]string, error) {
	base := a.channelURL(channel)
	if base == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("conda channel is empty")
	}
	wanted := map[string]struct{}{}
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	var mu sync.Mutex
	merged := map[string]map[string]struct{}{}
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(defaultSubdirWorkers)
	for _, subdir := range uniqueStrings(subdirs) {
		subdir := subdir
		g.Go(func() error {
			index, err := a.subdir(groupCtx, base, subdir)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for name := range wanted {
				for _, version := range index[name] {
					if merged[name] == nil {
						merged[name] = map[string]struct{}{}
					}
					merged[name][version] = struct{}{}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(merged))
	for name, versions := range merged {
		out[name] = mapKeys(versions)
	}
	return out, nil
}

// Fetches reports how many subdir downloads reached the network.
func (a *CondaRepodataAdapter) Fetches() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fetches
}

func (a *CondaRepodataAdapter) channelURL(channel string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(channel), "/")
	if trimmed == "" {
		return ""
	}
	if strings.Contains(trimmed, "://") {
		return trimmed
	}
	return a.ChannelAlias + "/" + trimmed
}

func (a *CondaRepodataAdapter) subdir(ctx context.Context, base string, subdir string) (subdirIndex, error) {
	key := base + "/" + subdir
	a.mu.RLock()
	index, ok := a.indexes[key]
	a.mu.RUnlock()
	if ok {
		return index, nil
	}
	value, err, _ := a.group.Do(key, func() (any, error) {
		a.mu.RLock()
		cached, ok := a.indexes[key]
		a.mu.RUnlock()
		if ok {
			return cached, nil
		}
		fetched, err := a.fetchSubdir(ctx, key)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.indexes[key] = fetched
		a.fetches++
		a.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(subdirIndex), nil
}

// fetchSubdir prefers the zstd-compressed repodata and falls back to the
// plain JSON document. A subdir the channel does not publish is empty.
func (a *CondaRepodataAdapter) fetchSubdir(ctx context.Context, subdirURL string) (subdirIndex, error) {
	log.Debug().Str("subdir", subdirURL).Msg("fetching repodata")
	index, found, err := a.fetchRepodata(ctx, subdirURL+"/repodata.json.zst", true)
	if err != nil {
		return nil, err
	}
	if found {
		return index, nil
	}
	index, found, err = a.fetchRepodata(ctx, subdirURL+"/repodata.json", false)
	if err != nil {
		return nil, err
	}
	if !found {
		log.Debug().Str("subdir", subdirURL).Msg("channel does not publish subdir")
		return subdirIndex{}, nil
	}
	return index, nil
}

func (a *CondaRepodataAdapter) fetchRepodata(ctx context.Context, url string, compressed bool) (subdirIndex, bool, error) {
	resp, err := a.http.get(ctx, url, "")
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to fetch repodata").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, url, errorBody(resp)))
	}
	var reader io.Reader = resp.Body
	if compressed {
		decoder, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, false, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to read compressed repodata").
				WithCause(err)
		}
		defer decoder.Close()
		reader = decoder
	}
	index, err := parseRepodata(reader)
	if err != nil {
		return nil, false, err
	}
	return index, true, nil
}

func parseRepodata(reader io.Reader) (subdirIndex, error) {
	var doc repodataDocument
	if err := json.NewDecoder(reader).Decode(&doc); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to parse repodata").
			WithCause(err)
	}
	versions := map[string]map[string]struct{}{}
	collect := func(records map[string]repodataRecord) {
		for _, record := range records {
			if record.Name == "" || record.Version == "" {
				continue
			}
			if versions[record.Name] == nil {
				versions[record.Name] = map[string]struct{}{}
			}
			versions[record.Name][record.Version] = struct{}{}
		}
	}
	collect(doc.Packages)
	collect(doc.CondaPackages)
	index := make(subdirIndex, len(versions))
	for name, set := range versions {
		index[name] = mapKeys(set)
	}
	return index, nil
}

func mapKeys(values map[string]struct{}) []string {
	out := make([]string, 0, len(values))
	for key := range values {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func uniqueStrings(values []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

var _ ports.CondaRepodataPort = (*CondaRepodataAdapter)(nil)
