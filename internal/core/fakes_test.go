package core

import (
	"context"
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"pixi-outdated/internal/types"
)

type repodataCall struct {
	Channel string
	Subdirs []string
	Names   []string
}

// fakeRepodata answers from a channel -> name -> versions table and records
// every call it receives.
type fakeRepodata struct {
	mu       sync.Mutex
	versions map[string]map[string][]string
	failing  map[string]error
	calls    []repodataCall
	block    chan struct{}
}

func (f *fakeRepodata) AvailableVersions(ctx context.Context, channel string, subdirs []string, names []string) (map[string][]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, repodataCall{
		Channel: channel,
		Subdirs: append([]string(nil), subdirs...),
		Names:   append([]string(nil), names...),
	})
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.failing[channel]; ok {
		return nil, err
	}
	out := map[string][]string{}
	for _, name := range names {
		if versions, ok := f.versions[channel][name]; ok {
			out[name] = versions
		}
	}
	return out, nil
}

func (f *fakeRepodata) Calls() []repodataCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := append([]repodataCall(nil), f.calls...)
	sort.Slice(calls, func(i, j int) bool { return calls[i].Channel < calls[j].Channel })
	return calls
}

// fakePyPI returns the latest version of a name and counts queries per name.
type fakePyPI struct {
	mu      sync.Mutex
	latest  map[string]string
	failing map[string]error
	calls   map[string]int
	block   chan struct{}
}

func (f *fakePyPI) LatestVersion(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := f.failing[name]; ok {
		return "", err
	}
	version, ok := f.latest[name]
	if !ok {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("package " + name + " not found on PyPI")
	}
	return version, nil
}

func (f *fakePyPI) Calls() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.calls))
	for name, count := range f.calls {
		out[name] = count
	}
	return out
}

const testChannel = "https://conda.anaconda.org/conda-forge"

func condaPkg(name string, current string, platform string) types.ResolvedPackage {
	return types.ResolvedPackage{
		Identity:       types.NewPackageIdentity(name, types.EcosystemConda, testChannel),
		CurrentVersion: current,
		Platform:       platform,
	}
}

func pypiPkg(name string, current string, platform string) types.ResolvedPackage {
	return types.ResolvedPackage{
		Identity:       types.NewPackageIdentity(name, types.EcosystemPyPI, ""),
		CurrentVersion: current,
		Platform:       platform,
	}
}

func explicit(pkg types.ResolvedPackage) types.ResolvedPackage {
	pkg.Explicit = true
	return pkg
}

func entry(pkg types.ResolvedPackage, latest string) types.OutdatedEntry {
	return types.OutdatedEntry{
		Identity:       pkg.Identity,
		CurrentVersion: pkg.CurrentVersion,
		LatestVersion:  latest,
		Platform:       pkg.Platform,
		Explicit:       pkg.Explicit,
	}
}
