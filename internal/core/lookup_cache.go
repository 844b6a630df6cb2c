package core

import (
	"context"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"pixi-outdated/internal/types"
)

// lookupEntry is a single-owner promise: the owner fills result and closes
// done exactly once, every other caller waits on done.
type lookupEntry struct {
	done   chan struct{}
	result types.LookupResult
}

// lookupCache is the request-scoped memo behind every VersionSource. The
// mutex guards the map only and is never held across a network call.
type lookupCache struct {
	mu      sync.Mutex
	entries map[types.PackageIdentity]*lookupEntry
}

func newLookupCache() *lookupCache {
	return &lookupCache{entries: map[types.PackageIdentity]*lookupEntry{}}
}

// claim splits ids into the identities the caller now owns and must query,
// and the entries that are already cached or in flight elsewhere.
func (c *lookupCache) claim(ids []types.PackageIdentity) ([]types.PackageIdentity, map[types.PackageIdentity]*lookupEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var owned []types.PackageIdentity
	pending := map[types.PackageIdentity]*lookupEntry{}
	for _, id := range ids {
		if entry, ok := c.entries[id]; ok {
			pending[id] = entry
			continue
		}
		entry := &lookupEntry{done: make(chan struct{})}
		c.entries[id] = entry
		pending[id] = entry
		owned = append(owned, id)
	}
	for _, id := range owned {
		delete(pending, id)
	}
	return owned, pending
}

// settle completes every owned identity. Identities missing from results are
// completed as failures so no waiter can block forever.
func (c *lookupCache) settle(owned []types.PackageIdentity, results map[types.PackageIdentity]types.LookupResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range owned {
		entry, ok := c.entries[id]
		if !ok {
			continue
		}
		select {
		case <-entry.done:
			continue
		default:
		}
		result, ok := results[id]
		if !ok {
			result = types.LookupResult{Err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("lookup did not complete")}
		}
		entry.result = result
		close(entry.done)
	}
}

// await collects the results of entries owned by other callers. A canceled
// context turns the remaining waits into failures.
func (c *lookupCache) await(ctx context.Context, pending map[types.PackageIdentity]*lookupEntry) map[types.PackageIdentity]types.LookupResult {
	out := make(map[types.PackageIdentity]types.LookupResult, len(pending))
	for id, entry := range pending {
		select {
		case <-entry.done:
			out[id] = entry.result
		case <-ctx.Done():
			out[id] = types.LookupResult{Err: ctx.Err()}
		}
	}
	return out
}

func (c *lookupCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
