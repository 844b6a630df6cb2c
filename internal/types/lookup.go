package types

import "sort"

type LookupResult struct {
	Version string
	Found   bool
	Err     error
}

// Failed reports whether the lookup produced no usable version.
func (r LookupResult) Failed() bool {
	return !r.Found || r.Version == ""
}

// VersionLookupTable maps every queried identity to exactly one result.
// It is filled once by the resolver and read-only afterwards.
type VersionLookupTable struct {
	entries map[PackageIdentity]LookupResult
}

func NewVersionLookupTable(entries map[PackageIdentity]LookupResult) VersionLookupTable {
	copied := make(map[PackageIdentity]LookupResult, len(entries))
	for id, result := range entries {
		copied[id] = result
	}
	return VersionLookupTable{entries: copied}
}

func (t VersionLookupTable) Get(id PackageIdentity) (LookupResult, bool) {
	result, ok := t.entries[id]
	return result, ok
}

func (t VersionLookupTable) Len() int {
	return len(t.entries)
}

func (t VersionLookupTable) Identities() []PackageIdentity {
	ids := make([]PackageIdentity, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Less(ids[j])
	})
	return ids
}

// Failures returns the identities whose lookup failed, in Identities order.
func (t VersionLookupTable) Failures() []PackageIdentity {
	var out []PackageIdentity
	for _, id := range t.Identities() {
		if t.entries[id].Failed() {
			out = append(out, id)
		}
	}
	return out
}
