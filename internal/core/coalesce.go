package core

import (
	"sort"

	"pixi-outdated/internal/types"
)

type coalesceKey struct {
	identity types.PackageIdentity
	current  string
	latest   string
}

// Coalesce moves every (identity, current, latest) update reported by all
// requested platforms into the common bucket. Everything else stays with the
// platforms that report it. A single platform is returned verbatim.
func Coalesce(platforms []string, perPlatform map[string][]types.OutdatedEntry, unchecked []types.UncheckedEntry) types.CoalescedReport {
	report := types.CoalescedReport{
		Platforms:   append([]string(nil), platforms...),
		PerPlatform: make(map[string][]types.OutdatedEntry, len(platforms)),
		Unchecked:   unchecked,
	}
	if len(platforms) == 1 {
		platform := platforms[0]
		report.PerPlatform[platform] = append([]types.OutdatedEntry{}, perPlatform[platform]...)
		return report
	}

	presence := map[coalesceKey]map[string]struct{}{}
	var order []coalesceKey
	firstSeen := map[coalesceKey]types.OutdatedEntry{}
	for _, platform := range platforms {
		for _, entry := range perPlatform[platform] {
			key := keyOf(entry)
			if presence[key] == nil {
				presence[key] = map[string]struct{}{}
				order = append(order, key)
				firstSeen[key] = entry
			}
			presence[key][platform] = struct{}{}
		}
	}

	common := map[coalesceKey]struct{}{}
	for _, key := range order {
		if len(presence[key]) != len(platforms) {
			continue
		}
		common[key] = struct{}{}
		entry := firstSeen[key]
		entry.Platform = ""
		report.Common = append(report.Common, entry)
	}
	sortByName(report.Common, entryName)

	for _, platform := range platforms {
		bucket := []types.OutdatedEntry{}
		for _, entry := range perPlatform[platform] {
			if _, ok := common[keyOf(entry)]; ok {
				continue
			}
			bucket = append(bucket, entry)
		}
		sortByName(bucket, entryName)
		report.PerPlatform[platform] = bucket
	}
	return report
}

func keyOf(entry types.OutdatedEntry) coalesceKey {
	return coalesceKey{
		identity: entry.Identity,
		current:  entry.CurrentVersion,
		latest:   entry.LatestVersion,
	}
}

func entryName(entry types.OutdatedEntry) string {
	return entry.Identity.Name
}

// sortByName is a stable, case-sensitive sort on the package name.
func sortByName[T any](values []T, name func(T) string) {
	sort.SliceStable(values, func(i, j int) bool {
		return name(values[i]) < name(values[j])
	})
}
