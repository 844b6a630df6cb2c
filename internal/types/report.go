package types

// CoalescedReport groups outdated entries into updates shared by every
// requested platform and updates specific to one or more platforms.
type CoalescedReport struct {
	Platforms   []string
	Common      []OutdatedEntry
	PerPlatform map[string][]OutdatedEntry
	Unchecked   []UncheckedEntry
}

// Coalesced is false for single-platform reports, which carry no common section.
func (r CoalescedReport) Coalesced() bool {
	return len(r.Platforms) > 1
}

func (r CoalescedReport) HasUpdates() bool {
	if len(r.Common) > 0 {
		return true
	}
	for _, entries := range r.PerPlatform {
		if len(entries) > 0 {
			return true
		}
	}
	return false
}

func (r CoalescedReport) UpdateCount() int {
	count := len(r.Common)
	for _, entries := range r.PerPlatform {
		count += len(entries)
	}
	return count
}
