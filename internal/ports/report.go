package ports

import "pixi-outdated/internal/types"

type ReportWriterPort interface {
	Write(report types.CoalescedReport) error
}

// ProgressPort receives lookup completion events. It carries no correctness
// obligation and implementations must be safe for concurrent use.
type ProgressPort interface {
	Start(total int)
	Advance(id types.PackageIdentity)
	Done()
}
