package ports

import "context"

// CondaRepodataPort answers one batched query per channel: every requested
// name across every requested subdir. Names absent from the channel are
// missing from the result map.
type CondaRepodataPort interface {
	AvailableVersions(ctx context.Context, channel string, subdirs []string, names []string) (map[string][]string, error)
}

// PyPIPort returns the latest released version of a project. A project that
// does not exist yields an error with errbuilder.CodeNotFound.
type PyPIPort interface {
	LatestVersion(ctx context.Context, name string) (string, error)
}
