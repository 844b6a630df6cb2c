package types

// ResolvedPackage is one (package, platform) pair reported by the package manager.
type ResolvedPackage struct {
	Identity       PackageIdentity
	CurrentVersion string
	Build          string
	Platform       string
	Explicit       bool
}

type OutdatedEntry struct {
	Identity       PackageIdentity
	CurrentVersion string
	LatestVersion  string
	Platform       string
	Explicit       bool
}

// UncheckedEntry is a package whose latest version could not be determined.
// It is reported separately so it is never mistaken for an up to date package.
type UncheckedEntry struct {
	Identity       PackageIdentity
	CurrentVersion string
	Platforms      []string
	Reason         string
}
