package types

type Ecosystem string

const (
	EcosystemConda Ecosystem = "conda"
	EcosystemPyPI  Ecosystem = "pypi"
)

func (e Ecosystem) Valid() bool {
	return e == EcosystemConda || e == EcosystemPyPI
}

// NoarchSubdir is the platform-independent conda subdir, queried for every channel.
const NoarchSubdir = "noarch"
