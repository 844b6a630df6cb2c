package types

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"pixi-outdated/internal/shared"
)

// PackageIdentity is the key of a remote version query. Two resolved packages
// share one query iff their identities are equal.
type PackageIdentity struct {
	Name      string
	Ecosystem Ecosystem
	Channel   string
}

// NewPackageIdentity normalizes the inputs: PyPI names are PEP 503 normalized
// and carry no channel, conda channels are reduced to their root.
func NewPackageIdentity(name string, ecosystem Ecosystem, channel string) PackageIdentity {
	name = strings.TrimSpace(name)
	if ecosystem == EcosystemPyPI {
		return PackageIdentity{
			Name:      shared.NormalizePipName(name),
			Ecosystem: ecosystem,
		}
	}
	return PackageIdentity{
		Name:      name,
		Ecosystem: ecosystem,
		Channel:   CanonicalChannel(channel),
	}
}

func (p PackageIdentity) String() string {
	if p.Ecosystem == EcosystemPyPI {
		return fmt.Sprintf("pypi:%s", p.Name)
	}
	if p.Channel == "" {
		return fmt.Sprintf("%s:%s", p.Ecosystem, p.Name)
	}
	return fmt.Sprintf("%s:%s/%s", p.Ecosystem, p.Channel, p.Name)
}

// Less orders identities by name, then ecosystem, then channel.
func (p PackageIdentity) Less(other PackageIdentity) bool {
	if p.Name != other.Name {
		return p.Name < other.Name
	}
	if p.Ecosystem != other.Ecosystem {
		return p.Ecosystem < other.Ecosystem
	}
	return p.Channel < other.Channel
}

var condaArchiveSuffixes = []string{".conda", ".tar.bz2"}

// CanonicalChannel turns whatever pixi reports as a conda source into the
// channel root: package archive URLs lose their subdir and filename, trailing
// slashes are dropped. Bare channel names are kept as-is.
func CanonicalChannel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(trimmed, "/")
	}
	channelPath := strings.TrimRight(parsed.Path, "/")
	for _, suffix := range condaArchiveSuffixes {
		if strings.HasSuffix(channelPath, suffix) {
			channelPath = path.Dir(path.Dir(channelPath))
			break
		}
	}
	if channelPath == "/" || channelPath == "." {
		channelPath = ""
	}
	parsed.Path = channelPath
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return strings.TrimRight(parsed.String(), "/")
}
