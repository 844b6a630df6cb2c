package core

import (
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"pixi-outdated/internal/types"
)

// versionCache memoizes parsed version objects for one ecosystem so repeated
// comparisons of the same token parse it only once.
type versionCache struct {
	ecosystem types.Ecosystem
	conda     map[string]condaVersion
	pep       map[string]pep440.Version
}

func newVersionCache(ecosystem types.Ecosystem) *versionCache {
	return &versionCache{
		ecosystem: ecosystem,
		conda:     map[string]condaVersion{},
		pep:       map[string]pep440.Version{},
	}
}

// condaVersion returns a parsed conda version, caching the result.
func (c *versionCache) condaVersion(value string) (condaVersion, error) {
	if parsed, ok := c.conda[value]; ok {
		return parsed, nil
	}
	parsed, err := parseCondaVersion(value)
	if err != nil {
		return condaVersion{}, err
	}
	c.conda[value] = parsed
	return parsed, nil
}

// pepVersion returns a parsed PEP 440 version, caching the result.
func (c *versionCache) pepVersion(value string) (pep440.Version, error) {
	if parsed, ok := c.pep[value]; ok {
		return parsed, nil
	}
	parsed, err := pep440.Parse(value)
	if err != nil {
		return pep440.Version{}, err
	}
	c.pep[value] = parsed
	return parsed, nil
}

// compare returns -1, 0, or 1 comparing two version tokens with the
// ordering rules of the cache's ecosystem.
func (c *versionCache) compare(a string, b string) (int, error) {
	switch c.ecosystem {
	case types.EcosystemConda:
		v1, err := c.condaVersion(a)
		if err != nil {
			return 0, err
		}
		v2, err := c.condaVersion(b)
		if err != nil {
			return 0, err
		}
		return v1.compare(v2), nil
	case types.EcosystemPyPI:
		v1, err := c.pepVersion(a)
		if err != nil {
			return 0, invalidVersion(a, err)
		}
		v2, err := c.pepVersion(b)
		if err != nil {
			return 0, invalidVersion(b, err)
		}
		return v1.Compare(v2), nil
	default:
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported ecosystem %q", c.ecosystem))
	}
}

// isNewer reports whether candidate is strictly newer than current.
func (c *versionCache) isNewer(current string, candidate string) (bool, error) {
	cmp, err := c.compare(candidate, current)
	if err != nil {
		return false, err
	}
	return cmp > 0, nil
}

// highestVersion selects the newest of the available versions. Tokens that
// cannot be parsed are skipped; an error is returned only when none parse.
func highestVersion(ecosystem types.Ecosystem, available []string) (string, error) {
	if len(available) == 0 {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no available versions")
	}
	cache := newVersionCache(ecosystem)
	best := ""
	var lastErr error
	for _, version := range available {
		if best == "" {
			if _, err := cache.compare(version, version); err != nil {
				lastErr = err
				continue
			}
			best = version
			continue
		}
		cmp, err := cache.compare(version, best)
		if err != nil {
			lastErr = err
			continue
		}
		if cmp > 0 {
			best = version
		}
	}
	if best == "" {
		return "", lastErr
	}
	return best, nil
}

// CompareVersions compares two version tokens of the given ecosystem.
func CompareVersions(ecosystem types.Ecosystem, a string, b string) (int, error) {
	return newVersionCache(ecosystem).compare(a, b)
}

func invalidVersion(value string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid version %q", value)).
		WithCause(cause)
}
