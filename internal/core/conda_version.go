package core

import (
	"strconv"
	"strings"
	"unicode"
)

type condaAtomKind int

// Atom ordering inside a version component: dev < any other string < number < post.
const (
	condaAtomDev condaAtomKind = iota
	condaAtomString
	condaAtomNumber
	condaAtomPost
)

type condaAtom struct {
	kind condaAtomKind
	num  uint64
	str  string
}

type condaVersion struct {
	epoch   uint64
	version [][]condaAtom
	local   [][]condaAtom
}

var zeroAtom = condaAtom{kind: condaAtomNumber}

// parseCondaVersion follows conda's VersionOrder: an optional "N!" epoch, a
// "+local" suffix, components split on '.' and '_', each component split
// into numeric and alphabetic runs.
func parseCondaVersion(value string) (condaVersion, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return condaVersion{}, invalidVersion(value, nil)
	}
	var out condaVersion
	if idx := strings.Index(normalized, "!"); idx >= 0 {
		epoch, err := strconv.ParseUint(normalized[:idx], 10, 64)
		if err != nil {
			return condaVersion{}, invalidVersion(value, err)
		}
		out.epoch = epoch
		normalized = normalized[idx+1:]
	}
	main, local, hasLocal := strings.Cut(normalized, "+")
	if !strings.Contains(main, "_") {
		main = strings.ReplaceAll(main, "-", "_")
	}
	version, err := splitCondaComponents(main)
	if err != nil {
		return condaVersion{}, invalidVersion(value, err)
	}
	out.version = version
	if hasLocal {
		parsedLocal, err := splitCondaComponents(local)
		if err != nil {
			return condaVersion{}, invalidVersion(value, err)
		}
		out.local = parsedLocal
	}
	return out, nil
}

func splitCondaComponents(value string) ([][]condaAtom, error) {
	if value == "" {
		return nil, strconv.ErrSyntax
	}
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == '.' || r == '_'
	})
	if len(parts) == 0 || strings.Contains(value, "..") || strings.Contains(value, "__") {
		return nil, strconv.ErrSyntax
	}
	components := make([][]condaAtom, 0, len(parts))
	for _, part := range parts {
		atoms, err := splitCondaAtoms(part)
		if err != nil {
			return nil, err
		}
		components = append(components, atoms)
	}
	return components, nil
}

func splitCondaAtoms(part string) ([]condaAtom, error) {
	var atoms []condaAtom
	runes := []rune(part)
	for start := 0; start < len(runes); {
		end := start
		digits := unicode.IsDigit(runes[start])
		for end < len(runes) && unicode.IsDigit(runes[end]) == digits {
			end++
		}
		run := string(runes[start:end])
		if digits {
			num, err := strconv.ParseUint(run, 10, 64)
			if err != nil {
				return nil, err
			}
			atoms = append(atoms, condaAtom{kind: condaAtomNumber, num: num})
		} else {
			switch run {
			case "dev":
				atoms = append(atoms, condaAtom{kind: condaAtomDev})
			case "post":
				atoms = append(atoms, condaAtom{kind: condaAtomPost})
			default:
				atoms = append(atoms, condaAtom{kind: condaAtomString, str: run})
			}
		}
		start = end
	}
	if len(atoms) > 0 && atoms[0].kind != condaAtomNumber {
		atoms = append([]condaAtom{zeroAtom}, atoms...)
	}
	return atoms, nil
}

func (v condaVersion) compare(other condaVersion) int {
	if v.epoch != other.epoch {
		if v.epoch < other.epoch {
			return -1
		}
		return 1
	}
	if cmp := compareCondaComponents(v.version, other.version); cmp != 0 {
		return cmp
	}
	return compareCondaComponents(v.local, other.local)
}

// compareCondaComponents pads the shorter side with zero components.
func compareCondaComponents(a [][]condaAtom, b [][]condaAtom) int {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		left := []condaAtom{zeroAtom}
		if i < len(a) {
			left = a[i]
		}
		right := []condaAtom{zeroAtom}
		if i < len(b) {
			right = b[i]
		}
		m := max(len(left), len(right))
		for j := 0; j < m; j++ {
			x, y := zeroAtom, zeroAtom
			if j < len(left) {
				x = left[j]
			}
			if j < len(right) {
				y = right[j]
			}
			if cmp := compareCondaAtoms(x, y); cmp != 0 {
				return cmp
			}
		}
	}
	return 0
}

func compareCondaAtoms(a condaAtom, b condaAtom) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case condaAtomNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
	case condaAtomString:
		return strings.Compare(a.str, b.str)
	}
	return 0
}
