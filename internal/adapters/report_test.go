package adapters

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixi-outdated/internal/types"
)

const forge = "https://conda.anaconda.org/conda-forge"

func outdated(name string, ecosystem types.Ecosystem, current string, latest string, platform string) types.OutdatedEntry {
	channel := ""
	if ecosystem == types.EcosystemConda {
		channel = forge
	}
	return types.OutdatedEntry{
		Identity:       types.NewPackageIdentity(name, ecosystem, channel),
		CurrentVersion: current,
		LatestVersion:  latest,
		Platform:       platform,
	}
}

func sampleReport() types.CoalescedReport {
	return types.CoalescedReport{
		Platforms: []string{"osx-arm64", "linux-64"},
		Common:    []types.OutdatedEntry{outdated("cowsay", types.EcosystemPyPI, "5.0", "6.1", "")},
		PerPlatform: map[string][]types.OutdatedEntry{
			"osx-arm64": {outdated("python", types.EcosystemConda, "3.12.12", "3.14.0", "osx-arm64")},
			"linux-64":  {outdated("python", types.EcosystemConda, "3.12.11", "3.14.0", "linux-64")},
		},
		Unchecked: []types.UncheckedEntry{{
			Identity:       types.NewPackageIdentity("private-lib", types.EcosystemPyPI, ""),
			CurrentVersion: "0.1",
			Platforms:      []string{"osx-arm64", "linux-64"},
			Reason:         "package private-lib not found on PyPI",
		}},
	}
}

func TestTextReportWriter(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewTextReportWriter(&out).Write(sampleReport()))
	want := strings.Join([]string{
		"All Platforms (1)",
		"NAME    CURRENT  LATEST  KIND",
		"cowsay  5.0      6.1     pypi",
		"",
		"Platform: osx-arm64 (1)",
		"NAME    CURRENT  LATEST  KIND",
		"python  3.12.12  3.14.0  conda",
		"",
		"Platform: linux-64 (1)",
		"NAME    CURRENT  LATEST  KIND",
		"python  3.12.11  3.14.0  conda",
		"",
		"Could not check (1)",
		"NAME         CURRENT  PLATFORMS           REASON",
		"private-lib  0.1      osx-arm64,linux-64  package private-lib not found on PyPI",
		"",
	}, "\n")
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Fatalf("unexpected text report (-want +got):\n%s", diff)
	}
}

func TestTextReportWriterSinglePlatformAndUpToDate(t *testing.T) {
	var out bytes.Buffer
	report := types.CoalescedReport{
		Platforms:   []string{"linux-64"},
		PerPlatform: map[string][]types.OutdatedEntry{"linux-64": {}},
	}
	require.NoError(t, NewTextReportWriter(&out).Write(report))
	assert.Equal(t, "All packages are up to date.\n", out.String())

	out.Reset()
	report.PerPlatform["linux-64"] = []types.OutdatedEntry{outdated("numpy", types.EcosystemConda, "2.2.0", "2.3.1", "linux-64")}
	require.NoError(t, NewTextReportWriter(&out).Write(report))
	assert.NotContains(t, out.String(), "All Platforms")
	assert.True(t, strings.HasPrefix(out.String(), "Platform: linux-64 (1)\n"))
}

func TestTextReportWriterNoUpdatesWithUncheckedPackages(t *testing.T) {
	var out bytes.Buffer
	numpy := types.NewPackageIdentity("numpy", types.EcosystemConda, forge)
	report := types.CoalescedReport{
		Platforms:   []string{"linux-64"},
		PerPlatform: map[string][]types.OutdatedEntry{"linux-64": {}},
		Unchecked: []types.UncheckedEntry{{
			Identity:       numpy,
			CurrentVersion: "2.2.0",
			Platforms:      []string{"linux-64"},
			Reason:         "request failed",
		}},
	}
	require.NoError(t, NewTextReportWriter(&out).Write(report))
	want := strings.Join([]string{
		"No updates found among checked packages; 1 package could not be checked.",
		"",
		"Could not check (1)",
		"NAME   CURRENT  PLATFORMS  REASON",
		"numpy  2.2.0    linux-64   request failed",
		"",
	}, "\n")
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Fatalf("unexpected text report (-want +got):\n%s", diff)
	}
	assert.NotContains(t, out.String(), "up to date")

	out.Reset()
	report.Unchecked = append(report.Unchecked, types.UncheckedEntry{
		Identity:       numpy,
		CurrentVersion: "2.1.0",
		Platforms:      []string{"linux-64"},
		Reason:         "request failed",
	}, types.UncheckedEntry{
		Identity:       types.NewPackageIdentity("zlib", types.EcosystemConda, forge),
		CurrentVersion: "1.3",
		Platforms:      []string{"linux-64"},
		Reason:         "request failed",
	})
	require.NoError(t, NewTextReportWriter(&out).Write(report))
	assert.True(t, strings.HasPrefix(out.String(), "No updates found among checked packages; 2 packages could not be checked.\n"))
}

func TestTextReportWriterWideCharacters(t *testing.T) {
	var b strings.Builder
	writeTable(&b, []string{"NAME", "KIND"}, [][]string{{"日本", "conda"}, {"abcde", "pypi"}})
	lines := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "NAME   KIND", lines[0])
	assert.Equal(t, "日本   conda", lines[1])
	assert.Equal(t, "abcde  pypi", lines[2])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed pipe")
}

func TestReportWritersPropagateWriteErrors(t *testing.T) {
	err := NewTextReportWriter(failingWriter{}).Write(sampleReport())
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))

	err = NewJSONReportWriter(failingWriter{}).Write(sampleReport())
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))
}

func TestJSONReportWriter(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewJSONReportWriter(&out).Write(sampleReport()))

	raw := out.String()
	assert.Less(t, strings.Index(raw, `"platforms"`), strings.Index(raw, `"common"`))
	assert.Less(t, strings.Index(raw, `"common"`), strings.Index(raw, `"per_platform"`))
	assert.Less(t, strings.Index(raw, `"osx-arm64": [`), strings.Index(raw, `"linux-64": [`))

	var decoded struct {
		Platforms   []string               `json:"platforms"`
		Common      []jsonEntry            `json:"common"`
		PerPlatform map[string][]jsonEntry `json:"per_platform"`
		Unchecked   []jsonUnchecked        `json:"unchecked"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, []string{"osx-arm64", "linux-64"}, decoded.Platforms)
	assert.Equal(t, []jsonEntry{{Name: "cowsay", Kind: "pypi", Current: "5.0", Latest: "6.1"}}, decoded.Common)
	assert.Equal(t, []jsonEntry{{Name: "python", Kind: "conda", Channel: forge, Current: "3.12.11", Latest: "3.14.0"}}, decoded.PerPlatform["linux-64"])
	require.Len(t, decoded.Unchecked, 1)
	assert.Equal(t, "package private-lib not found on PyPI", decoded.Unchecked[0].Reason)
}

func TestJSONReportWriterSinglePlatformOmitsCommon(t *testing.T) {
	var out bytes.Buffer
	report := types.CoalescedReport{
		Platforms:   []string{"linux-64"},
		PerPlatform: map[string][]types.OutdatedEntry{},
	}
	require.NoError(t, NewJSONReportWriter(&out).Write(report))

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.NotContains(t, decoded, "common")
	assert.JSONEq(t, `{"linux-64": []}`, string(decoded["per_platform"]))
	assert.JSONEq(t, `[]`, string(decoded["unchecked"]))
}
