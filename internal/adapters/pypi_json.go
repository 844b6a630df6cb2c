package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"golang.org/x/sync/singleflight"

	"pixi-outdated/internal/ports"
	"pixi-outdated/internal/shared"
)

const DefaultPyPIURL = "https://pypi.org"

type pypiProject struct {
	Info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"info"`
}

// PyPIJSONAdapter reads the latest release from the registry JSON API.
type PyPIJSONAdapter struct {
	BaseURL string
	http    registryClient
	group   singleflight.Group
}

func NewPyPIJSONAdapter(baseURL string, timeoutSec int, retries int, retryDelayMs int) *PyPIJSONAdapter {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultPyPIURL
	}
	return &PyPIJSONAdapter{
		BaseURL: base,
		http:    newRegistryClient(normalizeHTTPConfig(timeoutSec, retries, retryDelayMs)),
	}
}

func (a *PyPIJSONAdapter) LatestVersion(ctx context.Context, name string) (string, error) {
	normalized := shared.NormalizePipName(name)
	if normalized == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("pypi package name is empty")
	}
	value, err, _ := a.group.Do(normalized, func() (any, error) {
		return a.fetchLatest(ctx, normalized)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (a *PyPIJSONAdapter) fetchLatest(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/pypi/%s/json", a.BaseURL, url.PathEscape(name))
	resp, err := a.http.get(ctx, endpoint, "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("package %s not found on PyPI", name))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to fetch pypi package").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, endpoint, errorBody(resp)))
	}
	var project pypiProject
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to parse pypi response").
			WithCause(err)
	}
	version := strings.TrimSpace(project.Info.Version)
	if version == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("pypi response for %s has no version", name))
	}
	return version, nil
}

var _ ports.PyPIPort = (*PyPIJSONAdapter)(nil)
