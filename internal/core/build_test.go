package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/kilupskalvis/changelogs/internal/config"
	"github.com/kilupskalvis/changelogs/internal/httpcache"
	"github.com/kilupskalvis/changelogs/internal/models"
	"github.com/kilupskalvis/changelogs/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// releasesServer serves two GitHub releases and answers 304 to a matching ETag.
func releasesServer(t *testing.T, requests *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		if r.Header.Get("If-None-Match") == `"releases-v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"releases-v1"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"tag_name":"v2.0.0","name":"2.0.0","body":"Second","draft":false,"prerelease":false,"html_url":"https://example.com/v2.0.0","published_at":"2024-02-01T00:00:00Z"},
			{"tag_name":"v1.0.0","name":"1.0.0","body":"First","draft":false,"prerelease":false,"html_url":"https://example.com/v1.0.0","published_at":"2024-01-01T00:00:00Z"}
		]`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testProject struct {
	dir     string
	cfg     *config.Config
	store   store.Store
	builder *Builder
}

func newTestProject(t *testing.T, driver, apiURL string) *testProject {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CHANGELOG.md"), []byte(`# Changelog

## [Unreleased]

## [1.1.0] - 2024-03-01

- Added things.

## [1.0.0] - 2024-01-01

- Initial release.

[unreleased]: https://example.com/compare/v1.1.0...HEAD
[1.1.0]: https://example.com/compare/v1.0.0...v1.1.0
[1.0.0]: https://example.com/releases/tag/v1.0.0
`), 0644))

	data := fmt.Sprintf(`
[store]
driver = %q

[[changelogs]]
provider = "github"
base = "releases"
owner = "o"
repo = "r"
api = %q
page_size = 1

[[changelogs]]
provider = "keep-a-changelog"
base = "changelog"
changelog = "CHANGELOG.md"
title = { en = "Changelog", fr = "Journal" }

[[changelogs]]
provider = "changeset"
base = "disabled"
changelog = "missing.md"
enabled = false

[[sidebar]]
base = "releases"
type = "latest"
label = "Latest release"
`, driver, apiURL)

	cfg, err := config.Parse([]byte(data), filepath.Join(dir, config.DefaultConfigFile))
	require.NoError(t, err)

	st, err := store.Open(cfg.Store.Driver, cfg.DatabasePath())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	b := NewBuilder(cfg, st, Options{Retry: &httpcache.RetryConfig{MaxRetries: 0}})
	return &testProject{dir: dir, cfg: cfg, store: st, builder: b}
}

func TestBuild_EndToEnd(t *testing.T) {
	for _, driver := range []string{store.DriverBolt, store.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			var requests int32
			srv := releasesServer(t, &requests)
			p := newTestProject(t, driver, srv.URL)

			report, err := p.builder.Build(context.Background())
			require.NoError(t, err)
			assert.NotEmpty(t, report.BuildID)
			assert.True(t, report.LoaderConfigWritten)
			assert.True(t, report.ManifestWritten)
			require.Len(t, report.Sources, 2)
			assert.Equal(t, &SourceReport{Base: "releases", Source: "github:o/r", Modified: true, Mode: "replace", Written: 2}, report.Sources[0])
			assert.Equal(t, 2, report.Sources[1].Written)

			releases, err := p.store.ListBase("releases")
			require.NoError(t, err)
			require.Len(t, releases, 2)
			assert.Equal(t, "releases/version/2-0-0", releases[0].ID)
			assert.True(t, releases[0].Latest)

			meta, err := p.store.GetCacheMeta("releases")
			require.NoError(t, err)
			assert.Equal(t, models.CacheMeta{ETag: `"releases-v1"`}, meta)

			changelog, err := p.store.ListBase("changelog")
			require.NoError(t, err)
			require.Len(t, changelog, 2)
			assert.Equal(t, "1.1.0", changelog[0].Title)

			// 2 listing pages + 2 versions + 2 compares, then 1 page + 2 + 2.
			assert.Equal(t, 11, report.Paths)

			loaderData, err := os.ReadFile(p.cfg.LoaderConfigPath())
			require.NoError(t, err)
			assert.JSONEq(t, `[
				{"base":"releases","enabled":true,"pagefind":true,"pageSize":1,"title":"Changelog"},
				{"base":"changelog","enabled":true,"pagefind":true,"pageSize":10,"title":{"en":"Changelog","fr":"Journal"}},
				{"base":"disabled","enabled":false,"pagefind":true,"pageSize":10,"title":"Changelog"}
			]`, string(loaderData))

			manifest, err := os.ReadFile(p.cfg.PathsManifestPath())
			require.NoError(t, err)
			var generated []*models.StaticPath
			require.NoError(t, json.Unmarshal(manifest, &generated))
			assert.Len(t, generated, 11)
			assert.Equal(t, "releases", generated[0].Params.Slug)
		})
	}
}

func TestBuild_SecondRunIsIdempotent(t *testing.T) {
	var requests int32
	srv := releasesServer(t, &requests)
	p := newTestProject(t, store.DriverBolt, srv.URL)

	_, err := p.builder.Build(context.Background())
	require.NoError(t, err)
	before, err := p.store.ListBase("releases")
	require.NoError(t, err)

	report, err := p.builder.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
	assert.False(t, report.LoaderConfigWritten, "loader config is unchanged")
	assert.False(t, report.ManifestWritten, "paths manifest is unchanged")

	assert.False(t, report.Sources[0].Modified, "304 leaves the releases untouched")
	assert.Equal(t, &SourceReport{Base: "changelog", Source: report.Sources[1].Source, Modified: true, Mode: "upsert", Unchanged: 2}, report.Sources[1])

	after, err := p.store.ListBase("releases")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	meta, err := p.store.GetCacheMeta("releases")
	require.NoError(t, err)
	assert.Equal(t, `"releases-v1"`, meta.ETag)
}

func TestBuild_PrunesDisabledBases(t *testing.T) {
	var requests int32
	srv := releasesServer(t, &requests)
	p := newTestProject(t, store.DriverBolt, srv.URL)

	require.NoError(t, p.store.ReplaceBase("disabled", []*models.VersionEntry{{ID: "disabled/version/1", Title: "1", Base: "disabled"}}))
	require.NoError(t, p.store.ReplaceBase("removed", []*models.VersionEntry{{ID: "removed/version/1", Title: "1", Base: "removed"}}))

	report, err := p.builder.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"disabled", "removed"}, report.Pruned)

	bases, err := p.store.Bases()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"changelog", "releases"}, bases)
}

func TestBuild_SourceErrorAbortsBuild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	p := newTestProject(t, store.DriverBolt, srv.URL)

	_, err := p.builder.Build(context.Background())
	var ue *models.UserError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Failed to fetch GitHub data: 401 - Unauthorized", ue.Message)
}

func TestBuilder_Sidebar(t *testing.T) {
	var requests int32
	srv := releasesServer(t, &requests)
	p := newTestProject(t, store.DriverBolt, srv.URL)

	_, err := p.builder.Build(context.Background())
	require.NoError(t, err)

	items, err := p.builder.Sidebar("", "/releases/version/2-0-0/")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Latest release", items[0].Label)
	assert.Equal(t, "/releases/version/2-0-0/", items[0].Href)
	assert.True(t, items[0].IsCurrent)
}

func TestBuilder_WatchPathsAndMetrics(t *testing.T) {
	var requests int32
	srv := releasesServer(t, &requests)
	p := newTestProject(t, store.DriverBolt, srv.URL)

	assert.Equal(t, []string{p.cfg.Path(), filepath.Join(p.dir, "CHANGELOG.md")}, p.builder.WatchPaths())

	_, err := p.builder.Build(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	p.builder.WriteMetrics(&buf)
	assert.Contains(t, buf.String(), "changelogs_builds_total 1")
	assert.Contains(t, buf.String(), "changelogs_http_requests_total 1")
}
