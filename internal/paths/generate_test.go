package paths

import (
	"fmt"
	"testing"

	"github.com/kilupskalvis/changelogs/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEntries(base string, n int) []*models.VersionEntry {
	entries := make([]*models.VersionEntry, 0, n)
	for i := n; i > 0; i-- {
		slug := fmt.Sprintf("1-%d-0", i)
		entries = append(entries, &models.VersionEntry{
			ID:    base + "/version/" + slug,
			Title: fmt.Sprintf("1.%d.0", i),
			Slug:  slug,
			Base:  base,
		})
	}
	return entries
}

func loaderConfig(base string, pageSize int) models.LoaderConfig {
	return models.LoaderConfig{Base: base, Enabled: true, Pagefind: true, PageSize: pageSize, Title: models.TextLabel("Changelog")}
}

func byType(paths []*models.StaticPath, typ models.PathType) []*models.StaticPath {
	var out []*models.StaticPath
	for _, p := range paths {
		if p.Props.Type == typ {
			out = append(out, p)
		}
	}
	return out
}

var defaultLinks = LinkOptions{Base: "/", TrailingSlash: "ignore"}

func TestLinkOptions_Link(t *testing.T) {
	tests := []struct {
		opts LinkOptions
		path string
		want string
	}{
		{LinkOptions{Base: "/", TrailingSlash: "ignore"}, "changelog", "/changelog/"},
		{LinkOptions{Base: "/", TrailingSlash: "always"}, "/changelog/", "/changelog/"},
		{LinkOptions{Base: "/", TrailingSlash: "never"}, "changelog/", "/changelog"},
		{LinkOptions{Base: "/docs/", TrailingSlash: "never"}, "changelog/version/1-0-0", "/docs/changelog/version/1-0-0"},
		{LinkOptions{Base: "/docs", TrailingSlash: "ignore"}, "", "/docs/"},
		{LinkOptions{Base: "/", TrailingSlash: "never"}, "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.opts.Link(tt.path), "%+v %q", tt.opts, tt.path)
	}
}

func TestRoutes(t *testing.T) {
	entry := &models.VersionEntry{ID: "changelog/version/2-3-0"}

	assert.Equal(t, "changelog", VersionsPath("changelog", "", 0))
	assert.Equal(t, "changelog/2", VersionsPath("changelog", "", 1))
	assert.Equal(t, "fr/changelog/3", VersionsPath("changelog", "fr", 2))
	assert.Equal(t, "changelog/version/2-3-0", VersionPath(entry, ""))
	assert.Equal(t, "fr/changelog/version/2-3-0", VersionPath(entry, "fr"))
	assert.Equal(t, "changelog/version/2-3-0...latest", ComparePath(entry, ""))
}

func TestPaginate(t *testing.T) {
	pages := Paginate(makeEntries("changelog", 25), 10)
	require.Len(t, pages, 3)
	assert.Len(t, pages[0], 10)
	assert.Len(t, pages[1], 10)
	assert.Len(t, pages[2], 5)

	pages = Paginate(makeEntries("changelog", 20), 10)
	assert.Len(t, pages, 2)

	empty := Paginate([]*models.VersionEntry{}, 10)
	require.Len(t, empty, 1)
	assert.Empty(t, empty[0])
}

func TestDecorate(t *testing.T) {
	entries := makeEntries("changelog", 3)
	nav := Decorate(entries, "", defaultLinks)
	require.Len(t, nav, 3)

	assert.True(t, nav[0].Latest)
	assert.False(t, nav[1].Latest)
	assert.Nil(t, nav[0].Pagination.Prev)
	assert.Nil(t, nav[0].Compare.Prev)
	assert.Equal(t, &models.Link{Label: "1.2.0", Link: "/changelog/version/1-2-0/"}, nav[0].Pagination.Next)
	assert.Equal(t, &models.Link{Label: "1.2.0", Link: "/changelog/version/1-2-0...latest/"}, nav[0].Compare.Next)

	assert.Equal(t, &models.Link{Label: "1.3.0", Link: "/changelog/version/1-3-0/"}, nav[1].Pagination.Prev)
	assert.Nil(t, nav[2].Pagination.Next)
	assert.Nil(t, nav[2].Compare.Next)

	assert.False(t, entries[1].Latest, "source entries are not modified")
}

func TestGenerate_PageCounts(t *testing.T) {
	entries := map[string][]*models.VersionEntry{"changelog": makeEntries("changelog", 25)}
	paths, err := Generate([]models.LoaderConfig{loaderConfig("changelog", 10)}, entries, Options{Links: defaultLinks})
	require.NoError(t, err)

	listings := byType(paths, models.PathVersions)
	require.Len(t, listings, 3)
	assert.Len(t, listings[0].Props.Entries, 10)
	assert.Len(t, listings[1].Props.Entries, 10)
	assert.Len(t, listings[2].Props.Entries, 5)
	assert.Len(t, byType(paths, models.PathVersion), 25)
	assert.Len(t, byType(paths, models.PathCompare), 25)
	assert.Len(t, paths, 53)

	assert.Equal(t, "changelog", listings[0].Params.Slug)
	assert.Equal(t, "changelog/2", listings[1].Params.Slug)
	assert.Equal(t, "changelog/3", listings[2].Params.Slug)

	assert.Nil(t, listings[0].Props.Pagination.Prev)
	assert.Equal(t, &models.Link{Label: "Older versions", Link: "/changelog/2/"}, listings[0].Props.Pagination.Next)
	assert.Equal(t, &models.Link{Label: "Newer versions", Link: "/changelog/"}, listings[1].Props.Pagination.Prev)
	assert.Equal(t, &models.Link{Label: "Older versions", Link: "/changelog/3/"}, listings[1].Props.Pagination.Next)
	assert.Nil(t, listings[2].Props.Pagination.Next)

	assert.Len(t, listings[0].Props.Versions, 25)
	assert.Equal(t, models.VersionLink{Title: "1.25.0", Link: "/changelog/version/1-25-0/"}, listings[0].Props.Versions[0])
}

func TestGenerate_EmptyChangelog(t *testing.T) {
	paths, err := Generate([]models.LoaderConfig{loaderConfig("changelog", 10)}, nil, Options{Links: defaultLinks})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, models.PathVersions, paths[0].Props.Type)
	assert.Empty(t, paths[0].Props.Entries)
	assert.Nil(t, paths[0].Props.Pagination.Prev)
	assert.Nil(t, paths[0].Props.Pagination.Next)
}

func TestGenerate_Disabled(t *testing.T) {
	cfg := loaderConfig("changelog", 10)
	cfg.Enabled = false
	entries := map[string][]*models.VersionEntry{"changelog": makeEntries("changelog", 5)}

	paths, err := Generate([]models.LoaderConfig{cfg}, entries, Options{Links: defaultLinks})
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestGenerate_InvalidPageSize(t *testing.T) {
	_, err := Generate([]models.LoaderConfig{loaderConfig("changelog", 0)}, nil, Options{})
	assert.Error(t, err)
}

func TestGenerate_SingleLatest(t *testing.T) {
	entries := map[string][]*models.VersionEntry{"changelog": makeEntries("changelog", 12)}
	paths, err := Generate([]models.LoaderConfig{loaderConfig("changelog", 5)}, entries, Options{Links: defaultLinks})
	require.NoError(t, err)

	var latest []string
	for _, p := range byType(paths, models.PathVersion) {
		if p.Props.Entry.Latest {
			latest = append(latest, p.Props.Entry.Title)
		}
	}
	assert.Equal(t, []string{"1.12.0"}, latest)
}

func TestGenerate_CompareEntries(t *testing.T) {
	source := makeEntries("changelog", 7)
	entries := map[string][]*models.VersionEntry{"changelog": source}
	paths, err := Generate([]models.LoaderConfig{loaderConfig("changelog", 3)}, entries, Options{Links: defaultLinks})
	require.NoError(t, err)

	compares := byType(paths, models.PathCompare)
	require.Len(t, compares, len(source))

	for i, p := range compares {
		assert.Equal(t, source[i].ID, p.Props.Entry.ID)
		assert.Equal(t, source[i].ID+"...latest", p.Params.Slug)

		// Reversing the compare entries yields the newest-first prefix
		// ending at the compared entry.
		got := p.Props.Entries
		require.Len(t, got, i+1)
		for j := range got {
			assert.Equal(t, source[j].ID, got[len(got)-1-j].ID)
		}
		assert.Equal(t, source[i].ID, got[0].ID)
		assert.True(t, got[len(got)-1].Latest)
	}
}

func TestGenerate_Locales(t *testing.T) {
	entries := map[string][]*models.VersionEntry{"changelog": makeEntries("changelog", 2)}
	paths, err := Generate([]models.LoaderConfig{loaderConfig("changelog", 10)}, entries, Options{
		Locales: []string{"", "fr"},
		Links:   LinkOptions{Base: "/docs", TrailingSlash: "never"},
	})
	require.NoError(t, err)
	require.Len(t, paths, 10)

	fr := paths[5]
	assert.Equal(t, "fr/changelog", fr.Params.Slug)
	assert.Equal(t, "fr", fr.Props.Locale)
	assert.Equal(t, "/docs/fr/changelog/version/1-2-0", fr.Props.Versions[0].Link)

	version := paths[6]
	assert.Equal(t, models.PathVersion, version.Props.Type)
	assert.Equal(t, "fr/changelog/version/1-2-0", version.Params.Slug)
	assert.Equal(t, "/docs/fr/changelog/version/1-1-0", version.Props.Entry.Pagination.Next.Link)
}
