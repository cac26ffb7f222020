package sidebar

import (
	"testing"

	"github.com/kilupskalvis/changelogs/internal/config"
	"github.com/kilupskalvis/changelogs/internal/models"
	"github.com/kilupskalvis/changelogs/internal/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver() *Resolver {
	entry := func(slug, title string) *models.VersionEntry {
		return &models.VersionEntry{ID: "changelog/version/" + slug, Title: title, Slug: slug, Base: "changelog"}
	}
	return &Resolver{
		Loader: []models.LoaderConfig{
			{Base: "changelog", Enabled: true, PageSize: 10, Title: models.TextLabel("Changelog")},
			{Base: "old", Enabled: false, PageSize: 10, Title: models.TextLabel("Old")},
			{Base: "empty", Enabled: true, PageSize: 10, Title: models.Label{ByLocale: map[string]string{"en": "Empty", "fr": "Vide"}}},
		},
		Entries: map[string][]*models.VersionEntry{
			"changelog": {entry("2-0-0", "2.0.0"), entry("1-1-0", "1.1.0"), entry("1-0-0", "1.0.0")},
		},
		Links:       paths.LinkOptions{Base: "/", TrailingSlash: "ignore"},
		DefaultLang: "en",
	}
}

func TestResolve_All(t *testing.T) {
	r := newTestResolver()
	items, err := r.Resolve(config.SidebarLink{Base: "changelog", Type: TypeAll, Label: "All versions"}, "", "/changelog")
	require.NoError(t, err)
	assert.Equal(t, []Item{{Label: "All versions", Href: "/changelog/", IsCurrent: true}}, items)
}

func TestResolve_Latest(t *testing.T) {
	r := newTestResolver()
	items, err := r.Resolve(config.SidebarLink{Base: "changelog", Type: TypeLatest, Label: "Latest"}, "fr", "/")
	require.NoError(t, err)
	assert.Equal(t, []Item{{Label: "Latest", Href: "/fr/changelog/version/2-0-0/"}}, items)

	// No entries: falls back to the listing.
	items, err = r.Resolve(config.SidebarLink{Base: "empty", Type: TypeLatest, Label: "Latest"}, "", "/")
	require.NoError(t, err)
	assert.Equal(t, "/empty/", items[0].Href)
}

func TestResolve_Recent(t *testing.T) {
	r := newTestResolver()
	items, err := r.Resolve(config.SidebarLink{Base: "changelog", Type: TypeRecent, Count: 2}, "", "/changelog/version/1-1-0/")
	require.NoError(t, err)
	assert.Equal(t, []Item{
		{Label: "2.0.0", Href: "/changelog/version/2-0-0/"},
		{Label: "1.1.0", Href: "/changelog/version/1-1-0/", IsCurrent: true},
	}, items)

	items, err = r.Resolve(config.SidebarLink{Base: "changelog", Type: TypeRecent, Count: 10}, "", "")
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestResolve_Labels(t *testing.T) {
	r := newTestResolver()

	items, err := r.Resolve(config.SidebarLink{Base: "changelog", Type: TypeAll, Label: `{"en":"All versions","fr":"Toutes les versions"}`}, "fr", "")
	require.NoError(t, err)
	assert.Equal(t, "Toutes les versions", items[0].Label)

	items, err = r.Resolve(config.SidebarLink{Base: "changelog", Type: TypeAll, Label: `{"en":"All versions"}`}, "de", "")
	require.NoError(t, err)
	assert.Equal(t, "All versions", items[0].Label)

	items, err = r.Resolve(config.SidebarLink{Base: "empty", Type: TypeAll}, "fr", "")
	require.NoError(t, err)
	assert.Equal(t, "Vide", items[0].Label, "empty label falls back to the changelog title")

	_, err = r.Resolve(config.SidebarLink{Base: "changelog", Type: TypeAll, Label: `{"fr":"Tout"}`}, "de", "")
	assert.Error(t, err)
}

func TestResolve_Disabled(t *testing.T) {
	r := newTestResolver()
	items, err := r.Resolve(config.SidebarLink{Base: "old", Type: TypeAll, Label: "Old"}, "", "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestResolve_UnknownBase(t *testing.T) {
	r := newTestResolver()
	_, err := r.Resolve(config.SidebarLink{Base: "missing", Type: TypeAll}, "", "")

	var ue *models.UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, `"missing" used in sidebar links does not match any changelog loader base`)
}

func TestResolveAll(t *testing.T) {
	r := newTestResolver()
	items, err := r.ResolveAll([]config.SidebarLink{
		{Base: "changelog", Type: TypeAll, Label: "All"},
		{Base: "old", Type: TypeAll, Label: "Old"},
		{Base: "changelog", Type: TypeRecent, Count: 1},
	}, "", "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "All", items[0].Label)
	assert.Equal(t, "2.0.0", items[1].Label)
}
