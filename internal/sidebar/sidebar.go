// Package sidebar resolves changelog-aware sidebar links into concrete items.
package sidebar

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilupskalvis/changelogs/internal/config"
	"github.com/kilupskalvis/changelogs/internal/models"
	"github.com/kilupskalvis/changelogs/internal/paths"
)

// Link types.
const (
	TypeAll    = "all"
	TypeLatest = "latest"
	TypeRecent = "recent"
)

// Item is a resolved sidebar link.
type Item struct {
	Label     string `json:"label" yaml:"label"`
	Href      string `json:"href" yaml:"href"`
	IsCurrent bool   `json:"isCurrent" yaml:"isCurrent"`
}

// Resolver turns sidebar link configs into items using the persisted loader
// config and the stored entries.
type Resolver struct {
	Loader      []models.LoaderConfig
	Entries     map[string][]*models.VersionEntry
	Links       paths.LinkOptions
	DefaultLang string
}

// ResolveAll resolves links in order.
func (r *Resolver) ResolveAll(links []config.SidebarLink, locale, currentPath string) ([]Item, error) {
	var items []Item
	for _, link := range links {
		resolved, err := r.Resolve(link, locale, currentPath)
		if err != nil {
			return nil, err
		}
		items = append(items, resolved...)
	}
	return items, nil
}

// Resolve returns the items of a single link. A disabled changelog yields none.
func (r *Resolver) Resolve(link config.SidebarLink, locale, currentPath string) ([]Item, error) {
	loader, ok := r.loaderFor(link.Base)
	if !ok {
		return nil, &models.UserError{
			Message: fmt.Sprintf("The changelog base %q used in sidebar links does not match any changelog loader base configuration.", link.Base),
			Hint:    "Check the base of every [[sidebar]] entry against the [[changelogs]] entries.",
		}
	}
	if !loader.Enabled {
		return nil, nil
	}

	entries := r.Entries[link.Base]
	lang := r.lang(locale)

	if link.Type == TypeRecent {
		count := link.Count
		if count > len(entries) {
			count = len(entries)
		}
		items := make([]Item, 0, count)
		for _, e := range entries[:count] {
			items = append(items, r.item(e.Title, paths.VersionPath(e, locale), currentPath))
		}
		return items, nil
	}

	label, err := r.label(link.Label, loader, lang)
	if err != nil {
		return nil, err
	}
	path := paths.VersionsPath(link.Base, locale, 0)
	if link.Type == TypeLatest && len(entries) > 0 {
		path = paths.VersionPath(entries[0], locale)
	}
	return []Item{r.item(label, path, currentPath)}, nil
}

func (r *Resolver) item(label, path, currentPath string) Item {
	href := r.Links.Link(path)
	return Item{
		Label:     label,
		Href:      href,
		IsCurrent: strings.Trim(currentPath, "/") == strings.Trim(href, "/"),
	}
}

func (r *Resolver) loaderFor(base string) (models.LoaderConfig, bool) {
	for _, l := range r.Loader {
		if l.Base == base {
			return l, true
		}
	}
	return models.LoaderConfig{}, false
}

func (r *Resolver) lang(locale string) string {
	if locale == "" {
		return r.defaultLang()
	}
	return locale
}

func (r *Resolver) defaultLang() string {
	if r.DefaultLang == "" {
		return "en"
	}
	return r.DefaultLang
}

// label resolves a link label. It may be plain text or a JSON object keyed by
// language; an empty label falls back to the changelog title.
func (r *Resolver) label(raw string, loader models.LoaderConfig, lang string) (string, error) {
	l := models.TextLabel(raw)
	if raw == "" {
		l = loader.Title
	} else {
		var byLocale map[string]string
		if err := json.Unmarshal([]byte(raw), &byLocale); err == nil {
			l = models.Label{ByLocale: byLocale}
		}
	}
	text, err := l.Resolve(lang, r.defaultLang())
	if err != nil {
		return "", models.NewUserError(fmt.Sprintf("Failed to resolve the sidebar label of changelog %q.", loader.Base), err)
	}
	return text, nil
}
