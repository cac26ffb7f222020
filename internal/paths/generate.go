// Package paths expands stored version entries into static page descriptors:
// paginated listings, one page per version, and one compare page per version
// covering every release from it up to the latest.
package paths

import (
	"fmt"

	"github.com/kilupskalvis/changelogs/internal/models"
)

const (
	labelNewer = "Newer versions"
	labelOlder = "Older versions"
)

// Options configures Generate.
type Options struct {
	// Locales to emit pages for. Empty means the root locale only.
	Locales []string
	Links   LinkOptions
}

// Paginate groups items into pages of size. It always returns at least one
// page so an empty changelog still gets a listing.
func Paginate[T any](items []T, size int) [][]T {
	var pages [][]T
	for _, item := range items {
		if n := len(pages); n == 0 || len(pages[n-1]) == size {
			pages = append(pages, []T{item})
		} else {
			pages[n-1] = append(pages[n-1], item)
		}
	}
	if len(pages) == 0 {
		pages = append(pages, []T{})
	}
	return pages
}

// Decorate wraps newest-first entries with version and compare navigation.
// Prev points at the newer neighbour and next at the older one, across page
// boundaries. The first entry is flagged latest.
func Decorate(entries []*models.VersionEntry, locale string, links LinkOptions) []*models.NavEntry {
	nav := make([]*models.NavEntry, len(entries))
	for i, e := range entries {
		n := &models.NavEntry{VersionEntry: *e}
		n.Latest = i == 0
		if i > 0 {
			prev := entries[i-1]
			n.Pagination.Prev = &models.Link{Label: prev.Title, Link: links.Link(VersionPath(prev, locale))}
			n.Compare.Prev = &models.Link{Label: prev.Title, Link: links.Link(ComparePath(prev, locale))}
		}
		if i+1 < len(entries) {
			next := entries[i+1]
			n.Pagination.Next = &models.Link{Label: next.Title, Link: links.Link(VersionPath(next, locale))}
			n.Compare.Next = &models.Link{Label: next.Title, Link: links.Link(ComparePath(next, locale))}
		}
		nav[i] = n
	}
	return nav
}

// Generate emits the static paths of every enabled changelog for every locale.
// entries maps a base to its entries, newest first.
func Generate(sources []models.LoaderConfig, entries map[string][]*models.VersionEntry, opts Options) ([]*models.StaticPath, error) {
	locales := opts.Locales
	if len(locales) == 0 {
		locales = []string{""}
	}

	var paths []*models.StaticPath
	for _, changelog := range sources {
		if !changelog.Enabled {
			continue
		}
		if changelog.PageSize <= 0 {
			return nil, fmt.Errorf("changelog %q: page size must be positive, got %d", changelog.Base, changelog.PageSize)
		}
		for _, locale := range locales {
			paths = append(paths, generateLocale(changelog, entries[changelog.Base], locale, opts.Links)...)
		}
	}
	return paths, nil
}

func generateLocale(changelog models.LoaderConfig, entries []*models.VersionEntry, locale string, links LinkOptions) []*models.StaticPath {
	nav := Decorate(entries, locale, links)
	pages := Paginate(nav, changelog.PageSize)

	versions := make([]models.VersionLink, 0, len(nav))
	for _, e := range nav {
		versions = append(versions, models.VersionLink{Title: e.Title, Link: links.Link(VersionPath(&e.VersionEntry, locale))})
	}

	var (
		paths       []*models.StaticPath
		accumulated []*models.NavEntry
	)
	for index, page := range pages {
		paths = append(paths, versionsPath(changelog, pages, index, locale, links, versions))
		for _, entry := range page {
			paths = append(paths, &models.StaticPath{
				Params: models.PathParams{Slug: VersionPath(&entry.VersionEntry, locale)},
				Props: models.PathProps{
					Type:      models.PathVersion,
					Changelog: changelog,
					Entry:     entry,
					Locale:    locale,
					Versions:  versions,
				},
			})

			accumulated = append(accumulated, entry)
			paths = append(paths, &models.StaticPath{
				Params: models.PathParams{Slug: ComparePath(&entry.VersionEntry, locale)},
				Props: models.PathProps{
					Type:      models.PathCompare,
					Changelog: changelog,
					Entries:   reversed(accumulated),
					Entry:     entry,
					Locale:    locale,
					Versions:  versions,
				},
			})
		}
	}
	return paths
}

func versionsPath(changelog models.LoaderConfig, pages [][]*models.NavEntry, index int, locale string, links LinkOptions, versions []models.VersionLink) *models.StaticPath {
	pagination := &models.Pagination{}
	if index > 0 {
		pagination.Prev = &models.Link{Label: labelNewer, Link: links.Link(VersionsPath(changelog.Base, locale, index-1))}
	}
	if index+1 < len(pages) {
		pagination.Next = &models.Link{Label: labelOlder, Link: links.Link(VersionsPath(changelog.Base, locale, index+1))}
	}
	return &models.StaticPath{
		Params: models.PathParams{Slug: VersionsPath(changelog.Base, locale, index)},
		Props: models.PathProps{
			Type:       models.PathVersions,
			Changelog:  changelog,
			Entries:    pages[index],
			Locale:     locale,
			Pagination: pagination,
			Versions:   versions,
		},
	}
}

func reversed[T any](items []T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out
}
