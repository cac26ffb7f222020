package paths

import (
	"fmt"
	"strings"

	"github.com/kilupskalvis/changelogs/internal/models"
)

// LinkOptions shapes generated hrefs.
type LinkOptions struct {
	// Base is the site base path, e.g. "/" or "/docs".
	Base string
	// TrailingSlash is "always", "ignore" or "never".
	TrailingSlash string
}

// Link turns a route path into an href under the site base.
func (o LinkOptions) Link(path string) string {
	base := strings.TrimSuffix(o.Base, "/")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		path = base + "/"
	} else {
		path = base + "/" + path
	}

	if o.TrailingSlash == "never" {
		return strings.TrimSuffix(path, "/")
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

// WithLocale prefixes path with a non-root locale.
func WithLocale(path, locale string) string {
	if locale == "" {
		return path
	}
	if path == "" {
		return locale
	}
	return locale + "/" + path
}

// VersionsPath is the route of the listing page at index (0-based).
func VersionsPath(base, locale string, index int) string {
	path := WithLocale(base, locale)
	if index == 0 {
		return path
	}
	return fmt.Sprintf("%s/%d", path, index+1)
}

// VersionPath is the route of a single version page.
func VersionPath(entry *models.VersionEntry, locale string) string {
	return WithLocale(entry.ID, locale)
}

// ComparePath is the route listing every version from entry up to the latest.
func ComparePath(entry *models.VersionEntry, locale string) string {
	return WithLocale(entry.ID+"...latest", locale)
}
