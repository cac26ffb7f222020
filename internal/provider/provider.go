// Package provider loads version entries from upstream changelog sources.
//
// API providers (GitHub, Gitea) page through a releases endpoint and replace
// every stored entry of their base. File providers (Changeset, Keep a
// Changelog) split a Markdown document at level-2 headings and upsert entries
// by digest.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gosimple/slug"
	"github.com/kilupskalvis/changelogs/internal/config"
	"github.com/kilupskalvis/changelogs/internal/httpcache"
	"github.com/kilupskalvis/changelogs/internal/models"
)

// WriteMode tells the store how to apply a fetch result.
type WriteMode int

const (
	// Replace deletes every stored entry of the base before inserting.
	Replace WriteMode = iota
	// Upsert writes entries by id and skips those with an unchanged digest.
	Upsert
)

func (m WriteMode) String() string {
	if m == Upsert {
		return "upsert"
	}
	return "replace"
}

// Result is the outcome of a fetch. When Modified is false the stored entries
// and cache meta of the base must be left alone.
type Result struct {
	Modified bool
	Entries  []*models.VersionEntry
	Meta     models.CacheMeta
	Mode     WriteMode
}

// Unmodified returns the "nothing changed" result.
func Unmodified() *Result {
	return &Result{}
}

// Fetcher loads the entries of one changelog source, newest first.
type Fetcher interface {
	Fetch(ctx context.Context, src *config.Source, meta models.CacheMeta) (*Result, error)
}

// For returns the fetcher for a provider kind.
func For(kind config.ProviderKind, client *httpcache.Client) (Fetcher, error) {
	switch kind {
	case config.ProviderGitHub:
		return &GitHub{client: client}, nil
	case config.ProviderGitea:
		return &Gitea{client: client}, nil
	case config.ProviderChangeset:
		return &Markdown{client: client, format: changesetFormat}, nil
	case config.ProviderKeepAChangelog:
		return &Markdown{client: client, format: keepAChangelogFormat}, nil
	default:
		return nil, fmt.Errorf("missing loader implementation for provider %q", kind)
	}
}

// Slugify derives the slug of a version title. Dots and at-signs become word
// separators so "@scope/pkg@1.2.0" and "1.2.0" slug predictably.
func Slugify(title string) string {
	r := strings.NewReplacer(".", " ", "@", " ")
	return slug.Make(r.Replace(title))
}

// EntryID returns the id of a version with the given slug under base.
func EntryID(base, versionSlug string) string {
	return base + "/version/" + versionSlug
}

// Digest fingerprints an entry's identity and content.
func Digest(id, body string) string {
	h := xxhash.New()
	_, _ = h.WriteString(id)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(body)
	return fmt.Sprintf("%016x", h.Sum64())
}

// newEntry builds an entry for title, applying the process hook. It returns
// nil when the hook vetoes the title.
func newEntry(src *config.Source, process config.ProcessFunc, title, body string, info models.ProviderInfo) *models.VersionEntry {
	if process != nil {
		processed, ok := process(title)
		if !ok {
			return nil
		}
		title = processed
	}
	s := Slugify(title)
	return &models.VersionEntry{
		ID:       EntryID(src.Base, s),
		Title:    title,
		Slug:     s,
		Base:     src.Base,
		Body:     body,
		Provider: info,
	}
}
