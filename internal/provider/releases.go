package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/kilupskalvis/changelogs/internal/config"
	"github.com/kilupskalvis/changelogs/internal/httpcache"
	"github.com/kilupskalvis/changelogs/internal/models"
)

var nextPagePattern = regexp.MustCompile(`(?i)[&?]page=(\d+)[^>\s]*>;\s*rel="next"`)

// release is the subset of a GitHub or Gitea release object we read.
type release struct {
	TagName     string     `json:"tag_name"`
	Name        *string    `json:"name"`
	Body        *string    `json:"body"`
	Draft       bool       `json:"draft"`
	Prerelease  bool       `json:"prerelease"`
	HTMLURL     string     `json:"html_url"`
	PublishedAt *time.Time `json:"published_at"`
}

func (r *release) title() string {
	if r.Name != nil && *r.Name != "" {
		return *r.Name
	}
	return r.TagName
}

// nextPage returns the page number of the rel="next" link, or 0.
func nextPage(h http.Header) int {
	m := nextPagePattern.FindStringSubmatch(h.Get("Link"))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// releaseAPI describes how one releases endpoint is paged.
type releaseAPI struct {
	name        string // display name used in error messages
	info        models.ProviderInfo
	pageURL     func(page int) string
	header      http.Header
	conditional bool
}

// fetchReleases pages through a releases endpoint until no next link is
// returned. Validators are only sent with and taken from the first page.
func fetchReleases(ctx context.Context, client *httpcache.Client, api *releaseAPI, src *config.Source, meta models.CacheMeta) (*Result, error) {
	var (
		entries []*models.VersionEntry
		newMeta models.CacheMeta
	)
	for page := 1; page > 0; {
		url := api.pageURL(page)

		var (
			resp *httpcache.Response
			err  error
		)
		if api.conditional && page == 1 {
			resp, err = client.Get(ctx, url, api.header, meta)
		} else {
			resp, err = client.GetPlain(ctx, url, api.header)
		}
		if err != nil {
			var se *httpcache.StatusError
			if errors.As(err, &se) {
				return nil, models.NewUserError(fmt.Sprintf("Failed to fetch %s data: %d - %s", api.name, se.Status, se.StatusText), err)
			}
			return nil, models.NewUserError(fmt.Sprintf("Failed to fetch %s data from %s.", api.name, url), err)
		}
		if resp.NotModified {
			return Unmodified(), nil
		}
		if page == 1 && api.conditional {
			newMeta = resp.Meta
		}

		var releases []release
		if err := json.Unmarshal(resp.Body, &releases); err != nil {
			return nil, models.NewUserError(fmt.Sprintf("Failed to parse %s data.", api.name), err)
		}
		for i := range releases {
			if entry := releaseEntry(src, &releases[i], api.info); entry != nil {
				entries = append(entries, entry)
			}
		}

		page = nextPage(resp.Header)
	}

	if len(entries) == 0 {
		return Unmodified(), nil
	}
	return &Result{Modified: true, Entries: entries, Meta: newMeta, Mode: Replace}, nil
}

func releaseEntry(src *config.Source, r *release, info models.ProviderInfo) *models.VersionEntry {
	if r.Draft || r.Prerelease {
		return nil
	}
	var body string
	if r.Body != nil {
		body = *r.Body
	}
	entry := newEntry(src, src.Process, r.title(), body, info)
	if entry == nil {
		return nil
	}
	entry.Link = r.HTMLURL
	if r.PublishedAt != nil {
		date := r.PublishedAt.UTC()
		entry.Date = &date
	}
	return entry
}
