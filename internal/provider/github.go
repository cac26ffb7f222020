package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kilupskalvis/changelogs/internal/config"
	"github.com/kilupskalvis/changelogs/internal/httpcache"
	"github.com/kilupskalvis/changelogs/internal/models"
)

const (
	githubPerPage    = 100
	githubAPIVersion = "2022-11-28"
)

var githubInfo = models.ProviderInfo{Name: "github", Label: "GitHub"}

// GitHub loads published releases from the GitHub REST API.
type GitHub struct {
	client *httpcache.Client
}

// Fetch implements Fetcher.
func (g *GitHub) Fetch(ctx context.Context, src *config.Source, meta models.CacheMeta) (*Result, error) {
	apiBase := src.API
	if apiBase == "" {
		apiBase = config.DefaultGitHubAPI
	}

	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")
	header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if src.Token != "" {
		header.Set("Authorization", "Bearer "+src.Token)
	}

	return fetchReleases(ctx, g.client, &releaseAPI{
		name: "GitHub",
		info: githubInfo,
		pageURL: func(page int) string {
			q := url.Values{}
			q.Set("page", fmt.Sprint(page))
			q.Set("per_page", fmt.Sprint(githubPerPage))
			return fmt.Sprintf("%s/repos/%s/%s/releases?%s", apiBase, url.PathEscape(src.Owner), url.PathEscape(src.Repo), q.Encode())
		},
		header:      header,
		conditional: true,
	}, src, meta)
}
