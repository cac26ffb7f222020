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

const giteaLimit = 50

// Gitea loads published releases from a Gitea compatible API such as
// Codeberg or Forgejo.
//
// Requests are never conditional: a 304 from a Gitea server is reported as an
// unexpected status like any other non-2xx response.
type Gitea struct {
	client *httpcache.Client
}

// Fetch implements Fetcher.
func (g *Gitea) Fetch(ctx context.Context, src *config.Source, meta models.CacheMeta) (*Result, error) {
	apiBase := src.API
	if apiBase == "" {
		apiBase = config.DefaultGiteaAPI
	}
	label := src.ProviderLabel
	if label == "" {
		label = config.DefaultProviderLabel
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if src.Token != "" {
		header.Set("Authorization", "token "+src.Token)
	}

	return fetchReleases(ctx, g.client, &releaseAPI{
		name: "Gitea",
		info: models.ProviderInfo{Name: "gitea", Label: label},
		pageURL: func(page int) string {
			q := url.Values{}
			q.Set("limit", fmt.Sprint(giteaLimit))
			q.Set("page", fmt.Sprint(page))
			return fmt.Sprintf("%s/repos/%s/%s/releases?%s", apiBase, url.PathEscape(src.Owner), url.PathEscape(src.Repo), q.Encode())
		},
		header: header,
	}, src, meta)
}
