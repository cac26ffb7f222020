package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kilupskalvis/changelogs/internal/models"
)

// ProviderKind selects how a changelog source is loaded.
type ProviderKind string

const (
	ProviderGitHub         ProviderKind = "github"
	ProviderGitea          ProviderKind = "gitea"
	ProviderChangeset      ProviderKind = "changeset"
	ProviderKeepAChangelog ProviderKind = "keep-a-changelog"
)

// Defaults applied to changelog sources.
const (
	DefaultPageSize      = 10
	DefaultTitle         = "Changelog"
	DefaultGitHubAPI     = "https://api.github.com"
	DefaultGiteaAPI      = "https://gitea.com/api/v1"
	DefaultProviderLabel = "Gitea"
)

var urlPattern = regexp.MustCompile(`^https?://`)

// ProcessFunc rewrites a version title. Returning false excludes the version.
type ProcessFunc func(title string) (string, bool)

// ProcessConfig is the declarative form of a ProcessFunc.
type ProcessConfig struct {
	Match   string `toml:"match,omitempty"`
	Replace string `toml:"replace,omitempty"`
}

// SourceConfig is a changelog source as written in the config file.
type SourceConfig struct {
	Provider      string         `toml:"provider"`
	Base          string         `toml:"base"`
	Enabled       *bool          `toml:"enabled,omitempty"`
	Pagefind      *bool          `toml:"pagefind,omitempty"`
	PageSize      int            `toml:"page_size,omitempty"`
	Title         interface{}    `toml:"title,omitempty"`
	Owner         string         `toml:"owner,omitempty"`
	Repo          string         `toml:"repo,omitempty"`
	Token         string         `toml:"token,omitempty"`
	TokenEnv      string         `toml:"token_env,omitempty"`
	API           string         `toml:"api,omitempty"`
	ProviderLabel string         `toml:"provider_label,omitempty"`
	Changelog     string         `toml:"changelog,omitempty"`
	Process       *ProcessConfig `toml:"process,omitempty"`
}

// Source is a validated changelog source. It is never mutated after loading.
type Source struct {
	Provider ProviderKind
	Base     string
	Enabled  bool
	Pagefind bool
	PageSize int
	Title    models.Label

	// github, gitea
	Owner string
	Repo  string
	Token string
	API   string

	// gitea
	ProviderLabel string

	// changeset, keep-a-changelog: a URL or an absolute file path
	Changelog string

	Process ProcessFunc
}

// IsRemote reports whether the changelog file is fetched over HTTP.
func (s *Source) IsRemote() bool {
	return urlPattern.MatchString(s.Changelog)
}

// Serialize returns the subset of the source persisted for the navigation layer.
func (s *Source) Serialize() models.LoaderConfig {
	return models.LoaderConfig{
		Base:     s.Base,
		Enabled:  s.Enabled,
		Pagefind: s.Pagefind,
		PageSize: s.PageSize,
		Title:    s.Title,
	}
}

// String identifies the source in log lines and messages.
func (s *Source) String() string {
	switch s.Provider {
	case ProviderGitHub, ProviderGitea:
		return fmt.Sprintf("%s:%s/%s", s.Provider, s.Owner, s.Repo)
	default:
		return fmt.Sprintf("%s:%s", s.Provider, s.Changelog)
	}
}

// StripSlashes removes one leading and one trailing slash.
func StripSlashes(path string) string {
	path = strings.TrimSuffix(path, "/")
	return strings.TrimPrefix(path, "/")
}

// newProcessFunc compiles a declarative process hook.
func newProcessFunc(pc *ProcessConfig) (ProcessFunc, error) {
	if pc == nil || (pc.Match == "" && pc.Replace == "") {
		return nil, nil
	}
	pattern := pc.Match
	if pattern == "" {
		pattern = ".*"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid process.match: %w", err)
	}
	replace := pc.Replace
	return func(title string) (string, bool) {
		if !re.MatchString(title) {
			return "", false
		}
		if replace != "" {
			title = re.ReplaceAllString(title, replace)
		}
		title = strings.TrimSpace(title)
		return title, title != ""
	}, nil
}

// build validates a raw source and applies defaults. Issues are appended to
// issues; a nil source is returned when any were found.
func (sc *SourceConfig) build(index int, root string, issues *[]string) *Source {
	fail := func(format string, args ...interface{}) {
		*issues = append(*issues, fmt.Sprintf("changelogs[%d]: ", index)+fmt.Sprintf(format, args...))
	}
	start := len(*issues)

	src := &Source{
		Provider: ProviderKind(sc.Provider),
		Base:     StripSlashes(strings.TrimSpace(sc.Base)),
		Enabled:  true,
		Pagefind: true,
		PageSize: DefaultPageSize,
		Title:    models.TextLabel(DefaultTitle),
		Owner:    sc.Owner,
		Repo:     sc.Repo,
		Token:    sc.Token,
	}
	if sc.Enabled != nil {
		src.Enabled = *sc.Enabled
	}
	if sc.Pagefind != nil {
		src.Pagefind = *sc.Pagefind
	}
	if src.Token == "" && sc.TokenEnv != "" {
		src.Token = os.Getenv(sc.TokenEnv)
	}

	if src.Base == "" {
		fail("base is required")
	}
	switch {
	case sc.PageSize < 0:
		fail("page_size must be a positive number, got %d", sc.PageSize)
	case sc.PageSize > 0:
		src.PageSize = sc.PageSize
	}
	if sc.Title != nil {
		title, err := models.ParseLabel(sc.Title)
		if err != nil {
			fail("invalid title: %v", err)
		} else if !title.IsZero() {
			src.Title = title
		}
	}
	process, err := newProcessFunc(sc.Process)
	if err != nil {
		fail("%v", err)
	}
	src.Process = process

	switch src.Provider {
	case ProviderGitHub:
		src.API = strings.TrimSuffix(sc.API, "/")
		if src.API == "" {
			src.API = DefaultGitHubAPI
		}
		requireRepo(sc, fail)
	case ProviderGitea:
		src.API = strings.TrimSuffix(sc.API, "/")
		if src.API == "" {
			src.API = DefaultGiteaAPI
		}
		if u, err := url.Parse(src.API); err != nil || u.Scheme == "" || u.Host == "" {
			fail("api must be a valid URL, got %q", sc.API)
		}
		src.ProviderLabel = sc.ProviderLabel
		if src.ProviderLabel == "" {
			src.ProviderLabel = DefaultProviderLabel
		}
		requireRepo(sc, fail)
	case ProviderChangeset, ProviderKeepAChangelog:
		if sc.Changelog == "" {
			fail("changelog is required for provider %q", sc.Provider)
		}
		src.Changelog = sc.Changelog
		if src.Changelog != "" && !src.IsRemote() && !filepath.IsAbs(src.Changelog) {
			src.Changelog = filepath.Join(root, src.Changelog)
		}
	case "":
		fail("provider is required")
	default:
		fail("unknown provider %q (expected github, gitea, changeset or keep-a-changelog)", sc.Provider)
	}

	if len(*issues) > start {
		return nil
	}
	return src
}

func requireRepo(sc *SourceConfig, fail func(string, ...interface{})) {
	if sc.Owner == "" {
		fail("owner is required for provider %q", sc.Provider)
	}
	if sc.Repo == "" {
		fail("repo is required for provider %q", sc.Provider)
	}
}
