package models

// PathType is the kind of page a static path renders.
type PathType string

const (
	PathVersions PathType = "versions"
	PathVersion  PathType = "version"
	PathCompare  PathType = "compare"
)

// LoaderConfig is the subset of a changelog source persisted for the
// navigation layer.
type LoaderConfig struct {
	Base     string `json:"base"`
	Enabled  bool   `json:"enabled"`
	Pagefind bool   `json:"pagefind"`
	PageSize int    `json:"pageSize"`
	Title    Label  `json:"title"`
}

// VersionLink is one option of the version picker.
type VersionLink struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// PathParams are the route parameters of a static path.
type PathParams struct {
	Slug string `json:"slug"`
}

// PathProps is the data bundle handed to the page renderer.
type PathProps struct {
	Type       PathType      `json:"type"`
	Changelog  LoaderConfig  `json:"changelog"`
	Entries    []*NavEntry   `json:"entries,omitempty"`
	Entry      *NavEntry     `json:"entry,omitempty"`
	Locale     string        `json:"locale,omitempty"`
	Pagination *Pagination   `json:"pagination,omitempty"`
	Versions   []VersionLink `json:"versions"`
}

// StaticPath describes one generated page.
type StaticPath struct {
	Params PathParams `json:"params"`
	Props  PathProps  `json:"props"`
}
