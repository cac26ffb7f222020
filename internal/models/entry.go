package models

import "time"

// ProviderInfo identifies where a version entry was loaded from.
type ProviderInfo struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// VersionEntry is a single release of a changelog.
type VersionEntry struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Slug     string       `json:"slug"`
	Base     string       `json:"base"`
	Body     string       `json:"body"`
	Date     *time.Time   `json:"date,omitempty"`
	Link     string       `json:"link,omitempty"`
	Provider ProviderInfo `json:"provider"`
	Digest   string       `json:"digest,omitempty"`
	Latest   bool         `json:"latest,omitempty"`
}

// Link is a labeled navigation target.
type Link struct {
	Label string `json:"label"`
	Link  string `json:"link"`
}

// Pagination holds the previous and next links of a page. Either may be nil.
type Pagination struct {
	Prev *Link `json:"prev,omitempty"`
	Next *Link `json:"next,omitempty"`
}

// NavEntry is a version entry decorated with its navigation links.
// Pagination walks single versions, Compare walks compare ranges.
type NavEntry struct {
	VersionEntry
	Pagination Pagination `json:"pagination"`
	Compare    Pagination `json:"compare"`
}
