package models

// CacheMeta holds the validator of the last fresh response for a source.
// At most one of ETag and LastModified is set.
type CacheMeta struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// IsZero reports whether no validator is stored.
func (m CacheMeta) IsZero() bool {
	return m.ETag == "" && m.LastModified == ""
}
