// Package resource implements the ResourceHost: a resolver that maps a
// request URI onto a concrete filesystem artifact under a document root,
// the way backend/local's Fs resolves a remote path onto a disk path and
// backend/http's Fs resolves a remote path onto an HTTP URL.
package resource

import (
	"time"
)

// Resource is an owned, self-contained snapshot of something the
// resolver found: file bytes, or a generated directory listing.
type Resource struct {
	Location    string
	Bytes       []byte
	MimeType    string
	IsDirectory bool
	ModTime     time.Time
}

// Size returns the length of Bytes.
func (r *Resource) Size() int {
	return len(r.Bytes)
}

// defaultMimeType is used for file extensions the static table doesn't
// know and that content-sniffing can't identify either.
const defaultMimeType = "application/octet-stream"

// htmlMimeType is used for generated directory listings.
const htmlMimeType = "text/html"
