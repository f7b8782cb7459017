package resource

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// cacheExpiration and cacheCleanupInterval size the go-cache instance
// backing Host's content cache, following the Memory.Connect shape
// backend/cache wraps the same library with.
const (
	cacheExpiration      = 5 * time.Minute
	cacheCleanupInterval = 10 * time.Minute
)

// ErrNotFound is returned by Host.Get for any condition treated as "not
// found": oversize URI, traversal attempt, missing file, forbidden
// permissions, or an unsupported file type.
var ErrNotFound = errors.New("resource not found")

const (
	minURILen = 1
	maxURILen = 255
)

// directoryIndexNames are probed, in order, before falling back to an
// auto-generated listing.
var directoryIndexNames = []string{"index.html", "index.htm"}

// Host resolves request URIs against a single document root. File
// contents are cached keyed by path and invalidated the moment a
// file's mtime changes, so an edit or replacement that changes the
// mtime is reflected on the next request. A rewrite that leaves the
// mtime unchanged keeps serving the cached bytes until the entry
// expires.
type Host struct {
	base  string
	cache *gocache.Cache
}

// cacheEntry pairs a cached Resource with the mtime it was read at, so a
// hit can be rejected the instant the underlying file's mtime changes.
type cacheEntry struct {
	resource *Resource
	modTime  time.Time
}

// NewHost constructs a Host rooted at base, which must already exist.
func NewHost(base string) *Host {
	return &Host{
		base:  filepath.Clean(base),
		cache: gocache.New(cacheExpiration, cacheCleanupInterval),
	}
}

// Get resolves uri to a Resource, applying the resolution rules in
// order; the first failing rule yields ErrNotFound.
func (h *Host) Get(uri string) (*Resource, error) {
	if len(uri) < minURILen || len(uri) > maxURILen {
		return nil, ErrNotFound
	}
	if strings.Contains(uri, "../") || strings.Contains(uri, "/..") {
		return nil, ErrNotFound
	}

	path := filepath.Join(h.base, filepath.FromSlash(uri))
	// filepath.Join cleans ".." segments away silently; guard against the
	// join itself ever escaping the base even though rule 2 above already
	// rejects the traversal substrings that would produce this.
	if !strings.HasPrefix(path, h.base) {
		return nil, ErrNotFound
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, ErrNotFound
	}

	if info.IsDir() {
		return h.getDirectory(uri, path)
	}
	if info.Mode().IsRegular() {
		return h.getFile(path, info)
	}
	return nil, ErrNotFound
}

func (h *Host) getDirectory(uri, path string) (*Resource, error) {
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}

	for _, indexName := range directoryIndexNames {
		indexPath := filepath.Join(path, indexName)
		info, err := os.Stat(indexPath)
		if err == nil && info.Mode().IsRegular() {
			return h.getFile(indexPath, info)
		}
	}

	if !ownerReadable(path) {
		return nil, ErrNotFound
	}

	listing, err := renderListing(uri, path)
	if err != nil {
		return nil, ErrNotFound
	}

	return &Resource{
		Location:    path,
		Bytes:       listing,
		MimeType:    htmlMimeType,
		IsDirectory: true,
	}, nil
}

func (h *Host) getFile(path string, info os.FileInfo) (*Resource, error) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return nil, ErrNotFound
	}
	if !ownerReadable(path) {
		return nil, ErrNotFound
	}

	modTime := info.ModTime()
	if cached, ok := h.lookupCache(path, modTime); ok {
		return cached, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrNotFound
	}

	res := &Resource{
		Location: path,
		Bytes:    contents,
		MimeType: detectMimeType(path, contents),
		ModTime:  modTime,
	}
	h.cache.Set(path, cacheEntry{resource: res, modTime: modTime}, gocache.DefaultExpiration)
	return res, nil
}

// lookupCache returns the cached Resource for path if one is present and
// was read at exactly modTime; any other mtime is treated as a miss.
func (h *Host) lookupCache(path string, modTime time.Time) (*Resource, bool) {
	v, found := h.cache.Get(path)
	if !found {
		return nil, false
	}
	entry := v.(cacheEntry)
	if !entry.modTime.Equal(modTime) {
		return nil, false
	}
	return entry.resource, true
}

// ownerReadable requires the owner-readable permission bit, checked
// before serving either a directory listing or a file.
func ownerReadable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0o400 != 0
}

// renderListing builds the auto-generated HTML directory listing,
// skipping hidden entries.
func renderListing(uri, path string) ([]byte, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<html><head><title>")
	b.WriteString(uri)
	b.WriteString("</title></head><body><h1>Index of ")
	b.WriteString(uri)
	b.WriteString("</h1><hr/><br/>")
	for _, name := range names {
		b.WriteString(`<a href="`)
		b.WriteString(uri)
		b.WriteString(name)
		b.WriteString(`">`)
		b.WriteString(name)
		b.WriteString("</a><br/>")
	}
	b.WriteString("</body></html>")

	return []byte(b.String()), nil
}
