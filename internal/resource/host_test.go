package resource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHost(t *testing.T) (*Host, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("secret"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "file.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))
	return NewHost(dir), dir
}

func TestGetIndexFile(t *testing.T) {
	host, _ := newTestHost(t)
	res, err := host.Get("/")
	require.NoError(t, err)
	assert.Equal(t, "text/html", res.MimeType)
	assert.Equal(t, "<h1>home</h1>", string(res.Bytes))
	assert.False(t, res.IsDirectory)
}

func TestGetPlainFile(t *testing.T) {
	host, _ := newTestHost(t)
	res, err := host.Get("/style.css")
	require.NoError(t, err)
	assert.Equal(t, "text/css", res.MimeType)
	assert.Equal(t, "body{}", string(res.Bytes))
}

func TestGetDirectoryListing(t *testing.T) {
	host, _ := newTestHost(t)
	res, err := host.Get("/empty")
	require.NoError(t, err)
	assert.True(t, res.IsDirectory)
	assert.Equal(t, "text/html", res.MimeType)
	assert.Contains(t, string(res.Bytes), "Index of /empty/")
}

func TestListingSkipsHiddenEntries(t *testing.T) {
	host, dir := newTestHost(t)
	// force a listing by removing the index files
	require.NoError(t, os.Remove(filepath.Join(dir, "index.html")))
	res, err := host.Get("/")
	require.NoError(t, err)
	assert.NotContains(t, string(res.Bytes), ".hidden")
	assert.Contains(t, string(res.Bytes), "style.css")
}

func TestGetHiddenFileRejected(t *testing.T) {
	host, _ := newTestHost(t)
	_, err := host.Get("/.hidden")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetMissing(t *testing.T) {
	host, _ := newTestHost(t)
	_, err := host.Get("/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetTraversalRejected(t *testing.T) {
	host, _ := newTestHost(t)
	for _, uri := range []string{"/../etc/passwd", "/foo/../../etc/passwd", "/sub/../../../etc/passwd"} {
		_, err := host.Get(uri)
		assert.ErrorIsf(t, err, ErrNotFound, "uri=%s", uri)
	}
}

func TestGetOversizeURIRejected(t *testing.T) {
	host, _ := newTestHost(t)
	_, err := host.Get("/" + strings.Repeat("a", 300))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetIsPure(t *testing.T) {
	host, _ := newTestHost(t)
	a, err := host.Get("/style.css")
	require.NoError(t, err)
	b, err := host.Get("/style.css")
	require.NoError(t, err)
	assert.Equal(t, a.Bytes, b.Bytes)
	assert.Equal(t, a.MimeType, b.MimeType)
	assert.Equal(t, a.Size(), b.Size())
}

func TestGetCachesUntilMtimeChanges(t *testing.T) {
	host, dir := newTestHost(t)
	path := filepath.Join(dir, "style.css")

	a, err := host.Get("/style.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(a.Bytes))

	// Overwrite the file without advancing its mtime: the cached bytes
	// should still be served.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("body{color:red}"), 0o644))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

	stale, err := host.Get("/style.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(stale.Bytes))

	// Advance the mtime: the cache entry is now invalid and the new
	// contents are picked up.
	newer := info.ModTime().Add(time.Second)
	require.NoError(t, os.Chtimes(path, newer, newer))

	fresh, err := host.Get("/style.css")
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", string(fresh.Bytes))
}

func TestGetSubdirectoryFile(t *testing.T) {
	host, _ := newTestHost(t)
	res, err := host.Get("/sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", res.MimeType)
	assert.Equal(t, "hi", string(res.Bytes))
}
