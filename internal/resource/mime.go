package resource

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// extensionMimeTypes is the static extension -> MIME type table,
// covering the common web-serving set.
var extensionMimeTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".xml":  "application/xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".woff": "font/woff",
	".woff2": "font/woff2",
	".ttf":  "font/ttf",
}

// sniffLimit bounds how much of an already-in-memory file is handed to
// the content sniffer, so mimetype.Detect never meaningfully adds to the
// cost of serving a large file that already had to be read in full.
const sniffLimit = 512

// detectMimeType resolves the MIME type for name given its contents:
// extension table first, then content sniffing, then the default.
func detectMimeType(name string, contents []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := extensionMimeTypes[ext]; ok {
		return mt
	}

	probe := contents
	if len(probe) > sniffLimit {
		probe = probe[:sniffLimit]
	}
	if len(probe) > 0 {
		if mt := mimetype.Detect(probe); mt != nil && mt.String() != "" {
			// mimetype.Detect's generic fallback is already
			// application/octet-stream, so no separate check is needed.
			return mt.String()
		}
	}

	return defaultMimeType
}
