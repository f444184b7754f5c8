package media

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// ContentTypeProber determines the content type of a file on disk.
type ContentTypeProber interface {
	Probe(path, declared string) string
}

// FileProber sniffs file content and falls back to the declared type, then
// to the extension.
type FileProber struct{}

// Probe never fails; a missing file degrades to the fallbacks.
func (FileProber) Probe(path, declared string) string {
	if mt, err := mimetype.DetectFile(path); err == nil && mt.String() != defaultContentType {
		return mt.String()
	}
	if declared != "" {
		return declared
	}
	return ContentTypeByExtension(path)
}

// ContentTypeByExtension maps a filename extension to a media type.
func ContentTypeByExtension(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return defaultContentType
}
