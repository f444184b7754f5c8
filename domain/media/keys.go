package media

import (
	"path/filepath"
	"strings"
	"time"
)

// DefaultImageExtensions is the allow-list used when none is configured.
var DefaultImageExtensions = []string{"jpg", "jpeg", "png", "gif"}

// KeyResolverConfig configures a KeyResolver.
type KeyResolverConfig struct {
	RemotePrefix    string
	ImageExtensions []string
	// Clock supplies the upload month for date-keyed files
	Clock  func() time.Time
	Prober ContentTypeProber
}

// KeyResolver maps an attachment to the ordered set of files to mirror.
type KeyResolver struct {
	prefix string
	images map[string]struct{}
	clock  func() time.Time
	prober ContentTypeProber
}

// NewKeyResolver creates a resolver, filling unset options with defaults.
func NewKeyResolver(cfg KeyResolverConfig) *KeyResolver {
	exts := cfg.ImageExtensions
	if len(exts) == 0 {
		exts = DefaultImageExtensions
	}
	images := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		images[normalizeExt(ext)] = struct{}{}
	}

	prefix := strings.Trim(cfg.RemotePrefix, "/")
	if prefix == "" {
		prefix = "uploads"
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	var prober ContentTypeProber = FileProber{}
	if cfg.Prober != nil {
		prober = cfg.Prober
	}

	return &KeyResolver{prefix: prefix, images: images, clock: clock, prober: prober}
}

// IsImage reports whether path carries an allow-listed image extension.
// Matching ignores case.
func (r *KeyResolver) IsImage(path string) bool {
	_, ok := r.images[normalizeExt(filepath.Ext(path))]
	return ok
}

// Resolve returns the original first, followed by one entry per variant in
// the order the host listed them. Every file's content type is sniffed, with
// the host's declared type as the fallback. Images without generated metadata are keyed like other
// files.
func (r *KeyResolver) Resolve(a Attachment) []FileRef {
	basename := filepath.Base(a.Path)

	original := FileRef{
		LocalPath:   a.Path,
		ContentType: r.prober.Probe(a.Path, a.MimeType),
	}

	if !r.IsImage(a.Path) || a.Metadata == nil || a.Metadata.File == "" {
		original.Key = r.key(r.clock().Format("2006/01"), basename)
		return []FileRef{original}
	}

	subpath := metadataSubpath(a.Metadata.File)
	original.Key = r.key(subpath, basename)

	sizes := a.Metadata.OrderedSizes()
	refs := make([]FileRef, 0, len(sizes)+1)
	refs = append(refs, original)

	dir := filepath.Dir(a.Path)
	for _, size := range sizes {
		if size.File == "" {
			continue
		}
		local := filepath.Join(dir, size.File)
		refs = append(refs, FileRef{
			LocalPath:   local,
			Key:         r.key(subpath, size.File),
			ContentType: r.prober.Probe(local, size.MimeType),
			Variant:     size.Name,
		})
	}

	return refs
}

func (r *KeyResolver) key(parts ...string) string {
	segments := []string{r.prefix}
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			segments = append(segments, p)
		}
	}
	return strings.Join(segments, "/")
}

// metadataSubpath strips the basename off the metadata file field.
func metadataSubpath(file string) string {
	i := strings.LastIndex(file, "/")
	if i < 0 {
		return ""
	}
	return file[:i]
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
