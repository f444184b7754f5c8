package media

import "strings"

// SrcSetSource is one responsive image candidate.
type SrcSetSource struct {
	URL        string `json:"url"`
	Descriptor string `json:"descriptor"`
	Value      int    `json:"value"`
}

// URLRewriter points media URLs at the CDN. It performs no I/O.
type URLRewriter struct {
	siteURL      string
	cdnURL       string
	localSegment string
	remotePrefix string
}

// NewURLRewriter creates a rewriter. Trailing slashes on the origins are
// ignored.
func NewURLRewriter(siteURL, cdnURL, localSegment, remotePrefix string) *URLRewriter {
	return &URLRewriter{
		siteURL:      strings.TrimRight(siteURL, "/"),
		cdnURL:       strings.TrimRight(cdnURL, "/"),
		localSegment: strings.Trim(localSegment, "/"),
		remotePrefix: strings.Trim(remotePrefix, "/"),
	}
}

// RewriteURL swaps the upload segment for the remote prefix and the site
// origin for the CDN origin. URLs without the upload segment are returned
// unchanged.
func (w *URLRewriter) RewriteURL(url string) string {
	if w.localSegment == "" || !strings.Contains(url, w.localSegment) {
		return url
	}

	url = strings.ReplaceAll(url, w.localSegment, w.remotePrefix)
	if w.siteURL != "" {
		url = strings.ReplaceAll(url, w.siteURL, w.cdnURL)
	}
	return url
}

// RewriteSrcSet rewrites every candidate independently. Order and count are
// preserved and the input slice is not modified.
func (w *URLRewriter) RewriteSrcSet(sources []SrcSetSource) []SrcSetSource {
	out := make([]SrcSetSource, len(sources))
	for i, src := range sources {
		src.URL = w.RewriteURL(src.URL)
		out[i] = src
	}
	return out
}
