// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pdiddy/bookfinder/pkg/types"
)

// documentSuffixes end a URL that names a document file directly.
var documentSuffixes = []string{".pdf", ".epub", ".mobi"}

// downloadMarkers appear in URLs of download endpoints that serve documents
// without a telling extension.
var downloadMarkers = []string{
	"/download/",
	"download.php",
	"get.php",
	"files/",
	".pdf?",
	"format=pdf",
	"type=pdf",
}

// pageMarkers identify catalog and HTML pages. They only reject a URL that
// no download marker accepted.
var pageMarkers = []string{
	".html",
	".htm",
	"/search",
	"/browse",
	"/catalog",
	"search.php",
	"index.php",
	".txt",
}

// CheckSyntax accepts absolute http and https URLs with a host.
func CheckSyntax(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrURLSyntaxInvalid, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not http or https", types.ErrURLSyntaxInvalid, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", types.ErrURLSyntaxInvalid)
	}
	return nil
}

// LooksLikeDocumentURL reports whether rawURL is shaped like a direct
// document download. It makes no request; links suggested by an oracle or a
// catalog are filtered with it before anything is fetched.
func LooksLikeDocumentURL(rawURL string) bool {
	if CheckSyntax(rawURL) != nil {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(rawURL))

	for _, s := range documentSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	for _, m := range downloadMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	for _, m := range pageMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	return false
}
