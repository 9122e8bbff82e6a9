// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/bookfinder/pkg/types"
)

// acoSearchBase is the Arabic Collections Online search page. Declared as a
// var so tests can substitute an httptest server.
var acoSearchBase = "https://dlib.nyu.edu/aco/search/"

// ArabicCollections scrapes the Arabic Collections Online search page. The
// site has no JSON API, so results are read from the HTML listing.
type ArabicCollections struct {
	Base
}

// Name returns the catalog identifier.
func (a *ArabicCollections) Name() string { return NameArabicCollections }

// Search fetches the result listing for query and extracts one record per
// result item.
func (a *ArabicCollections) Search(ctx context.Context, query string, hints Hints) ([]types.RawRecord, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	searchURL := acoSearchBase + "?" + url.Values{"q": {query}, "scope": {"containsAny"}}.Encode()
	resp, err := a.do(ctx, http.MethodGet, searchURL)
	if err != nil {
		return nil, unavailable(a.Name(), err)
	}
	defer resp.Body.Close()

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, unavailable(a.Name(), err)
	}
	base := resp.Request.URL

	items := findAll(doc, func(n *html.Node) bool { return isElement(n, "div") && hasClass(n, "search-result-item") })
	if len(items) == 0 {
		items = findAll(doc, func(n *html.Node) bool { return isElement(n, "div") && hasClass(n, "item") })
	}

	var records []types.RawRecord
	for _, item := range items {
		if hints.MaxResults > 0 && len(records) >= hints.MaxResults {
			break
		}
		title := acoTitle(item)
		if title == "" {
			continue
		}
		var authors []string
		if author := acoAuthor(item); author != "" {
			authors = []string{author}
		}
		records = append(records, types.RawRecord{
			Title:             title,
			Authors:           authors,
			Description:       "Arabic book from Arabic Collections Online",
			Categories:        []string{"Arabic Literature"},
			DocumentURL:       acoDocumentLink(item, base),
			DocumentSourceTag: NameArabicCollections,
			Publisher:         "Arabic Collections Online",
			Language:          "ar",
			SourceAPI:         NameArabicCollections,
		})
	}
	a.log().Debug("source.aco.done", "query", query, "records", len(records))
	return records, nil
}

func acoTitle(item *html.Node) string {
	matchers := []func(*html.Node) bool{
		func(n *html.Node) bool { return isElement(n, "h3") },
		func(n *html.Node) bool { return isElement(n, "h2") },
		func(n *html.Node) bool { return isElement(n, "a") && hasClass(n, "title") },
		func(n *html.Node) bool { return isElement(n, "strong") },
	}
	for _, m := range matchers {
		if n := findFirst(item, m); n != nil {
			if t := textContent(n); t != "" {
				return t
			}
		}
	}
	return ""
}

func acoAuthor(item *html.Node) string {
	n := findFirst(item, func(n *html.Node) bool {
		return (isElement(n, "p") || isElement(n, "span") || isElement(n, "div")) && hasClass(n, "author")
	})
	if n == nil {
		return ""
	}
	return textContent(n)
}

// acoDocumentLink returns the first link whose text names a PDF or a
// download (in English or Arabic), resolved against the page URL.
func acoDocumentLink(item *html.Node, base *url.URL) string {
	for _, a := range findAll(item, func(n *html.Node) bool { return isElement(n, "a") }) {
		href := attr(a, "href")
		if href == "" {
			continue
		}
		text := strings.ToLower(textContent(a))
		if !strings.Contains(text, "pdf") && !strings.Contains(text, "download") && !strings.Contains(text, "تحميل") {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		if base == nil {
			return ref.String()
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}

// HTML traversal helpers.

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			return c
		}
		if n := findFirst(c, match); n != nil {
			return n
		}
	}
	return nil
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if match(c) {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
