package webscan

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Extractor pulls candidate image URLs out of an HTML page.
//
// Design decision: We use golang.org/x/net/html rather than regex because
// it correctly handles the malformed HTML common on real pages and gives a
// proper DOM walk instead of brittle patterns.
type Extractor struct {
	// baseURL is the page URL, used for resolving relative references.
	baseURL *url.URL
}

// NewExtractor creates an Extractor resolving references against baseURL.
func NewExtractor(baseURL string) (*Extractor, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Extractor{baseURL: u}, nil
}

// Extract parses the HTML content and returns every candidate image URL,
// deduplicated, in document order. Candidates come from <img> src and
// data-src attributes (lazy loaders put the real URL in data-src) and
// from favicon <link> elements.
func (e *Extractor) Extract(content io.Reader) ([]string, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	urls := make([]string, 0)
	add := func(ref string) {
		resolved := e.resolveURL(ref)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		urls = append(urls, resolved)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img":
				add(getAttr(n, "src"))
				add(getAttr(n, "data-src"))
			case "link":
				rel := strings.ToLower(getAttr(n, "rel"))
				if rel == "icon" || rel == "shortcut icon" || rel == "apple-touch-icon" {
					add(getAttr(n, "href"))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return urls, nil
}

// resolveURL resolves a reference against the page URL, dropping schemes
// that cannot yield fetchable image bytes.
func (e *Extractor) resolveURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "#" {
		return ""
	}
	if strings.HasPrefix(ref, "javascript:") ||
		strings.HasPrefix(ref, "mailto:") ||
		strings.HasPrefix(ref, "tel:") ||
		strings.HasPrefix(ref, "data:") {
		return ""
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return e.baseURL.ResolveReference(u).String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
