package webnav

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// strippedElements are removed when StripNavigation is set.
var strippedElements = map[string]bool{
	"nav": true, "header": true, "footer": true, "aside": true,
}

// alwaysStripped are never part of readable content.
var alwaysStripped = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"object": true, "embed": true,
}

// adMarkers flag ad containers by class or id substring.
var adMarkers = []string{"advert", "ad-banner", "ad-container", "sponsored", "promo-"}

// docWalker accumulates extraction state over one HTML tree walk.
type docWalker struct {
	base      *url.URL
	cfg       ExtractionConfig
	title     string
	text      strings.Builder
	sanitized strings.Builder
	links     []Link
	images    []Image
	metadata  PageMetadata
}

func newDocWalker(base *url.URL, cfg ExtractionConfig) *docWalker {
	return &docWalker{
		base: base,
		cfg:  cfg,
		metadata: PageMetadata{
			OpenGraph: make(map[string]string),
		},
	}
}

func (w *docWalker) walk(n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		name := strings.ToLower(n.Data)

		if alwaysStripped[name] {
			return
		}
		if w.cfg.StripNavigation && strippedElements[name] {
			return
		}
		if w.cfg.StripAds && isAdNode(n) {
			return
		}

		switch name {
		case "title":
			if w.title == "" {
				w.title = textOf(n)
			}
		case "meta":
			w.collectMeta(n)
		case "html":
			if lang := attr(n, "lang"); lang != "" {
				w.metadata.Language = lang
			}
		case "a":
			w.collectLink(n)
		case "img":
			w.collectImage(n)
		}

		if w.cfg.KeepHTML {
			w.writeSanitizedOpen(n, name)
		}

	case html.TextNode:
		trimmed := strings.TrimSpace(n.Data)
		if trimmed != "" {
			w.text.WriteString(trimmed)
			w.text.WriteByte(' ')
			if w.cfg.KeepHTML {
				w.sanitized.WriteString(html.EscapeString(trimmed))
				w.sanitized.WriteByte(' ')
			}
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		w.walk(child)
	}

	if n.Type == html.ElementNode && w.cfg.KeepHTML {
		name := strings.ToLower(n.Data)
		if !alwaysStripped[name] && !voidElement(name) {
			w.sanitized.WriteString("</" + name + ">")
		}
	}
}

// writeSanitizedOpen emits the element with event-handler and script-bearing
// attributes removed.
func (w *docWalker) writeSanitizedOpen(n *html.Node, name string) {
	if voidElement(name) && name != "img" && name != "br" {
		return
	}
	w.sanitized.WriteString("<" + name)
	if w.cfg.SanitizeHTML {
		for _, a := range n.Attr {
			key := strings.ToLower(a.Key)
			if strings.HasPrefix(key, "on") {
				continue
			}
			if (key == "href" || key == "src") && hasForbiddenScheme(a.Val) {
				continue
			}
			w.sanitized.WriteString(" " + key + `="` + html.EscapeString(a.Val) + `"`)
		}
	} else {
		for _, a := range n.Attr {
			w.sanitized.WriteString(" " + strings.ToLower(a.Key) + `="` + html.EscapeString(a.Val) + `"`)
		}
	}
	w.sanitized.WriteString(">")
}

func hasForbiddenScheme(val string) bool {
	lower := strings.ToLower(strings.TrimSpace(val))
	return strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "vbscript:") || strings.HasPrefix(lower, "data:text/html")
}

func (w *docWalker) collectMeta(n *html.Node) {
	name := strings.ToLower(attr(n, "name"))
	property := strings.ToLower(attr(n, "property"))
	content := attr(n, "content")
	if content == "" {
		return
	}

	switch name {
	case "description":
		w.metadata.Description = content
	case "author":
		w.metadata.Author = content
	case "article:published_time", "publication_date", "date":
		w.metadata.PublicationDate = content
	case "language":
		if w.metadata.Language == "" {
			w.metadata.Language = content
		}
	}

	if strings.HasPrefix(property, "og:") {
		w.metadata.OpenGraph[property] = content
		if property == "article:published_time" && w.metadata.PublicationDate == "" {
			w.metadata.PublicationDate = content
		}
	}
	if property == "article:published_time" && w.metadata.PublicationDate == "" {
		w.metadata.PublicationDate = content
	}
}

func (w *docWalker) collectLink(n *html.Node) {
	href := strings.TrimSpace(attr(n, "href"))
	if href == "" || strings.HasPrefix(href, "#") || hasForbiddenScheme(href) {
		return
	}

	resolved, err := w.base.Parse(href)
	if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
		return
	}

	text := strings.TrimSpace(textOf(n))
	internal := strings.EqualFold(resolved.Hostname(), w.base.Hostname())

	relevance := 0.3
	if internal {
		relevance += 0.2
	}
	if len(text) > 10 {
		relevance += 0.2
	}
	if strings.Contains(strings.ToLower(resolved.Path), "article") || strings.Contains(strings.ToLower(resolved.Path), "news") {
		relevance += 0.2
	}

	w.links = append(w.links, Link{
		URL:       resolved.String(),
		Text:      text,
		Internal:  internal,
		Relevance: relevance,
	})
}

func (w *docWalker) collectImage(n *html.Node) {
	src := strings.TrimSpace(attr(n, "src"))
	if src == "" || hasForbiddenScheme(src) {
		return
	}

	resolved, err := w.base.Parse(src)
	if err != nil {
		return
	}

	img := Image{
		URL: resolved.String(),
		Alt: attr(n, "alt"),
	}
	if width, err := strconv.Atoi(attr(n, "width")); err == nil {
		img.Width = width
	}
	if height, err := strconv.Atoi(attr(n, "height")); err == nil {
		img.Height = height
	}
	w.images = append(w.images, img)
}

func isAdNode(n *html.Node) bool {
	class := strings.ToLower(attr(n, "class") + " " + attr(n, "id"))
	for _, marker := range adMarkers {
		if strings.Contains(class, marker) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(n)
	return b.String()
}

func voidElement(name string) bool {
	switch name {
	case "area", "base", "br", "col", "embed", "hr", "img", "input", "link", "meta", "param", "source", "track", "wbr":
		return true
	}
	return false
}
