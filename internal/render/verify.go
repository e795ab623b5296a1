package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// AnchorWarning describes an intra-document link whose target anchor does not
// exist in the rendered page. These are advisory only: a dangling anchor never
// fails a build.
type AnchorWarning struct {
	Href string // the offending fragment link, e.g. "#missing-section"
	Text string // link text, for operator context
}

func (w AnchorWarning) String() string {
	if w.Text != "" {
		return fmt.Sprintf("dangling anchor %s (%q)", w.Href, w.Text)
	}
	return fmt.Sprintf("dangling anchor %s", w.Href)
}

// VerifyHTML parses a rendered HTML page and reports fragment links that
// point at no element id. External links and non-fragment hrefs are out of
// scope here.
func VerifyHTML(page []byte) ([]AnchorWarning, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing rendered HTML: %w", err)
	}

	ids := make(map[string]struct{})
	type fragRef struct {
		href string
		text string
	}
	var refs []fragRef

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := attrValue(n, "id"); id != "" {
				ids[id] = struct{}{}
			}
			if n.Data == "a" {
				if href := attrValue(n, "href"); strings.HasPrefix(href, "#") {
					refs = append(refs, fragRef{href: href, text: nodeTextContent(n)})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	seen := make(map[string]struct{})
	var warnings []AnchorWarning
	for _, ref := range refs {
		anchor := strings.TrimPrefix(ref.href, "#")
		if anchor == "" {
			continue // "#" alone is a top-of-page link
		}
		if _, ok := ids[anchor]; ok {
			continue
		}
		if _, dup := seen[ref.href]; dup {
			continue
		}
		seen[ref.href] = struct{}{}
		warnings = append(warnings, AnchorWarning{Href: ref.href, Text: ref.text})
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Href < warnings[j].Href })
	return warnings, nil
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func nodeTextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeTextContent(c))
	}
	return strings.TrimSpace(sb.String())
}
