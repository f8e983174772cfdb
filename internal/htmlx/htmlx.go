// Package htmlx reduces fetched HTML to plain text plus the list of
// links on the page. It is the only place HTML parsing happens; the
// research layer consumes its output.
package htmlx

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Link is one anchor extracted from a page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"template": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"article": true, "section": true, "blockquote": true, "pre": true,
}

var collapseWS = regexp.MustCompile(`[ \t]+`)
var collapseNL = regexp.MustCompile(`\n{3,}`)

// Strip parses an HTML document and returns its visible text plus all
// anchors carrying an href. Malformed HTML is handled leniently; the
// parser never fails on real-world pages.
func Strip(htmlSrc string) (string, []Link, error) {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return "", nil, err
	}

	var text strings.Builder
	var links []Link
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			if n.Data == "a" {
				if href := attr(n, "href"); href != "" {
					links = append(links, Link{Text: nodeText(n), Href: href})
				}
			}
		}
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			text.WriteString("\n")
		}
	}
	walk(doc)

	out := collapseWS.ReplaceAllString(text.String(), " ")
	lines := strings.Split(out, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	out = strings.Join(lines, "\n")
	out = collapseNL.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out), links, nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

var thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinkTags removes <think>…</think> segments some models leave in
// their final answer.
func StripThinkTags(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}
