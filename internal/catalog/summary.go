package catalog

import (
	"strings"

	"github.com/hyperjump/folio/pkg/utils"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SummaryLength caps the teaser text, in runes.
const SummaryLength = 200

// Summary returns the whitespace-collapsed text of the first paragraph in a rendered
// fragment, truncated to SummaryLength.
func Summary(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	p := findFirst(doc, atom.P)
	if p == nil {
		return ""
	}
	var sb strings.Builder
	collectText(p, &sb)
	return utils.Truncate(strings.Join(strings.Fields(sb.String()), " "), SummaryLength)
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
