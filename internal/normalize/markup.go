package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var allowedMarkup = map[atom.Atom]bool{
	atom.A:      true,
	atom.B:      true,
	atom.Br:     true,
	atom.Em:     true,
	atom.I:      true,
	atom.Li:     true,
	atom.Ol:     true,
	atom.P:      true,
	atom.Strong: true,
	atom.Ul:     true,
}

var headings = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true,
}

// restrictMarkup unwraps every element outside the allow-list, keeping its
// content. Headings become bold paragraphs and table cells keep a separator.
func restrictMarkup(root *html.Node) *html.Node {
	return rewrite(root, func(n *html.Node, kids, _ []*html.Node) []*html.Node {
		switch n.Type {
		case html.TextNode:
			return []*html.Node{textNode(n.Data)}
		case html.ElementNode:
		default:
			return nil
		}

		switch {
		case n.DataAtom == atom.A:
			// Attributes were filtered when links were rewritten.
			return keep(n, kids)
		case allowedMarkup[n.DataAtom]:
			return []*html.Node{elementNode(n.DataAtom, kids...)}
		case headings[n.DataAtom]:
			return []*html.Node{elementNode(atom.P, elementNode(atom.Strong, kids...))}
		case n.DataAtom == atom.Td || n.DataAtom == atom.Th:
			return append(kids, textNode(" "))
		case n.DataAtom == atom.Tr:
			return append(kids, elementNode(atom.Br))
		default:
			return kids
		}
	})
}

var markupBreaks = regexp.MustCompile(`\s*[\r\n]+\s*`)

// renderMarkup serializes the children of root and folds embedded line
// breaks into single spaces so the result fits on one line.
func renderMarkup(root *html.Node) string {
	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return escapeText(fallbackText(textContent([]*html.Node{root})))
		}
	}
	return strings.TrimSpace(markupBreaks.ReplaceAllString(b.String(), " "))
}

func escapeText(s string) string {
	return html.EscapeString(s)
}
