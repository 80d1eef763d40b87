package normalize

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var nonContent = map[atom.Atom]bool{
	atom.Base:     true,
	atom.Canvas:   true,
	atom.Embed:    true,
	atom.Frame:    true,
	atom.Frameset: true,
	atom.Head:     true,
	atom.Iframe:   true,
	atom.Link:     true,
	atom.Math:     true,
	atom.Meta:     true,
	atom.Noscript: true,
	atom.Object:   true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Svg:      true,
	atom.Template: true,
	atom.Title:    true,
}

// stripNonContent drops scripts, styles, embedded frames, metadata, comments
// and doctype declarations.
func stripNonContent(root *html.Node) *html.Node {
	return rewrite(root, func(n *html.Node, kids, _ []*html.Node) []*html.Node {
		switch n.Type {
		case html.CommentNode, html.DoctypeNode:
			return nil
		case html.ElementNode:
			if nonContent[n.DataAtom] {
				return nil
			}
		}
		return keep(n, kids)
	})
}

var unsafeSchemes = []string{"javascript:", "vbscript:", "data:"}

// safeHref returns the trimmed href and whether it may be kept.
func safeHref(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	lower := strings.ToLower(strings.Join(strings.Fields(href), ""))
	for _, scheme := range unsafeSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}
	return href, true
}

// rewriteLinks flattens anchors to "text (address)" in ModeText and strips
// anchors down to their permitted attributes in ModeMarkup.
func rewriteLinks(root *html.Node, mode Mode) *html.Node {
	return rewrite(root, func(n *html.Node, kids, _ []*html.Node) []*html.Node {
		if n.Type != html.ElementNode || n.DataAtom != atom.A {
			return keep(n, kids)
		}
		href, ok := attr(n, "href")
		if ok {
			href, ok = safeHref(href)
		}

		if mode == ModeMarkup {
			a := elementNode(atom.A, kids...)
			if ok {
				a.Attr = append(a.Attr, html.Attribute{Key: "href", Val: href})
			}
			for _, key := range []string{"target", "rel"} {
				if v, found := attr(n, key); found {
					a.Attr = append(a.Attr, html.Attribute{Key: key, Val: v})
				}
			}
			return []*html.Node{a}
		}

		text := strings.Join(strings.Fields(textContent(kids)), " ")
		switch {
		case !ok:
			return []*html.Node{textNode(text)}
		case text == "" || text == href:
			return []*html.Node{textNode(href)}
		default:
			return []*html.Node{textNode(text + " (" + href + ")")}
		}
	})
}

var genericContainers = map[atom.Atom]bool{
	atom.Article: true,
	atom.Center:  true,
	atom.Div:     true,
	atom.Font:    true,
	atom.Footer:  true,
	atom.Header:  true,
	atom.Main:    true,
	atom.Section: true,
	atom.Span:    true,
}

// collapseContainers replaces generic grouping elements that hold only
// inline content with that content. Block-level ones leave a line break
// behind so neighbouring text does not run together.
func collapseContainers(root *html.Node) *html.Node {
	return rewrite(root, func(n *html.Node, kids, _ []*html.Node) []*html.Node {
		if n.Type != html.ElementNode || !genericContainers[n.DataAtom] {
			return keep(n, kids)
		}
		for _, k := range kids {
			if isBlock(k) {
				return keep(n, kids)
			}
		}
		if !isBlock(n) || len(kids) == 0 {
			return kids
		}

		var out []*html.Node
		if prev := previousMeaningful(n); prev != nil && !isBlock(prev) {
			out = append(out, elementNode(atom.Br))
		}
		out = append(out, kids...)
		if nextMeaningful(n) != nil {
			out = append(out, elementNode(atom.Br))
		}
		return out
	})
}

func previousMeaningful(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if meaningful(s) {
			return s
		}
	}
	return nil
}

func nextMeaningful(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if meaningful(s) {
			return s
		}
	}
	return nil
}
