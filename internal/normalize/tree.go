package normalize

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parse reads raw as a body fragment and hangs the result off a fresh body
// element.
func parse(raw string) (*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(raw), context)
	if err != nil {
		return nil, err
	}
	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

// visitFunc maps a source node and its already rewritten children to the
// detached nodes that take its place in the new tree. ancestors lists the
// source ancestors root-first and is only valid during the call.
type visitFunc func(n *html.Node, kids []*html.Node, ancestors []*html.Node) []*html.Node

// rewrite builds a new tree from root, bottom-up. root itself is copied, not
// visited.
func rewrite(root *html.Node, visit visitFunc) *html.Node {
	w := &walker{visit: visit, stack: []*html.Node{root}}
	out := shallowCopy(root)
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		appendAll(out, w.node(c))
	}
	return out
}

type walker struct {
	visit visitFunc
	stack []*html.Node
}

func (w *walker) node(n *html.Node) []*html.Node {
	w.stack = append(w.stack, n)
	var kids []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		kids = append(kids, w.node(c)...)
	}
	w.stack = w.stack[:len(w.stack)-1]
	return w.visit(n, kids, w.stack)
}

func shallowCopy(n *html.Node) *html.Node {
	return &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
}

// keep copies n and attaches kids to the copy.
func keep(n *html.Node, kids []*html.Node) []*html.Node {
	c := shallowCopy(n)
	appendAll(c, kids)
	return []*html.Node{c}
}

func appendAll(parent *html.Node, kids []*html.Node) {
	for _, k := range kids {
		parent.AppendChild(k)
	}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func elementNode(a atom.Atom, kids ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	appendAll(n, kids)
	return n
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// textContent concatenates every text node under the given nodes.
func textContent(nodes []*html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return b.String()
}

func isBlank(s string) bool {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " ")) == ""
}

// meaningful reports whether n renders as something: an element or
// non-blank text.
func meaningful(n *html.Node) bool {
	switch n.Type {
	case html.ElementNode:
		return true
	case html.TextNode:
		return !isBlank(n.Data)
	}
	return false
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Center: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figure: true, atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true,
	atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true, atom.Tbody: true,
	atom.Td: true, atom.Tfoot: true, atom.Th: true, atom.Thead: true, atom.Tr: true,
	atom.Ul: true,
}

func isBlock(n *html.Node) bool {
	return n.Type == html.ElementNode && blockElements[n.DataAtom]
}

func isList(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.DataAtom == atom.Ul || n.DataAtom == atom.Ol)
}

// listDepth counts list containers among ancestors.
func listDepth(ancestors []*html.Node) int {
	depth := 0
	for _, a := range ancestors {
		if isList(a) {
			depth++
		}
	}
	return depth
}
