package normalize

import (
	"html"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	bullet = '•'
	// indentMark stands in for one level of bullet indentation until the
	// whitespace passes are done; it is a private-use rune so no pass
	// treats it as whitespace.
	indentMark  = "\uE000"
	indentRune  = '\uE000'
	indentWidth = "  "
)

var (
	horizontalSpace = regexp.MustCompile(`[\t\f\r\v \x{00A0}\x{1680}\x{2000}-\x{200A}\x{202F}\x{205F}\x{3000}]+`)
	excessBreaks    = regexp.MustCompile(`\n(?: ?\n){2,}`)
	lineEdges       = regexp.MustCompile(`(?m)^ +| +$`)
	sourceBreaks    = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")
)

// renderText flattens root into plain text. Breaks and bullets are emitted
// as text nodes, every element is unwrapped, and the resulting text is
// joined and tidied.
func renderText(root *xhtml.Node, headerPhrases []string) string {
	flat := rewrite(root, func(n *xhtml.Node, kids, ancestors []*xhtml.Node) []*xhtml.Node {
		switch n.Type {
		case xhtml.TextNode:
			// Source line breaks are whitespace; only element structure breaks lines.
			// Entities are decoded per node so a decoded indentMark can be dropped
			// before the real ones go in.
			data := html.UnescapeString(sourceBreaks.Replace(n.Data))
			return []*xhtml.Node{textNode(strings.ReplaceAll(data, indentMark, ""))}
		case xhtml.ElementNode:
		default:
			return nil
		}

		switch {
		case n.DataAtom == atom.Br:
			return []*xhtml.Node{textNode("\n")}
		case n.DataAtom == atom.Li:
			depth := listDepth(ancestors)
			if depth < 1 {
				depth = 1
			}
			prefix := "\n" + strings.Repeat(indentMark, depth-1) + string(bullet) + " "
			return append([]*xhtml.Node{textNode(prefix)}, trimBlankEdges(kids)...)
		case isList(n):
			if listDepth(ancestors) > 0 {
				return kids
			}
			return surround(kids)
		case isBlock(n):
			return surround(kids)
		default:
			return kids
		}
	})

	var parts []string
	for c := flat.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.TextNode {
			parts = append(parts, c.Data)
		}
	}
	text := strings.Join(parts, " ")

	text = tidy(text)
	text = emphasizeHeaders(text, headerPhrases)
	text = excessBreaks.ReplaceAllString(text, "\n\n")
	text = lineEdges.ReplaceAllString(text, "")
	text = strings.Trim(text, "\n ")
	return strings.ReplaceAll(text, indentMark, indentWidth)
}

func surround(kids []*xhtml.Node) []*xhtml.Node {
	out := make([]*xhtml.Node, 0, len(kids)+2)
	out = append(out, textNode("\n"))
	out = append(out, kids...)
	return append(out, textNode("\n"))
}

// trimBlankEdges drops leading and trailing whitespace-only text so a list
// item whose content sits in a paragraph stays on the bullet line.
func trimBlankEdges(kids []*xhtml.Node) []*xhtml.Node {
	for len(kids) > 0 && kids[0].Type == xhtml.TextNode && isBlank(kids[0].Data) {
		kids = kids[1:]
	}
	for len(kids) > 0 && kids[len(kids)-1].Type == xhtml.TextNode && isBlank(kids[len(kids)-1].Data) {
		kids = kids[:len(kids)-1]
	}
	return kids
}

// tidy collapses horizontal whitespace, limits blank lines to one, puts
// every bullet at the start of its own line and strips line edges.
func tidy(s string) string {
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = excessBreaks.ReplaceAllString(s, "\n\n")
	s = breakBeforeBullets(s)
	return lineEdges.ReplaceAllString(s, "")
}

func breakBeforeBullets(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lineStart := true
	for _, r := range s {
		switch r {
		case '\n':
			lineStart = true
		case bullet:
			if !lineStart {
				b.WriteByte('\n')
			}
			lineStart = false
		case ' ', indentRune:
		default:
			lineStart = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// emphasizeHeaders puts a blank line before each occurrence of each phrase
// unless one is already there.
func emphasizeHeaders(s string, phrases []string) string {
	for _, phrase := range phrases {
		if phrase == "" || !strings.Contains(s, phrase) {
			continue
		}
		var b strings.Builder
		rest := s
		for {
			i := strings.Index(rest, phrase)
			if i < 0 {
				b.WriteString(rest)
				break
			}
			b.WriteString(rest[:i])
			if !precededByBlankLine(b.String()) {
				b.WriteString("\n\n")
			}
			b.WriteString(phrase)
			rest = rest[i+len(phrase):]
		}
		s = b.String()
	}
	return s
}

func precededByBlankLine(s string) bool {
	s = strings.TrimRight(s, " ")
	return s == "" || strings.HasSuffix(s, "\n\n")
}
