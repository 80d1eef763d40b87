package normalize

import (
	"html"
	"regexp"
	"strings"
)

var (
	anyTag   = regexp.MustCompile(`<[^>]*>`)
	listItem = regexp.MustCompile(`(?i)<li\b[^>]*>`)
)

// fallbackText is the last resort when the markup cannot be walked, for
// example past the parser's nesting limit. List items still start a bullet
// line; every other tag is dropped, entities decoded and whitespace
// collapsed.
func fallbackText(raw string) string {
	plain := sourceBreaks.Replace(raw)
	plain = listItem.ReplaceAllString(plain, "\n"+string(bullet)+" ")
	plain = anyTag.ReplaceAllString(plain, " ")
	plain = html.UnescapeString(plain)

	var lines []string
	for _, line := range strings.Split(plain, "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			lines = append(lines, strings.Join(f, " "))
		}
	}
	return strings.Join(lines, "\n")
}
