package detail

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Isolate returns the outer markup of the first element matching selector
// in markup, discarding everything around it. When nothing matches, the
// parsed body content is returned unchanged.
func Isolate(markup, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse description markup: %w", err)
	}

	if selector != "" {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return goquery.OuterHtml(sel)
		}
	}
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render description markup: %w", err)
	}
	return strings.TrimSpace(body), nil
}
