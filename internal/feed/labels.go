package feed

import (
	"strings"

	"github.com/amishk599/boardfeed/internal/model"
)

// CleanPostedLabel drops the words "posted" and "on" from a posted label,
// so "Posted Today" becomes "Today".
func CleanPostedLabel(label string) string {
	if label == model.Sentinel {
		return label
	}
	var kept []string
	for _, word := range strings.Fields(label) {
		switch strings.ToLower(word) {
		case "posted", "on":
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// CleanLocation removes the "locations" caption Workday renders in front of
// the location text.
func CleanLocation(location string) string {
	trimmed := strings.TrimSpace(location)
	const caption = "locations"
	if len(trimmed) > len(caption) && strings.EqualFold(trimmed[:len(caption)], caption) {
		rest := trimmed[len(caption):]
		if rest[0] == ' ' || rest[0] == '\n' || rest[0] == '\t' {
			return strings.TrimSpace(rest)
		}
	}
	return trimmed
}
