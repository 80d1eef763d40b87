// Package normalize converts job description markup into either plain text
// with structural cues (ModeText) or a restricted, embeddable markup subset
// (ModeMarkup).
//
// Normalization is pure and total: every input string, including malformed
// or empty markup, yields a result, and identical input always yields
// byte-identical output. Each pass builds a new tree; the parsed input is
// never modified.
package normalize

import (
	"fmt"
	"strings"
)

// Mode selects the output representation.
type Mode int

const (
	// ModeText produces plain text with bullets, indentation and blank lines.
	ModeText Mode = iota
	// ModeMarkup produces a single line of allow-listed markup.
	ModeMarkup
)

func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeMarkup:
		return "markup"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a config value ("text" or "markup") to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "plain":
		return ModeText, nil
	case "markup", "html":
		return ModeMarkup, nil
	default:
		return ModeText, fmt.Errorf("unknown normalize mode %q (want text or markup)", s)
	}
}

// DefaultHeaderPhrases are the section labels that get a blank line in
// front of them in ModeText output.
var DefaultHeaderPhrases = []string{
	"Job Summary",
	"Position Summary",
	"Schedule:",
	"Essential Functions",
	"Qualifications:",
	"Benefits:",
}

// Normalizer is safe for concurrent use.
type Normalizer struct {
	mode          Mode
	headerPhrases []string
}

// New returns a normalizer for mode. headerPhrases is applied in order in
// ModeText and ignored in ModeMarkup; nil means DefaultHeaderPhrases.
func New(mode Mode, headerPhrases []string) *Normalizer {
	if headerPhrases == nil {
		headerPhrases = DefaultHeaderPhrases
	}
	return &Normalizer{
		mode:          mode,
		headerPhrases: append([]string(nil), headerPhrases...),
	}
}

// Mode reports the configured output mode.
func (n *Normalizer) Mode() Mode { return n.mode }

// Normalize returns the normalized form of raw.
func (n *Normalizer) Normalize(raw string) string {
	out, _ := n.NormalizeChecked(raw)
	return out
}

// NormalizeChecked is Normalize that also reports whether the best-effort
// fallback had to be used.
func (n *Normalizer) NormalizeChecked(raw string) (out string, degraded bool) {
	defer func() {
		if r := recover(); r != nil {
			out, degraded = n.fallback(raw), true
		}
	}()

	if strings.TrimSpace(raw) == "" {
		return "", false
	}

	root, err := parse(raw)
	if err != nil {
		return n.fallback(raw), true
	}

	root = stripNonContent(root)
	root = rewriteLinks(root, n.mode)
	root = collapseContainers(root)

	if n.mode == ModeMarkup {
		return renderMarkup(restrictMarkup(root)), false
	}
	return renderText(root, n.headerPhrases), false
}

func (n *Normalizer) fallback(raw string) string {
	text := fallbackText(raw)
	if n.mode == ModeMarkup {
		return escapeText(text)
	}
	return text
}
