package domain

import (
	"regexp"
	"strings"
)

// Citations are delivered structurally through the metadata record; any
// citation text the generator embeds in the prose is redundant and is
// stripped before display.
var (
	inlineCitationPattern = regexp.MustCompile(`[（(\[【]?\s*来源[:：][^\n）)\]】]*[）)\]】]?`)
	citationLinePattern   = regexp.MustCompile(`(?m)^\s*-?\s*来源[:：].*$`)
	docFragmentPattern    = regexp.MustCompile(`[\[{【][^\]}】\n]*\.(?:txt|md|pdf|docx?|pptx?)[^\]}】\n]*[\]}】]|[\[{【]\s*(?:txt|md|pdf|docx?|pptx?)\s*[\]}】]`)
	emptyBracketPattern   = regexp.MustCompile(`【\s*】|（\s*）`)
	newlineRunPattern     = regexp.MustCompile(`\n{3,}`)
)

// Sanitize strips embedded citation artifacts from generated answer text.
// It is deterministic, idempotent, and performs no I/O.
func Sanitize(raw string) string {
	out := citationLinePattern.ReplaceAllString(raw, "")
	out = inlineCitationPattern.ReplaceAllString(out, "")
	out = docFragmentPattern.ReplaceAllString(out, "")
	out = emptyBracketPattern.ReplaceAllString(out, "")
	out = newlineRunPattern.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
