// Package privacy strips user-marked private content before anything
// leaves the machine.
package privacy

import (
	"regexp"
	"strings"
)

var (
	privateTagRe = regexp.MustCompile(`(?s)<private>.*?</private>`)
	contextTagRe = regexp.MustCompile(`(?s)<devark-context>.*?</devark-context>`)
	spaceRunRe   = regexp.MustCompile(`[ \t]{2,}`)
)

// StripPrivateTags removes all <private>...</private> spans.
func StripPrivateTags(text string) string {
	return privateTagRe.ReplaceAllString(text, "")
}

// StripContextTags removes injected <devark-context>...</devark-context>
// spans so our own context never round-trips to the backend.
func StripContextTags(text string) string {
	return contextTagRe.ReplaceAllString(text, "")
}

// StripAllTags removes both private and injected context spans.
func StripAllTags(text string) string {
	return StripContextTags(StripPrivateTags(text))
}

// IsEntirelyPrivate reports whether nothing remains once private spans are
// removed.
func IsEntirelyPrivate(text string) bool {
	return strings.TrimSpace(StripPrivateTags(text)) == ""
}

// Clean strips all tagged spans and tidies the whitespace holes they leave.
// Call it on any user content headed for storage or upload.
func Clean(text string) string {
	text = StripAllTags(text)
	text = spaceRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
