package kb

import (
	"regexp"
	"strings"
)

var (
	markdownFenceOpen = regexp.MustCompile("^```markdown\n")
	anyFenceOpen      = regexp.MustCompile("^```\\w*\n")
	fenceClose        = regexp.MustCompile("\n```$")
)

// StripCodeFence removes a code fence wrapping the whole model response so the
// remaining Markdown can become the new knowledge base. Unfenced text is
// returned unchanged.
func StripCodeFence(text string) string {
	switch {
	case strings.HasPrefix(text, "```markdown"):
		text = markdownFenceOpen.ReplaceAllString(text, "")
	case strings.HasPrefix(text, "```"):
		text = anyFenceOpen.ReplaceAllString(text, "")
	default:
		return text
	}
	return fenceClose.ReplaceAllString(text, "")
}
