package sanitize

import (
	"regexp"
	"strings"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:[\\w+-]*\\n)?(.*?)```")

	rules = []rule{
		{regexp.MustCompile("`([^`\\n]+)`"), "$1"},
		{regexp.MustCompile(`\*\*([^*\s][^*\n]*)\*\*`), "$1"},
		{regexp.MustCompile(`\*([^*\s][^*\n]*)\*`), "$1"},
		{regexp.MustCompile(`__([^_\s][^_\n]*)__`), "$1"},
		// Single underscores only count at word edges so snake_case survives.
		{regexp.MustCompile(`(^|[^\w])_([^_\s][^_\n]*)_([^\w]|$)`), "$1$2$3"},
		{regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`), ""},
		{regexp.MustCompile(`(?m)^[ \t]{0,3}>[ \t]?`), ""},
		{regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`), ""},
		{regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`), ""},
		{regexp.MustCompile(`\n{3,}`), "\n\n"},
	}
)

// StripMarkdown removes visible markdown tokens from text. It does not parse
// markdown; it deletes fence, emphasis, heading, quote and list markers and
// collapses runs of blank lines. Every rule only removes characters, so the
// passes are repeated until nothing changes, which makes the result stable
// under a second call.
func StripMarkdown(text string) string {
	out := strings.ReplaceAll(text, "\r\n", "\n")
	for {
		next := pass(out)
		if next == out {
			return next
		}
		out = next
	}
}

func pass(s string) string {
	s = fencedBlock.ReplaceAllStringFunc(s, func(m string) string {
		sub := fencedBlock.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		return strings.TrimSpace(sub[1])
	})
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return strings.TrimSpace(s)
}
