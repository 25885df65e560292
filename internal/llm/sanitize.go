package llm

import (
	"regexp"
	"strings"
)

var reLeadFence = regexp.MustCompile("^```[a-zA-Z]*[ \t]*\r?\n")

// StripFences removes a leading ```xml (or bare ```) fence line and a
// trailing ``` fence from model output. Text without fences is only
// whitespace-trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := reLeadFence.FindString(s); m != "" {
		s = s[len(m):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
