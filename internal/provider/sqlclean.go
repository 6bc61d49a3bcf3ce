package provider

import (
	"regexp"
	"strings"
)

var (
	fenceRe     = regexp.MustCompile("(?is)^```(?:sql|json)?\\s*\\n?|```\\s*$")
	reasoningRe = regexp.MustCompile(`(?is)<think>.*?</think>|<reasoning>.*?</reasoning>`)
	selectWord  = regexp.MustCompile(`(?i)^(select|with)\b`)
)

// CleanSQL implements the shared SQL-cleaning contract every back-end uses
// before handing its raw completion back to the controller: strip code
// fences, strip <think>/<reasoning> blocks, truncate at the first statement
// terminator, and keep only the first blank-line-separated paragraph when
// that paragraph begins with SELECT/WITH (a leading prose paragraph leaves
// the text whole).
func CleanSQL(raw string) string {
	text := reasoningRe.ReplaceAllString(raw, "")
	text = fenceRe.ReplaceAllString(strings.TrimSpace(text), "")
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, ";"); idx >= 0 {
		text = text[:idx+1]
	}

	paragraphs := strings.SplitN(text, "\n\n", 2)
	if len(paragraphs) > 0 {
		first := strings.TrimSpace(paragraphs[0])
		if selectWord.MatchString(first) {
			text = first
			if idx := strings.Index(text, ";"); idx >= 0 {
				text = text[:idx+1]
			}
		}
	}

	return strings.TrimSpace(text)
}
