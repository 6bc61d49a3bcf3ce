// Package promptbuild assembles the per-role user-turn text: the
// history-window rendering, the unrequested-LIMIT stripper, and the
// strict/relaxed filter-profile guidance blocks.
package promptbuild

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterProfile selects which domain-filter guidance is injected into the
// prompt-writer's task description.
type FilterProfile string

const (
	Strict  FilterProfile = "strict"
	Relaxed FilterProfile = "relaxed"
)

const strictGuidance = `Unless the question says otherwise, apply these defaults:
- doc_type = 'PUBLICATION'
- confidence_score = 9
- target_type = 'SINGLE PROTEIN'
- add no extra filters beyond what is requested
- include all IC50 units unless the question specifies one`

const relaxedGuidance = `Unless the question says otherwise, apply these defaults:
- do not require doc_type or a DOI unless explicitly asked for
- prefer confidence_score >= 8 but treat it as optional
- do not restrict target_type
- add no extra filters beyond what is requested`

// FilterProfileBlock renders the <FILTER_PROFILE> block for profile.
func FilterProfileBlock(profile FilterProfile) string {
	guidance := strictGuidance
	if profile == Relaxed {
		guidance = relaxedGuidance
	}
	return "<FILTER_PROFILE>\n" + guidance + "\n</FILTER_PROFILE>"
}

// IterationView is the minimal per-iteration data the history renderer
// needs; internal/iterate's Iteration type supplies it.
type IterationView struct {
	N          int
	UP         string
	SQL        string
	ResRender  string // pre-rendered RES_n text (from summarize.Summary.Render, or the error text)
	JudgeText  string
}

// RenderHistory renders the last len(iterations) entries (the caller is
// responsible for windowing to M) as <ITERATION n> blocks, wrapped in
// <HISTORY from="X" to="Y">...</HISTORY>, or <HISTORY/> if empty.
func RenderHistory(iterations []IterationView) string {
	if len(iterations) == 0 {
		return "<HISTORY/>"
	}

	from := iterations[0].N
	to := iterations[len(iterations)-1].N

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<HISTORY from=%q to=%q>\n", fmt.Sprint(from), fmt.Sprint(to)))
	for _, it := range iterations {
		sb.WriteString(fmt.Sprintf("<ITERATION %d>", it.N))
		sb.WriteString(fmt.Sprintf("<UP_%d>%s</UP_%d>", it.N, it.UP, it.N))
		sb.WriteString(fmt.Sprintf("<SQL_%d>%s</SQL_%d>", it.N, it.SQL, it.N))
		sb.WriteString(fmt.Sprintf("<RES_%d>%s</RES_%d>", it.N, it.ResRender, it.N))
		sb.WriteString(fmt.Sprintf("<J_%d>%s</J_%d>", it.N, it.JudgeText, it.N))
		sb.WriteString(fmt.Sprintf("</ITERATION %d>\n", it.N))
	}
	sb.WriteString("</HISTORY>")
	return sb.String()
}

// Window returns the last m entries of history (m<=0 means "no limit").
func Window(history []IterationView, m int) []IterationView {
	if m <= 0 || len(history) <= m {
		return history
	}
	return history[len(history)-m:]
}

// capPatterns is the fixed set of explicit row-cap / top-N phrases; if any
// matches UQ+UP, the LIMIT-stripper must not touch the SQL (spec.md §4.6,
// §8 "LIMIT-stripper safety").
var capPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blimit\s+\d+`),
	regexp.MustCompile(`(?i)\btop\s+\d+`),
	regexp.MustCompile(`(?i)\bfirst\s+\d+`),
	regexp.MustCompile(`(?i)\blast\s+\d+`),
	regexp.MustCompile(`(?i)\bat most\s+\d+`),
	regexp.MustCompile(`(?i)\bno more than\s+\d+`),
	regexp.MustCompile(`(?i)\bmaximum\s+\d+`),
	regexp.MustCompile(`(?i)\bminimum\s+\d+`),
	regexp.MustCompile(`(?i)\bonly\s+\d+`),
	regexp.MustCompile(`(?i)\breturn\s+\d+`),
	regexp.MustCompile(`(?i)\bshow\s+\d+`),
	regexp.MustCompile(`(?i)\brows\s+\d+`),
	regexp.MustCompile(`(?i)\bsample\s+\d+`),
}

var trailingLimitClause = regexp.MustCompile(`(?is)\s+limit\s+\d+(?:\s+offset\s+\d+)?\s*;?\s*$`)

// HasExplicitCap reports whether combinedText (UQ + "\n" + UP) contains any
// of the fixed cap/top-N patterns.
func HasExplicitCap(combinedText string) bool {
	for _, re := range capPatterns {
		if re.MatchString(combinedText) {
			return true
		}
	}
	return false
}

// StripUnrequestedLimit removes a trailing LIMIT [OFFSET] clause from sql
// when combinedText (UQ+"\n"+UP) contains no explicit cap pattern. When a
// cap pattern is present, sql is returned unmodified (spec.md §8 "LIMIT-
// stripper safety").
func StripUnrequestedLimit(sql, combinedText string, enabled bool) string {
	if !enabled || HasExplicitCap(combinedText) {
		return sql
	}
	return strings.TrimSpace(trailingLimitClause.ReplaceAllString(sql, ""))
}

// SanitizeRunLabel replaces every character outside [A-Za-z0-9_-] with '_',
// matching the original tool's filesystem-safe run-label rule (spec.md §8
// scenario 6).
var unsafeRunLabelChar = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func SanitizeRunLabel(label string) string {
	sanitized := unsafeRunLabelChar.ReplaceAllString(label, "_")
	return strings.Trim(sanitized, "_")
}
