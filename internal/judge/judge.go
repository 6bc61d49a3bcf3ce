// Package judge parses and validates the judge role's raw model output.
package judge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decision is the judge's binary verdict.
type Decision string

const (
	Yes Decision = "YES"
	No  Decision = "NO"
)

// Judgement is the parsed, validated output of one judge call.
type Judgement struct {
	Analysis string
	Score    float64
	Decision Decision
	RawText  string
}

type rawJudgement struct {
	Analysis string  `json:"analysis"`
	Score    float64 `json:"score"`
	Decision string  `json:"decision"`
}

// Parse strips optional code-fence wrappers, locates the outermost {...}
// substring, decodes it, and validates decision/score per spec.md §4.7. Any
// failure returns (nil, a descriptive error) — the caller treats this as
// "(nil, nil) plus a warning" per spec.md, logging the error and retrying.
func Parse(rawText string) (*Judgement, error) {
	text := stripFences(rawText)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("no JSON object found in judge output")
	}
	candidate := text[start : end+1]

	var raw rawJudgement
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil, fmt.Errorf("invalid judge JSON: %w", err)
	}

	decision := Decision(strings.ToUpper(strings.TrimSpace(raw.Decision)))
	if decision != Yes && decision != No {
		return nil, fmt.Errorf("invalid decision %q: must be YES or NO", raw.Decision)
	}
	if raw.Score < 0 || raw.Score > 1 {
		return nil, fmt.Errorf("score %v out of range [0,1]", raw.Score)
	}

	return &Judgement{
		Analysis: raw.Analysis,
		Score:    raw.Score,
		Decision: decision,
		RawText:  rawText,
	}, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// CheckInvariant enforces decision=YES ⇒ score>=threshold and decision=NO ⇒
// score<threshold. A violation is treated as malformed output: the caller
// should retry with the next judge model rather than accept the judgement.
func CheckInvariant(j *Judgement, threshold float64) error {
	switch j.Decision {
	case Yes:
		if j.Score < threshold {
			return fmt.Errorf("decision=YES but score %.3f < threshold %.3f", j.Score, threshold)
		}
	case No:
		if j.Score >= threshold {
			return fmt.Errorf("decision=NO but score %.3f >= threshold %.3f", j.Score, threshold)
		}
	}
	return nil
}

// ShouldStop reports whether the iteration loop should stop given j and
// threshold, per spec.md §4.6 step 7: score>=threshold. A parsed Judgement
// always carries a score (Parse decodes a missing score as 0), so the
// decision=YES clause reduces to the same check: a YES whose score is below
// threshold does not stop the loop.
func ShouldStop(j *Judgement, threshold float64) bool {
	if j == nil {
		return false
	}
	return j.Score >= threshold
}
