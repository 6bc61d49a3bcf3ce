package judge

import "testing"

func TestParseWellFormed(t *testing.T) {
	j, err := Parse(`{"analysis": "looks good", "score": 0.95, "decision": "YES"}`)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if j.Decision != Yes || j.Score != 0.95 {
		t.Errorf("got %+v", j)
	}
}

func TestParseStripsFences(t *testing.T) {
	j, err := Parse("```json\n{\"analysis\": \"ok\", \"score\": 0.2, \"decision\": \"no\"}\n```")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if j.Decision != No {
		t.Errorf("decision = %q, want NO (case-insensitive)", j.Decision)
	}
}

func TestParseOutermostBraces(t *testing.T) {
	j, err := Parse(`some preamble {"analysis": "a", "score": 0.5, "decision": "NO"} trailing text`)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if j.Score != 0.5 {
		t.Errorf("score = %v", j.Score)
	}
}

func TestParseInvalidDecision(t *testing.T) {
	_, err := Parse(`{"analysis": "a", "score": 0.5, "decision": "MAYBE"}`)
	if err == nil {
		t.Fatal("expected error for invalid decision")
	}
}

func TestParseScoreOutOfRange(t *testing.T) {
	_, err := Parse(`{"analysis": "a", "score": 1.5, "decision": "YES"}`)
	if err == nil {
		t.Fatal("expected error for out-of-range score")
	}
}

func TestParseNoJSONObject(t *testing.T) {
	_, err := Parse("not json at all")
	if err == nil {
		t.Fatal("expected error when no JSON object present")
	}
}

func TestCheckInvariant(t *testing.T) {
	cases := []struct {
		name      string
		j         Judgement
		threshold float64
		wantErr   bool
	}{
		{"yes above threshold ok", Judgement{Decision: Yes, Score: 0.95}, 0.9, false},
		{"yes below threshold violates", Judgement{Decision: Yes, Score: 0.5}, 0.9, true},
		{"no below threshold ok", Judgement{Decision: No, Score: 0.1}, 0.9, false},
		{"no at threshold violates", Judgement{Decision: No, Score: 0.9}, 0.9, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckInvariant(&tc.j, tc.threshold)
			if (err != nil) != tc.wantErr {
				t.Errorf("CheckInvariant() err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestShouldStop(t *testing.T) {
	if ShouldStop(nil, 0.9) {
		t.Error("nil judgement should never stop")
	}
	if ShouldStop(&Judgement{Decision: Yes, Score: 0.5}, 0.9) {
		t.Error("decision=YES with a score below threshold should not stop")
	}
	if !ShouldStop(&Judgement{Decision: No, Score: 0.95}, 0.9) {
		t.Error("score>=threshold should stop even if decision=NO")
	}
	if ShouldStop(&Judgement{Decision: No, Score: 0.1}, 0.9) {
		t.Error("low score, decision=NO should not stop")
	}
}

func TestThresholdOneOnlyPerfectScoreStops(t *testing.T) {
	if ShouldStop(&Judgement{Decision: No, Score: 0.999999}, 1.0) {
		t.Error("score below 1.0 should not stop when threshold=1.0")
	}
	if !ShouldStop(&Judgement{Decision: Yes, Score: 1.0}, 1.0) {
		t.Error("score=1.0 should stop when threshold=1.0")
	}
}
