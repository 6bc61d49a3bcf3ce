package schedule

import "testing"

func TestBuildLengthAndMembership(t *testing.T) {
	models := []string{"a", "b", "c"}
	for _, policy := range []Policy{Orderly, Random, Cicada} {
		for _, count := range []int{0, 1, 5, 17} {
			sched := Build(models, count, policy)
			if len(sched) != count {
				t.Errorf("policy=%s count=%d: len(schedule)=%d", policy, count, len(sched))
			}
			set := map[string]bool{"a": true, "b": true, "c": true}
			for _, m := range sched {
				if !set[m] {
					t.Errorf("policy=%s: schedule contains %q not in models", policy, m)
				}
			}
		}
	}
}

func TestBuildEmptyModelsReturnsNil(t *testing.T) {
	if got := Build(nil, 10, Orderly); got != nil {
		t.Errorf("Build(nil models) = %v, want nil", got)
	}
	if got := Build([]string{}, 10, Cicada); got != nil {
		t.Errorf("Build(empty models) = %v, want nil", got)
	}
}

func TestOrderlyWrap(t *testing.T) {
	models := []string{"x", "y"}
	sched := Build(models, 5, Orderly)
	want := []string{"x", "y", "x", "y", "x"}
	for i := range want {
		if sched[i] != want[i] {
			t.Errorf("sched[%d] = %q, want %q", i, sched[i], want[i])
		}
	}
}

func TestCicadaDeterminism(t *testing.T) {
	models := []string{"m1", "m2", "m3", "m4"}
	a := Build(models, 50, Cicada)
	b := Build(models, 50, Cicada)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cicada schedule not deterministic at index %d: %q != %q", i, a[i], b[i])
		}
	}
}

func TestCicadaKnownValues(t *testing.T) {
	// pos[i] = (i * primes[i % len(primes)]) % 233; primes sieved <= 100.
	// First prime is 2, so pos[0] = 0, pos[1] = 1*3 = 3, etc. Spot check
	// that the formula is reproduced verbatim rather than re-derived.
	models := []string{"m0", "m1", "m2", "m3", "m4"}
	sched := Build(models, 3, Cicada)
	primes := sievePrimes(100)
	for i := 0; i < 3; i++ {
		pos := (i * primes[i%len(primes)]) % 233
		want := models[pos%len(models)]
		if sched[i] != want {
			t.Errorf("sched[%d] = %q, want %q", i, sched[i], want)
		}
	}
}

func TestModelAtOffsetFormula(t *testing.T) {
	sched := []string{"m0", "m1", "m2"}
	cases := []struct {
		attempt, offset int
		want            string
	}{
		{0, 0, "m0"},
		{0, 1, "m1"},
		{1, 1, "m2"},
		{2, 2, "m1"},
	}
	for _, tc := range cases {
		got := ModelAt(sched, tc.attempt, tc.offset, "fixed")
		if got != tc.want {
			t.Errorf("ModelAt(attempt=%d,offset=%d) = %q, want %q", tc.attempt, tc.offset, got, tc.want)
		}
	}
}

func TestModelAtEmptySchedule(t *testing.T) {
	if got := ModelAt(nil, 5, 2, "fixed-model"); got != "fixed-model" {
		t.Errorf("ModelAt(nil schedule) = %q, want fixed-model", got)
	}
}
