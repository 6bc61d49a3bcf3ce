// Package schedule implements the model-rotation policies used to pick
// which model identifier an attempt index should use: orderly (round
// robin), random (collision-avoiding uniform draws), and cicada (a
// deterministic pseudo-irregular sequence built from small-prime stepping).
package schedule

import "math/rand"

// Policy names the cycling strategy.
type Policy string

const (
	Orderly Policy = "orderly"
	Random  Policy = "random"
	Cicada  Policy = "cicada"
)

// cicadaPrimesLimit and cicadaModulus are part of the contract: reuse them
// verbatim, do not "improve" the distribution (spec.md §9).
const (
	cicadaPrimesLimit = 100
	cicadaModulus     = 233
)

// Build produces a schedule of length count, mapping attempt index -> model
// identifier, per policy. If models is empty, Build returns nil: callers
// must treat a nil schedule as "no schedule, use the single fixed model for
// every attempt" (spec.md §9, the local-provider empty-catalog case).
func Build(models []string, count int, policy Policy) []string {
	if len(models) == 0 {
		return nil
	}
	if count <= 0 {
		return []string{}
	}

	switch policy {
	case Random:
		return buildRandom(models, count)
	case Cicada:
		return buildCicada(models, count)
	default:
		return buildOrderly(models, count)
	}
}

func buildOrderly(models []string, count int) []string {
	n := len(models)
	out := make([]string, count)
	for i := 0; i < count; i++ {
		out[i] = models[i%n]
	}
	return out
}

func buildRandom(models []string, count int) []string {
	n := len(models)
	out := make([]string, count)
	prev := -1
	for i := 0; i < count; i++ {
		idx := rand.Intn(n)
		if idx == prev && n > 1 {
			idx = (idx + 1) % n
		}
		out[i] = models[idx]
		prev = idx
	}
	return out
}

func buildCicada(models []string, count int) []string {
	n := len(models)
	primes := sievePrimes(cicadaPrimesLimit)
	out := make([]string, count)
	for i := 0; i < count; i++ {
		prime := primes[i%len(primes)]
		pos := (i * prime) % cicadaModulus
		out[i] = models[pos%n]
	}
	return out
}

// sievePrimes returns all primes <= limit via a simple sieve of
// Eratosthenes.
func sievePrimes(limit int) []int {
	if limit < 2 {
		return nil
	}
	isComposite := make([]bool, limit+1)
	var primes []int
	for p := 2; p <= limit; p++ {
		if isComposite[p] {
			continue
		}
		primes = append(primes, p)
		for multiple := p * p; multiple <= limit; multiple += p {
			isComposite[multiple] = true
		}
	}
	return primes
}

// ModelAt resolves the model for a given attempt index and per-call retry
// offset against a schedule, preserving the original tool's combined
// rotation formula literally: idx = (attemptIdx + offset) % len(schedule).
// If schedule is nil (empty model catalog), fixedModel is returned for
// every attempt.
func ModelAt(sched []string, attemptIdx, offset int, fixedModel string) string {
	if len(sched) == 0 {
		return fixedModel
	}
	idx := (attemptIdx + offset) % len(sched)
	if idx < 0 {
		idx += len(sched)
	}
	return sched[idx]
}
