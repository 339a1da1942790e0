package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"clinsql/internal/logging"
	"clinsql/internal/tools"
)

// CacheEntry is one memoized Unit Tester outcome, keyed by a canonical
// hash of (question, valid candidates, num_tests) rather than a Go
// string-representation of the candidate slice, which is not a stable
// cache key across runs.
type CacheEntry struct {
	Tests       []tools.UnitTest
	Evaluations []tools.Evaluation
	BestIndex   int
}

// UnitTester is the fourth pipeline stage.
type UnitTester struct {
	Tools *tools.UTTools
	Log   *logging.Logger

	cache atomic.Pointer[map[string]*CacheEntry]
}

// UTData is UT's output.
type UTData struct {
	Strategy    string             `json:"strategy"` // full, single_valid, best_effort
	BestIndex   int                `json:"best_index"`
	BestSQL     string             `json:"best_sql"`
	Tests       []tools.UnitTest   `json:"tests,omitempty"`
	Evaluations []tools.Evaluation `json:"evaluations,omitempty"`
}

// Run short-circuits when zero or one candidate is valid; otherwise it
// generates numTests tests, evaluates
// each concurrently over a bounded worker pool (at most 4 at a time),
// and memoizes the outcome for identical (question, candidates, numTests)
// inputs.
func (ut *UnitTester) Run(ctx context.Context, question string, candidates []tools.SQLCandidate, numTests int) Result {
	b := newResultBuilder("unit_tester", ut.Log)

	var valid []validCandidateRef
	for i, c := range candidates {
		if c.IsValid {
			valid = append(valid, validCandidateRef{origIndex: i, candidate: c})
		}
	}

	if len(valid) == 0 {
		return b.ok(UTData{Strategy: "best_effort", BestIndex: 0}, "no valid candidates; falling back to best-effort")
	}
	if len(valid) == 1 {
		return b.ok(UTData{
			Strategy:  "single_valid",
			BestIndex: valid[0].origIndex,
			BestSQL:   valid[0].candidate.SQL,
		}, "only one valid candidate")
	}

	validCandidates := make([]tools.SQLCandidate, len(valid))
	for i, v := range valid {
		validCandidates[i] = v.candidate
	}

	key := cacheKey(question, validCandidates, numTests)
	if entry, ok := ut.lookup(key); ok {
		bestOrig := candidateOriginalIndex(valid, entry.BestIndex)
		return b.ok(UTData{
			Strategy:    "full",
			BestIndex:   bestOrig,
			BestSQL:     candidates[bestOrig].SQL,
			Tests:       entry.Tests,
			Evaluations: entry.Evaluations,
		}, "memoized result")
	}

	genResult := ut.Tools.GenerateUnitTest(ctx, question, validCandidates, numTests)
	b.record("generate_unit_test", genResult.Success, genResult.Tokens)
	tests, _ := genResult.Data.([]tools.UnitTest)
	if len(tests) == 0 {
		return b.ok(UTData{Strategy: "best_effort", BestIndex: valid[0].origIndex, BestSQL: valid[0].candidate.SQL}, "no tests generated; falling back to best-effort")
	}

	limit := 4
	if len(tests) < limit {
		limit = len(tests)
	}
	results := make([]tools.ToolResult, len(tests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, test := range tests {
		i, test := i, test
		g.Go(func() error {
			results[i] = ut.Tools.Evaluate(gctx, test, validCandidates)
			return nil
		})
	}
	_ = g.Wait()

	evaluations := make([]tools.Evaluation, 0, len(results))
	for _, res := range results {
		b.record("evaluate", res.Success, res.Tokens)
		if ev, ok := res.Data.(tools.Evaluation); ok {
			evaluations = append(evaluations, ev)
		}
	}

	bestValidIdx := tallyBestCandidate(evaluations, len(validCandidates))
	entry := &CacheEntry{Tests: tests, Evaluations: evaluations, BestIndex: bestValidIdx}
	ut.store(key, entry)

	bestOrig := candidateOriginalIndex(valid, bestValidIdx)
	return b.ok(UTData{
		Strategy:    "full",
		BestIndex:   bestOrig,
		BestSQL:     candidates[bestOrig].SQL,
		Tests:       tests,
		Evaluations: evaluations,
	}, fmt.Sprintf("%d tests evaluated", len(tests)))
}

// validCandidateRef pairs a valid candidate with its index in the
// original (unfiltered) candidate slice.
type validCandidateRef struct {
	origIndex int
	candidate tools.SQLCandidate
}

func candidateOriginalIndex(valid []validCandidateRef, validIdx int) int {
	if validIdx < 0 || validIdx >= len(valid) {
		return valid[0].origIndex
	}
	return valid[validIdx].origIndex
}

// tallyBestCandidate picks the valid-candidate index with the most
// passing votes across evaluations, ties going to the lowest index.
// When no candidate received any vote, the first evaluation's own
// best_index is used if it is in range; otherwise the result is index 0.
func tallyBestCandidate(evaluations []tools.Evaluation, numValid int) int {
	votes := make([]int, numValid)
	for _, ev := range evaluations {
		for idx, pass := range ev.CandidatePass {
			if pass && idx >= 0 && idx < numValid {
				votes[idx]++
			}
		}
	}
	best, bestVotes := 0, -1
	for i, v := range votes {
		if v > bestVotes {
			best, bestVotes = i, v
		}
	}
	if bestVotes <= 0 && len(evaluations) > 0 {
		if ev := evaluations[0]; ev.BestIndex >= 0 && ev.BestIndex < numValid {
			return ev.BestIndex
		}
	}
	return best
}

func (ut *UnitTester) lookup(key string) (*CacheEntry, bool) {
	m := ut.cache.Load()
	if m == nil {
		return nil, false
	}
	entry, ok := (*m)[key]
	return entry, ok
}

// store copy-on-writes a new cache map so concurrent readers never see
// a partially-built map.
func (ut *UnitTester) store(key string, entry *CacheEntry) {
	for {
		old := ut.cache.Load()
		next := make(map[string]*CacheEntry, len(derefOrEmpty(old))+1)
		for k, v := range derefOrEmpty(old) {
			next[k] = v
		}
		next[key] = entry
		if ut.cache.CompareAndSwap(old, &next) {
			return
		}
	}
}

func derefOrEmpty(m *map[string]*CacheEntry) map[string]*CacheEntry {
	if m == nil {
		return nil
	}
	return *m
}

func cacheKey(question string, validCandidates []tools.SQLCandidate, numTests int) string {
	canonical := struct {
		Question   string   `json:"question"`
		Candidates []string `json:"candidates"`
		NumTests   int      `json:"num_tests"`
	}{Question: question, NumTests: numTests}
	for _, c := range validCandidates {
		canonical.Candidates = append(canonical.Candidates, c.SQL)
	}
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
