package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clinsql/internal/tools"
)

func TestCacheKeyDeterministic(t *testing.T) {
	candidates := []tools.SQLCandidate{
		{Strategy: "standard", SQL: "SELECT 1", IsValid: true},
		{Strategy: "cot", SQL: "SELECT 2", IsValid: true},
	}
	k1 := cacheKey("how many subjects?", candidates, 5)
	k2 := cacheKey("how many subjects?", candidates, 5)
	assert.Equal(t, k1, k2)
}

func TestCacheKeyDiffersOnQuestionOrCandidates(t *testing.T) {
	candidates := []tools.SQLCandidate{{Strategy: "standard", SQL: "SELECT 1", IsValid: true}}
	base := cacheKey("q1", candidates, 5)

	assert.NotEqual(t, base, cacheKey("q2", candidates, 5))

	other := []tools.SQLCandidate{{Strategy: "standard", SQL: "SELECT 2", IsValid: true}}
	assert.NotEqual(t, base, cacheKey("q1", other, 5))

	assert.NotEqual(t, base, cacheKey("q1", candidates, 3))
}

func TestTallyBestCandidatePicksMajorityVote(t *testing.T) {
	evaluations := []tools.Evaluation{
		{CandidatePass: map[int]bool{0: true, 1: false}},
		{CandidatePass: map[int]bool{0: true, 1: false}},
		{CandidatePass: map[int]bool{0: false, 1: true}},
	}
	assert.Equal(t, 0, tallyBestCandidate(evaluations, 2))
}

func TestTallyBestCandidateFallsBackToEvaluationBestIndex(t *testing.T) {
	evaluations := []tools.Evaluation{
		{CandidatePass: map[int]bool{0: false, 1: false}, BestIndex: 1},
	}
	assert.Equal(t, 1, tallyBestCandidate(evaluations, 2))
}

func TestTallyBestCandidateDefaultsToZeroWithNoEvaluations(t *testing.T) {
	assert.Equal(t, 0, tallyBestCandidate(nil, 3))
}

func TestCandidateOriginalIndexMapsBack(t *testing.T) {
	valid := []validCandidateRef{
		{origIndex: 2, candidate: tools.SQLCandidate{SQL: "a"}},
		{origIndex: 4, candidate: tools.SQLCandidate{SQL: "b"}},
	}
	assert.Equal(t, 4, candidateOriginalIndex(valid, 1))
}

func TestCandidateOriginalIndexClampsOutOfRange(t *testing.T) {
	valid := []validCandidateRef{{origIndex: 3, candidate: tools.SQLCandidate{SQL: "a"}}}
	assert.Equal(t, 3, candidateOriginalIndex(valid, 99))
}

func TestUnitTesterStoreAndLookupRoundTrip(t *testing.T) {
	ut := &UnitTester{}
	entry := &CacheEntry{BestIndex: 1}
	ut.store("k1", entry)

	got, ok := ut.lookup("k1")
	assert.True(t, ok)
	assert.Same(t, entry, got)

	_, ok = ut.lookup("missing")
	assert.False(t, ok)
}
