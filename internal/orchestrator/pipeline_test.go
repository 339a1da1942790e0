package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"clinsql/internal/agent"
	"clinsql/internal/tools"
)

func TestSumTokens(t *testing.T) {
	stages := map[string]agent.Result{
		"information_retriever": {TokensUsed: 10},
		"schema_selector":       {TokensUsed: 25},
	}
	assert.Equal(t, 35, sumTokens(stages))
}

func TestSumTokensEmpty(t *testing.T) {
	assert.Equal(t, 0, sumTokens(nil))
}

func TestCountValid(t *testing.T) {
	candidates := []tools.SQLCandidate{
		{IsValid: true},
		{IsValid: false},
		{IsValid: true},
	}
	assert.Equal(t, 2, countValid(candidates))
}

func TestFirstValidIndex(t *testing.T) {
	candidates := []tools.SQLCandidate{
		{IsValid: false},
		{IsValid: false},
		{IsValid: true},
	}
	assert.Equal(t, 2, firstValidIndex(candidates))
}

func TestFirstValidIndexDefaultsToZeroWhenNoneValid(t *testing.T) {
	candidates := []tools.SQLCandidate{{IsValid: false}, {IsValid: false}}
	assert.Equal(t, 0, firstValidIndex(candidates))
}

func TestFatalMarksUnsuccessfulAndPreservesStages(t *testing.T) {
	stages := map[string]agent.Result{"information_retriever": {TokensUsed: 5}}
	result := fatal("call-1", "how many subjects?", time.Now(), stages, assert.AnError)

	assert.False(t, result.Success)
	assert.Equal(t, "call-1", result.CallID)
	assert.Equal(t, assert.AnError.Error(), result.Error)
	assert.Equal(t, 5, result.TokensUsed)
	assert.Equal(t, stages, result.Stages)
}
