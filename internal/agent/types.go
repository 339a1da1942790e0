// Package agent wraps the tool layer into the five cooperating agents
// of the pipeline: Information Retriever, Schema Selector, Candidate
// Generator, Unit Tester, Result Explainer. Each agent runs a fixed
// tool sequence rather than a free-form ReAct loop. The langchaingo
// agents.Executor abstraction does not fit that shape and was not
// carried over.
package agent

import (
	"time"

	"clinsql/internal/logging"
)

// ToolCallLog is one entry in an AgentResult's ordered tool-call trail.
type ToolCallLog struct {
	Tool       string `json:"tool"`
	Success    bool   `json:"success"`
	TokensUsed int    `json:"tokens_used"`
}

// Result is the uniform per-agent envelope.
type Result struct {
	Success       bool          `json:"success"`
	Data          any           `json:"data,omitempty"`
	Reasoning     string        `json:"reasoning,omitempty"`
	Error         string        `json:"error,omitempty"`
	TokensUsed    int           `json:"tokens_used"`
	ExecutionTime time.Duration `json:"execution_time"`
	ToolCalls     []ToolCallLog `json:"tool_calls"`
}

// resultBuilder accumulates tool-call logs and token usage across one
// agent invocation, mirroring per-stage bookkeeping.
type resultBuilder struct {
	start     time.Time
	toolCalls []ToolCallLog
	tokens    int
	log       *logging.Logger
	agentName string
}

func newResultBuilder(agentName string, log *logging.Logger) *resultBuilder {
	return &resultBuilder{start: time.Now(), log: log, agentName: agentName}
}

func (b *resultBuilder) record(tool string, success bool, tokens int) {
	b.toolCalls = append(b.toolCalls, ToolCallLog{Tool: tool, Success: success, TokensUsed: tokens})
	b.tokens += tokens
	if b.log != nil {
		b.log.ToolCall(b.agentName, tool, tokens, success)
	}
}

func (b *resultBuilder) ok(data any, reasoning string) Result {
	return Result{
		Success:       true,
		Data:          data,
		Reasoning:     reasoning,
		TokensUsed:    b.tokens,
		ExecutionTime: time.Since(b.start),
		ToolCalls:     b.toolCalls,
	}
}

func (b *resultBuilder) fail(err error) Result {
	return Result{
		Success:       false,
		Error:         err.Error(),
		TokensUsed:    b.tokens,
		ExecutionTime: time.Since(b.start),
		ToolCalls:     b.toolCalls,
	}
}
