// Package orchestrator runs the five agents in sequence for one
// question: information retrieval, schema selection, candidate
// generation, unit testing, and result explanation, each stage feeding
// the next through a typed result envelope.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinsql/internal/agent"
	"clinsql/internal/catalog"
	"clinsql/internal/config"
	"clinsql/internal/dbadapter"
	"clinsql/internal/llmgateway"
	"clinsql/internal/logging"
	"clinsql/internal/preprocessor"
	"clinsql/internal/tools"
)

// PipelineResult is the JSON-serializable contract consumed by any
// HTTP/CLI front-end.
type PipelineResult struct {
	CallID         string              `json:"call_id"`
	Success        bool                `json:"success"`
	Question       string              `json:"question"`
	SQL            string              `json:"sql,omitempty"`
	Candidates     []tools.SQLCandidate `json:"candidates,omitempty"`
	SelectedTables []tools.SelectedTable `json:"selected_tables,omitempty"`
	Explanation    string              `json:"explanation,omitempty"`
	Statistics     []tools.ColumnStats `json:"statistics,omitempty"`
	Error          string              `json:"error,omitempty"`
	TokensUsed     int                 `json:"tokens_used"`
	ExecutionTime  time.Duration       `json:"execution_time"`
	Stages         map[string]agent.Result `json:"stages"`
}

// Pipeline owns the per-process singletons (catalog, preprocessor,
// gateway, adapter) and constructs one of each agent, re-entrant across
// concurrent Run calls.
type Pipeline struct {
	cat     *catalog.Catalog
	pre     *preprocessor.Preprocessor
	gw      *llmgateway.Gateway
	adapter dbadapter.DBAdapter
	log     *logging.Logger
	cfg     config.Config

	ir *agent.InformationRetriever
	ss *agent.SchemaSelector
	cg *agent.CandidateGenerator
	ut *agent.UnitTester
	re *agent.ResultExplainer
}

// New wires the five agents over the given singletons. Callers are
// expected to follow the mandatory init order: db connect, then
// catalog.Refresh(), then preprocessor build or load, before
// constructing the Pipeline.
func New(cfg config.Config, cat *catalog.Catalog, pre *preprocessor.Preprocessor, gw *llmgateway.Gateway, adapter dbadapter.DBAdapter, log *logging.Logger) *Pipeline {
	return &Pipeline{
		cat:     cat,
		pre:     pre,
		gw:      gw,
		adapter: adapter,
		log:     log,
		cfg:     cfg,
		ir:      &agent.InformationRetriever{Tools: &tools.IRTools{GW: gw, Pre: pre, Model: cfg.Models.SchemaSelector}, Cat: cat, Log: log},
		ss:      &agent.SchemaSelector{Tools: &tools.SSTools{GW: gw, Cat: cat, Model: cfg.Models.SchemaSelector}, Cat: cat, Log: log},
		cg:      &agent.CandidateGenerator{Tools: &tools.CGTools{GW: gw}, Adapter: adapter, Log: log},
		ut:      &agent.UnitTester{Tools: &tools.UTTools{GW: gw}, Log: log},
		re:      &agent.ResultExplainer{Tools: &tools.RETools{GW: gw}, Adapter: adapter, Log: log},
	}
}

// Run executes the five-stage pipeline for one question. Typical
// defaults are the caller's responsibility (numCandidates=3,
// numUnitTests=5, disableUnitTest=false, execute=true, explain=true).
func (p *Pipeline) Run(ctx context.Context, question string, numCandidates, numUnitTests int, disableUnitTest, execute, explain bool) PipelineResult {
	callID := uuid.NewString()
	start := time.Now()
	stages := make(map[string]agent.Result, 5)

	p.log.SetPhase("information_retriever")
	irResult := p.ir.Run(ctx, question)
	stages["information_retriever"] = irResult
	if !irResult.Success {
		return fatal(callID, question, start, stages, fmt.Errorf("information_retriever: %s", irResult.Error))
	}
	irData, _ := irResult.Data.(agent.IRData)

	p.log.SetPhase("schema_selector")
	maxTables := p.cfg.AgentDefaults.TopCandidates
	if maxTables <= 0 {
		maxTables = 5
	}
	ssResult := p.ss.Run(ctx, question, irData.RelevantTables, irData.Keywords, maxTables)
	stages["schema_selector"] = ssResult
	if !ssResult.Success {
		return fatal(callID, question, start, stages, fmt.Errorf("schema_selector: %s", ssResult.Error))
	}
	ssData, _ := ssResult.Data.(agent.SSData)

	p.log.SetPhase("candidate_generator")
	entityBlock := strings.Join(irData.Entities, ", ")
	cgResult := p.cg.Run(ctx, question, ssData.SchemaContext, entityBlock, numCandidates)
	stages["candidate_generator"] = cgResult
	candidates, _ := cgResult.Data.([]tools.SQLCandidate)
	if !cgResult.Success || countValid(candidates) == 0 {
		return fatal(callID, question, start, stages, fmt.Errorf("candidate_generator: no valid candidates"))
	}

	var bestIdx int
	if disableUnitTest {
		bestIdx = firstValidIndex(candidates)
	} else {
		p.log.SetPhase("unit_tester")
		utResult := p.ut.Run(ctx, question, candidates, numUnitTests)
		stages["unit_tester"] = utResult
		if utResult.Success {
			utData, _ := utResult.Data.(agent.UTData)
			bestIdx = utData.BestIndex
		} else {
			// UT failure falls back to CG's own ordering.
			bestIdx = firstValidIndex(candidates)
		}
	}
	bestSQL := candidates[bestIdx].SQL

	result := PipelineResult{
		CallID:         callID,
		Success:        true,
		Question:       question,
		SQL:            bestSQL,
		Candidates:     candidates,
		SelectedTables: ssData.SelectedTables,
		Stages:         stages,
	}

	if execute {
		qr, err := p.adapter.SafeExecute(ctx, bestSQL, 30)
		if err != nil {
			// Execution is optional; on failure the pipeline still
			// returns with a null explanation.
			result.Error = fmt.Sprintf("execute: %v", err)
		} else if explain {
			p.log.SetPhase("result_explainer")
			reResult := p.re.Run(ctx, question, bestSQL, qr.Columns, qr.Rows)
			stages["result_explainer"] = reResult
			if reResult.Success {
				reData, _ := reResult.Data.(agent.REData)
				result.Explanation = reData.Explanation
				result.Statistics = reData.Statistics
			}
		}
	}

	result.TokensUsed = sumTokens(stages)
	result.ExecutionTime = time.Since(start)
	return result
}

// QuickQuery is a thin convenience wrapper: Run with unit tests
// disabled, returning just the SQL and its explanation.
func (p *Pipeline) QuickQuery(ctx context.Context, question string) (sql string, explanation string, err error) {
	res := p.Run(ctx, question, 3, 0, true, true, true)
	if !res.Success {
		return "", "", fmt.Errorf("quick_query: %s", res.Error)
	}
	return res.SQL, res.Explanation, nil
}

func fatal(callID, question string, start time.Time, stages map[string]agent.Result, err error) PipelineResult {
	return PipelineResult{
		CallID:        callID,
		Success:       false,
		Question:      question,
		Error:         err.Error(),
		Stages:        stages,
		TokensUsed:    sumTokens(stages),
		ExecutionTime: time.Since(start),
	}
}

func sumTokens(stages map[string]agent.Result) int {
	total := 0
	for _, r := range stages {
		total += r.TokensUsed
	}
	return total
}

func countValid(candidates []tools.SQLCandidate) int {
	n := 0
	for _, c := range candidates {
		if c.IsValid {
			n++
		}
	}
	return n
}

func firstValidIndex(candidates []tools.SQLCandidate) int {
	for i, c := range candidates {
		if c.IsValid {
			return i
		}
	}
	return 0
}
