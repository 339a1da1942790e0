package agent

import (
	"context"
	"fmt"
	"sort"

	"clinsql/internal/dbadapter"
	"clinsql/internal/logging"
	"clinsql/internal/tools"
)

// maxRevisions bounds CG's validate/revise loop per candidate.
const maxRevisions = 2

// CandidateGenerator is the third pipeline stage.
type CandidateGenerator struct {
	Tools   *tools.CGTools
	Adapter dbadapter.DBAdapter
	Log     *logging.Logger
}

// Run generates up to numCandidates candidates, one per strategy taken
// from the fixed Strategies prefix, each run through validate -> revise
// (bounded by maxRevisions) -> safe_execute, then sorted valid-first,
// strategy order preserved within each group.
func (cg *CandidateGenerator) Run(ctx context.Context, question, schemaContext, entityBlock string, numCandidates int) Result {
	b := newResultBuilder("candidate_generator", cg.Log)

	strategies := tools.Strategies
	if numCandidates > 0 && numCandidates < len(strategies) {
		strategies = strategies[:numCandidates]
	}

	candidates := make([]tools.SQLCandidate, 0, len(strategies))
	for _, strat := range strategies {
		genResult := cg.Tools.GenerateCandidate(ctx, question, schemaContext, entityBlock, strat)
		b.record("generate_candidate:"+strat.Name, genResult.Success, genResult.Tokens)
		if !genResult.Success {
			candidates = append(candidates, tools.SQLCandidate{Strategy: strat.Name, Error: genResult.Error})
			continue
		}
		sql, _ := genResult.Data.(string)
		cand := tools.SQLCandidate{Strategy: strat.Name, SQL: sql}
		cg.validateAndRevise(ctx, &cand, question, schemaContext, b)
		candidates = append(candidates, cand)
	}

	sortCandidatesValidFirst(candidates)

	validCount := 0
	for _, c := range candidates {
		if c.IsValid {
			validCount++
		}
	}
	reasoning := fmt.Sprintf("%d of %d candidates valid", validCount, len(candidates))
	return b.ok(candidates, reasoning)
}

// sortCandidatesValidFirst orders valid candidates before invalid ones,
// preserving the original strategy order within each group, CG's
// documented fallback ordering.
func sortCandidatesValidFirst(candidates []tools.SQLCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].IsValid && !candidates[j].IsValid
	})
}

// validateAndRevise mutates cand in place: EXPLAIN-validates the SQL,
// repairing it up to maxRevisions times on failure, then previews a
// valid candidate's rows via a safe, timeout-bounded execution.
func (cg *CandidateGenerator) validateAndRevise(ctx context.Context, cand *tools.SQLCandidate, question, schemaContext string, b *resultBuilder) {
	for attempt := 0; attempt <= maxRevisions; attempt++ {
		err := cg.Adapter.Validate(ctx, cand.SQL)
		b.record("validate", err == nil, 0)
		if err == nil {
			cand.IsValid = true
			cand.Error = ""
			break
		}
		cand.Error = err.Error()
		if attempt == maxRevisions {
			break
		}
		revResult := cg.Tools.Revise(ctx, question, schemaContext, cand.SQL, err.Error())
		b.record("revise", revResult.Success, revResult.Tokens)
		if !revResult.Success {
			break
		}
		sql, _ := revResult.Data.(string)
		cand.SQL = sql
		cand.WasRevised = true
	}

	if !cand.IsValid {
		return
	}

	qr, err := cg.Adapter.SafeExecute(ctx, cand.SQL, 30)
	b.record("safe_execute", err == nil, 0)
	if err != nil {
		cand.IsValid = false
		cand.Error = err.Error()
		return
	}
	cand.PreviewColumns = qr.Columns
	cand.PreviewRowCount = qr.RowCount
	preview := qr.Rows
	if len(preview) > 5 {
		preview = preview[:5]
	}
	cand.PreviewRows = preview
}
