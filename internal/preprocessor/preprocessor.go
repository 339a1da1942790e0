package preprocessor

import (
	"context"
	"fmt"
	"strings"

	"clinsql/internal/catalog"
	"clinsql/internal/dbadapter"
)

const maxDistinctPerColumn = 1000

// Stats tracks what Build indexed, mirroring DatabasePreprocessor.stats
// in the Python reference.
type Stats struct {
	TotalValuesIndexed int
	TotalDescriptions  int
	TablesProcessed    int
}

// Preprocessor owns the two read-only indexes built once at process
// start from the catalog: the MinHash-LSH value index and the
// description index, plus an on-disk cache of both.
type Preprocessor struct {
	lsh   *MinHashLSH
	desc  *DescriptionIndex
	stats Stats
}

// New returns an empty Preprocessor ready for Build or Load.
func New() *Preprocessor {
	return &Preprocessor{
		lsh:  NewMinHashLSH(),
		desc: NewDescriptionIndex(),
	}
}

// Stats returns the current indexing statistics.
func (p *Preprocessor) Stats() Stats { return p.stats }

// Build walks every non-metadata table of cat, indexing each text
// column's distinct values into the LSH index and emitting one
// description-index document per table and per column.
func (p *Preprocessor) Build(ctx context.Context, adapter dbadapter.DBAdapter, cat *catalog.Catalog) error {
	for _, name := range cat.TableNames() {
		td, err := cat.Table(name)
		if err != nil {
			return fmt.Errorf("looking up table %q: %w", name, err)
		}
		if td.IsMetadata {
			continue
		}

		if err := p.indexValues(ctx, adapter, td); err != nil {
			return fmt.Errorf("indexing values of %q: %w", name, err)
		}
		p.indexDescriptions(td)
		p.stats.TablesProcessed++
	}
	return nil
}

func (p *Preprocessor) indexValues(ctx context.Context, adapter dbadapter.DBAdapter, td *catalog.TableDescriptor) error {
	for _, col := range td.Columns {
		if col.Semantic != catalog.TypeText {
			continue
		}
		if strings.HasPrefix(col.Name, "_") {
			continue
		}

		query := fmt.Sprintf(
			"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL AND %s != '' LIMIT %d",
			col.Name, td.Name, col.Name, col.Name, maxDistinctPerColumn,
		)
		result, err := adapter.ExecuteQuery(ctx, query)
		if err != nil {
			// A problematic column (e.g. view without DISTINCT support)
			// is skipped, never fatal to the whole build.
			continue
		}

		for _, row := range result.Rows {
			raw, ok := row[col.Name]
			if !ok || raw == nil {
				continue
			}
			value := fmt.Sprintf("%v", raw)
			if len(value) < 2 || len(value) > 200 {
				continue
			}
			p.lsh.Add(IndexedValue{Value: value, Table: td.Name, Column: col.Name})
			p.stats.TotalValuesIndexed++
		}
	}
	return nil
}

func (p *Preprocessor) indexDescriptions(td *catalog.TableDescriptor) {
	var colDescriptions []string
	for _, col := range td.Columns {
		readable := readableName(col.Name)
		colDescriptions = append(colDescriptions, fmt.Sprintf("%s (%s)", readable, col.Semantic))

		p.desc.Add(Document{Kind: "column", Table: td.Name, Column: col.Name},
			fmt.Sprintf("%s %s %s", td.Name, col.Name, readable))
	}

	preview := colDescriptions
	suffix := ""
	if len(preview) > 10 {
		suffix = fmt.Sprintf(" and %d more columns", len(preview)-10)
		preview = preview[:10]
	}
	tableDesc := fmt.Sprintf("Table %s contains: %s%s", td.Name, strings.Join(preview, ", "), suffix)

	p.desc.Add(Document{Kind: "table", Table: td.Name, Description: tableDesc}, tableDesc)
	p.stats.TotalDescriptions++
}

func readableName(colName string) string {
	parts := strings.Split(colName, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

// EntityMatch is one result of RetrieveEntities.
type EntityMatch struct {
	Value      string
	Table      string
	Column     string
	Similarity float64
}

// RetrieveEntities finds values approximately matching keyword, blending
// LSH/Jaccard similarity with normalized edit-distance similarity.
func (p *Preprocessor) RetrieveEntities(keyword string, topK int) []EntityMatch {
	lshResults := p.lsh.Query(keyword, topK*2)

	results := make([]EntityMatch, 0, len(lshResults))
	for _, m := range lshResults {
		editSim := EditDistanceSimilarity(keyword, m.Value.Value)
		combined := 0.5 * (m.Score + editSim)
		results = append(results, EntityMatch{
			Value:      m.Value.Value,
			Table:      m.Value.Table,
			Column:     m.Value.Column,
			Similarity: combined,
		})
	}

	sortBySimilarityDesc(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func sortBySimilarityDesc(results []EntityMatch) {
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && results[j-1].Similarity < results[j].Similarity {
			results[j-1], results[j] = results[j], results[j-1]
			j--
		}
	}
}

// ContextMatch is one result of RetrieveContext.
type ContextMatch struct {
	Kind       string
	Table      string
	Column     string
	Similarity float64
}

// RetrieveContext finds schema documents (tables/columns) relevant to a
// free-text question via the description index.
func (p *Preprocessor) RetrieveContext(question string, topK int) []ContextMatch {
	hits := p.desc.Search(question, topK)
	out := make([]ContextMatch, 0, len(hits))
	for _, h := range hits {
		out = append(out, ContextMatch{
			Kind:       h.Doc.Kind,
			Table:      h.Doc.Table,
			Column:     h.Doc.Column,
			Similarity: h.Score,
		})
	}
	return out
}
