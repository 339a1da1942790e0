package catalog

import (
	"fmt"
	"strings"
)

// Project renders selectedTables into a token-budgeted DDL-like string,
// the only schema context ever passed to the SQL generator. Tables are
// emitted greedily in the given order; a block that would
// overflow the budget is first retried at compact detail, and if that
// still overflows, projection stops with a truncation notice.
func (c *Catalog) Project(selectedTables []string, tokenBudget int, detail DetailLevel) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sb strings.Builder
	used := 0
	truncated := false

	var joinLines []string

	for _, name := range selectedTables {
		td, ok := c.tables[name]
		if !ok {
			continue
		}

		block := renderBlock(td, detail)
		blockTokens := CountTokens(block)

		if used+blockTokens > tokenBudget && detail != DetailCompact {
			compact := renderBlock(td, DetailCompact)
			compactTokens := CountTokens(compact)
			if used+compactTokens <= tokenBudget {
				block, blockTokens = compact, compactTokens
			}
		}

		if used+blockTokens > tokenBudget {
			truncated = true
			break
		}

		sb.WriteString(block)
		sb.WriteString("\n")
		used += blockTokens

		joinLines = append(joinLines, joinLinesFor(td, selectedTables)...)
	}

	if len(joinLines) > 0 {
		sb.WriteString("-- JOIN:\n")
		for _, jl := range dedupe(joinLines) {
			sb.WriteString(jl)
			sb.WriteString("\n")
		}
	}

	if truncated {
		sb.WriteString("-- [schema projection truncated: token budget exhausted]\n")
	}

	return sb.String()
}

func joinLinesFor(td *TableDescriptor, selected []string) []string {
	selSet := make(map[string]bool, len(selected))
	for _, s := range selected {
		selSet[s] = true
	}
	var lines []string
	for _, fk := range td.ForeignKeys {
		if selSet[fk.TargetTable] {
			lines = append(lines, fmt.Sprintf("-- JOIN: %s.%s = %s.%s", td.Name, fk.Column, fk.TargetTable, fk.TargetColumn))
		}
	}
	return lines
}

func dedupe(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func renderBlock(td *TableDescriptor, detail DetailLevel) string {
	if detail == DetailCompact {
		return renderCompact(td)
	}
	return renderMediumOrDetailed(td, detail)
}

// renderCompact emits a single line: name[col:type,...]
func renderCompact(td *TableDescriptor) string {
	var cols []string
	for _, c := range td.Columns {
		cols = append(cols, fmt.Sprintf("%s:%s", c.Name, c.Semantic))
	}
	return fmt.Sprintf("%s[%s]", td.Name, strings.Join(cols, ","))
}

func renderMediumOrDetailed(td *TableDescriptor, detail DetailLevel) string {
	var sb strings.Builder

	if td.Description != "" {
		sb.WriteString(fmt.Sprintf("-- %s\n", td.Description))
	}
	for _, qi := range td.QualityIssues {
		sb.WriteString(fmt.Sprintf("-- QUALITY: [%s] %s.%s: %s\n", qi.Kind, td.Name, qi.Column, qi.Description))
	}

	sb.WriteString(fmt.Sprintf("TABLE %s (\n", td.Name))
	for _, col := range td.Columns {
		nullability := "NOT NULL"
		if col.Nullable {
			nullability = "NULL"
		}
		line := fmt.Sprintf("  %s %s %s", col.Name, col.Semantic, nullability)

		if detail == DetailDetailed {
			if col.Description != "" {
				line += fmt.Sprintf(" -- %s", col.Description)
			} else if len(col.SampleValues) > 0 {
				line += fmt.Sprintf(" -- e.g. %s", strings.Join(col.SampleValues, ", "))
			}
			if stats, ok := td.Stats[col.Name]; ok {
				line += renderStatsHint(stats)
			}
		} else if len(col.SampleValues) > 0 {
			line += fmt.Sprintf(" -- e.g. %s", col.SampleValues[0])
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString(")\n")

	if len(td.PrimaryKeys) > 0 {
		sb.WriteString(fmt.Sprintf("-- PRIMARY KEY: %s\n", strings.Join(td.PrimaryKeys, ", ")))
	}
	sb.WriteString(fmt.Sprintf("-- rows: %d\n", td.RowCount))

	return sb.String()
}

func renderStatsHint(stats ValueStats) string {
	if stats.HasRange {
		return fmt.Sprintf(" range=[%.0f..%.0f]", stats.NumericMin, stats.NumericMax)
	}
	if len(stats.TopValues) > 0 && stats.DistinctCount <= 15 {
		var vals []string
		for i, tv := range stats.TopValues {
			if i >= 8 {
				vals = append(vals, "...")
				break
			}
			vals = append(vals, fmt.Sprintf("%s(%d)", tv.Value, tv.Count))
		}
		return fmt.Sprintf(" values=[%s]", strings.Join(vals, ", "))
	}
	return ""
}
