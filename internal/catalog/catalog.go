package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"clinsql/internal/dbadapter"
)

// categoryTerms maps a clinical term seen in a question to the category
// tag used to resolve candidate tables, backing the Information
// Retriever's static term→category mapping.
var categoryTerms = map[string]string{
	"visit":      "visit",
	"sae":        "safety",
	"ae":         "safety",
	"adverse":    "safety",
	"query":      "query",
	"coding":     "coding",
	"medra":      "coding",
	"enrollment": "visit",
	"site":       "visit",
}

// metadataTablePhrases are the literal "about the database itself"
// phrases (preserved verbatim, not generalized).
var metadataTablePhrases = []string{
	"how many studies",
	"number of studies",
	"how many tables",
	"database structure",
}

// Catalog is the read-mostly mapping from table name to TableDescriptor,
// plus a secondary index by category. There is no index by study
// identifier.
type Catalog struct {
	mu           sync.RWMutex
	tables       map[string]*TableDescriptor
	byCategory   map[string][]string
	adapter      dbadapter.DBAdapter
	cachePath    string
}

// New builds an empty catalog bound to adapter for refreshes.
func New(adapter dbadapter.DBAdapter, cachePath string) *Catalog {
	return &Catalog{
		tables:     make(map[string]*TableDescriptor),
		byCategory: make(map[string][]string),
		adapter:    adapter,
		cachePath:  cachePath,
	}
}

// NewFromTables builds a catalog directly from pre-built descriptors,
// skipping Refresh/adapter access entirely; used by callers that already
// have table metadata in hand (tests, offline tooling).
func NewFromTables(tables map[string]*TableDescriptor) *Catalog {
	c := &Catalog{tables: tables, byCategory: make(map[string][]string)}
	if c.tables == nil {
		c.tables = make(map[string]*TableDescriptor)
	}
	c.rebuildIndexesLocked()
	return c
}

// Table returns the descriptor for name, or ErrNotFound.
func (c *Catalog) Table(name string) (*TableDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, ErrNotFound)
	}
	return t, nil
}

// TableNames returns all table names in a stable, sorted order.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TablesByCategory returns the table names tagged with category.
func (c *Catalog) TablesByCategory(category string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.byCategory[category]...)
}

// CategoryForTerm resolves a clinical term to its category tag, the
// static mapping IR pools together with LSH and context hits.
func CategoryForTerm(term string) (string, bool) {
	cat, ok := categoryTerms[strings.ToLower(term)]
	return cat, ok
}

// MentionsDatabaseItself reports whether question contains one of the
// literal "about the database itself" phrases that force in the
// metadata tables.
func MentionsDatabaseItself(question string) bool {
	q := strings.ToLower(question)
	for _, p := range metadataTablePhrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// SearchColumns returns every (table, column) whose column name contains
// substr. No pipeline stage calls it; the Schema Selector's fallback
// takes the IR candidate tables instead.
func (c *Catalog) SearchColumns(substr string) []ColumnSearchResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	substr = strings.ToLower(substr)
	var hits []ColumnSearchResult
	for _, name := range c.sortedNamesLocked() {
		t := c.tables[name]
		for _, col := range t.Columns {
			if strings.Contains(strings.ToLower(col.Name), substr) {
				hits = append(hits, ColumnSearchResult{Table: name, Column: col.Name, Type: col.Semantic})
			}
		}
	}
	return hits
}

func (c *Catalog) sortedNamesLocked() []string {
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Refresh walks ListTables/ColumnsOf/PrimaryKeys/ForeignKeys to populate
// every table, attaching up to three sample values per column of each
// non-metadata table (when includeSamples is set) and a curated
// description for metadata tables (leading "_").
// It reloads from cachePath when the cache's table+row-count hash
// still matches, and persists a fresh cache otherwise.
func (c *Catalog) Refresh(ctx context.Context, includeSamples bool) error {
	tableNames, err := c.adapter.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	sort.Strings(tableNames)

	rowCounts := make(map[string]int64, len(tableNames))
	for _, name := range tableNames {
		rc, err := c.adapter.RowCount(ctx, name)
		if err != nil {
			rc = 0
		}
		rowCounts[name] = rc
	}

	if cached, ok := c.tryLoadCache(tableNames, rowCounts); ok {
		c.mu.Lock()
		c.tables = cached
		c.rebuildIndexesLocked()
		c.mu.Unlock()
		return nil
	}

	tables := make(map[string]*TableDescriptor, len(tableNames))
	for _, name := range tableNames {
		td := &TableDescriptor{
			Name:       name,
			RowCount:   rowCounts[name],
			IsMetadata: strings.HasPrefix(name, "_"),
			Stats:      make(map[string]ValueStats),
		}
		if td.IsMetadata {
			td.Description = curatedMetadataDescription(name)
		} else {
			td.Category = deriveCategory(name)
		}

		cols, err := c.adapter.ColumnsOf(ctx, name)
		if err != nil {
			return fmt.Errorf("columns of %q: %w", name, err)
		}
		for _, col := range cols {
			td.Columns = append(td.Columns, ColumnDescriptor{
				Name:     col.Name,
				Semantic: classifySemanticType(col.DataType),
				Nullable: col.Nullable,
			})
		}

		if pks, err := c.adapter.PrimaryKeys(ctx, name); err == nil {
			td.PrimaryKeys = pks
			pkSet := make(map[string]bool, len(pks))
			for _, pk := range pks {
				pkSet[pk] = true
			}
			for i := range td.Columns {
				td.Columns[i].IsPrimaryKey = pkSet[td.Columns[i].Name]
			}
		}

		if fks, err := c.adapter.ForeignKeys(ctx, name); err == nil {
			for _, fk := range fks {
				td.ForeignKeys = append(td.ForeignKeys, ForeignKeyEdge{
					Column:       fk.Column,
					TargetTable:  fk.ReferencedTable,
					TargetColumn: fk.ReferencedColumn,
				})
			}
		}

		// Invariant: every FK source column must be a member column.
		td.ForeignKeys = filterValidForeignKeys(td)

		if includeSamples && !td.IsMetadata {
			if err := c.attachSamples(ctx, td); err != nil {
				return fmt.Errorf("sampling %q: %w", name, err)
			}
			c.collectQuality(ctx, c.adapter, td)
		}

		tables[name] = td
	}

	c.mu.Lock()
	c.tables = tables
	c.rebuildIndexesLocked()
	c.mu.Unlock()

	return c.saveCache(tableNames, rowCounts)
}

func filterValidForeignKeys(td *TableDescriptor) []ForeignKeyEdge {
	valid := td.ForeignKeys[:0]
	for _, fk := range td.ForeignKeys {
		if td.ColumnOf(fk.Column) {
			valid = append(valid, fk)
		}
	}
	return valid
}

func (c *Catalog) attachSamples(ctx context.Context, td *TableDescriptor) error {
	result, err := c.adapter.SampleRows(ctx, td.Name, 5)
	if err != nil {
		return err
	}
	for i := range td.Columns {
		col := &td.Columns[i]
		seen := make(map[string]bool)
		for _, row := range result.Rows {
			v, ok := row[col.Name]
			if !ok || v == nil {
				continue
			}
			s := fmt.Sprintf("%v", v)
			if seen[s] || len(col.SampleValues) >= 3 {
				continue
			}
			seen[s] = true
			col.SampleValues = append(col.SampleValues, s)
		}
	}
	return nil
}

// deriveCategory tags a non-metadata table with a category by matching
// categoryTerms against the table name itself, the same static mapping
// IR consults for clinical terms found in a question.
func deriveCategory(tableName string) string {
	lower := strings.ToLower(tableName)
	for term, cat := range categoryTerms {
		if strings.Contains(lower, term) {
			return cat
		}
	}
	return ""
}

func curatedMetadataDescription(name string) string {
	switch name {
	case "_studies":
		return "curated metadata: list of studies tracked by this database"
	case "_table_metadata":
		return "curated metadata: descriptions of every table in this database"
	default:
		return "curated metadata table"
	}
}

func classifySemanticType(sqlType string) SemanticType {
	t := strings.ToLower(sqlType)
	switch {
	case strings.Contains(t, "int"):
		return TypeInteger
	case strings.Contains(t, "decimal"), strings.Contains(t, "numeric"),
		strings.Contains(t, "float"), strings.Contains(t, "double"), strings.Contains(t, "real"):
		return TypeNumeric
	case strings.Contains(t, "date"), strings.Contains(t, "time"):
		return TypeTemporal
	case strings.Contains(t, "bool"):
		return TypeBoolean
	case strings.Contains(t, "char"), strings.Contains(t, "text"), strings.Contains(t, "clob"):
		return TypeText
	default:
		return TypeUnknown
	}
}

func (c *Catalog) rebuildIndexesLocked() {
	c.byCategory = make(map[string][]string)
	for name, td := range c.tables {
		if td.Category == "" {
			continue
		}
		c.byCategory[td.Category] = append(c.byCategory[td.Category], name)
	}
	for cat := range c.byCategory {
		sort.Strings(c.byCategory[cat])
	}
}

// cacheFile is the JSON on-disk shape with stable field names.
type cacheFile struct {
	Hash   string                      `json:"hash"`
	Tables map[string]*TableDescriptor `json:"tables"`
}

func cacheHash(tableNames []string, rowCounts map[string]int64) string {
	h := sha256.New()
	for _, name := range tableNames {
		h.Write([]byte(name))
		h.Write([]byte(strconv.FormatInt(rowCounts[name], 10)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Catalog) tryLoadCache(tableNames []string, rowCounts map[string]int64) (map[string]*TableDescriptor, bool) {
	if c.cachePath == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return nil, false
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, false
	}
	if cf.Hash != cacheHash(tableNames, rowCounts) {
		return nil, false
	}
	return cf.Tables, true
}

func (c *Catalog) saveCache(tableNames []string, rowCounts map[string]int64) error {
	if c.cachePath == "" {
		return nil
	}
	c.mu.RLock()
	cf := cacheFile{Hash: cacheHash(tableNames, rowCounts), Tables: c.tables}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling schema cache: %w", err)
	}
	if err := os.MkdirAll(dirOf(c.cachePath), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	return os.WriteFile(c.cachePath, data, 0o644)
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
