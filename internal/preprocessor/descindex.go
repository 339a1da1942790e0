package preprocessor

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// clinicalKeywords are the fixed presence-flag vocabulary for the
// deterministic fallback embedding, preserved verbatim, not
// generalized.
var clinicalKeywords = []string{
	"patient", "subject", "site", "visit", "query", "status",
	"date", "count", "id", "name", "type", "code", "value",
}

var wordRe = regexp.MustCompile(`\w+`)

// Document is one retrievable unit of the description index: either a
// table summary or a single column's readable name.
type Document struct {
	Kind        string // "table" | "column"
	Table       string
	Column      string
	Description string
}

// featureVector is the deterministic fallback embedding: word-length
// statistics, 26 normalized character frequencies, and 13 clinical
// keyword presence flags (45 dimensions total; any learned
// sentence-embedding model, if wired, would replace this).
type featureVector []float64

func computeFeatures(text string) featureVector {
	lower := strings.ToLower(text)
	allWords := wordRe.FindAllString(lower, -1)
	words := uniqueWords(lower)

	var sumLen, maxLen int
	minLen := 0
	if len(words) > 0 {
		minLen = len(words[0])
	}
	for _, w := range words {
		sumLen += len(w)
		if len(w) > maxLen {
			maxLen = len(w)
		}
		if len(w) < minLen {
			minLen = len(w)
		}
	}
	avgLen := 0.0
	if len(words) > 0 {
		avgLen = float64(sumLen) / float64(len(words))
	}

	var variance float64
	for _, w := range words {
		d := float64(len(w)) - avgLen
		variance += d * d
	}
	if len(words) > 0 {
		variance /= float64(len(words))
	}
	stdevLen := math.Sqrt(variance)

	distinctRatio := 0.0
	if len(allWords) > 0 {
		distinctRatio = float64(len(words)) / float64(len(allWords))
	}

	features := make(featureVector, 0, 6+26+len(clinicalKeywords))
	features = append(features, avgLen, float64(maxLen), float64(len(words)), float64(minLen), stdevLen, distinctRatio)

	charCounts := make([]int, 26)
	total := 0
	for _, r := range lower {
		if r >= 'a' && r <= 'z' {
			charCounts[r-'a']++
			total++
		}
	}
	if total == 0 {
		total = 1
	}
	for _, c := range charCounts {
		features = append(features, float64(c)/float64(total))
	}

	for _, term := range clinicalKeywords {
		if strings.Contains(lower, term) {
			features = append(features, 1.0)
		} else {
			features = append(features, 0.0)
		}
	}

	return features
}

func uniqueWords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range wordRe.FindAllString(text, -1) {
		if _, ok := seen[w]; !ok {
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}

func cosineSimilarity(a, b featureVector) float64 {
	if len(a) != len(b) {
		maxLen := len(a)
		if len(b) > maxLen {
			maxLen = len(b)
		}
		a = padTo(a, maxLen)
		b = padTo(b, maxLen)
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func padTo(v featureVector, n int) featureVector {
	if len(v) >= n {
		return v
	}
	out := make(featureVector, n)
	copy(out, v)
	return out
}

// DescriptionIndex holds one document and feature vector per table and
// per column, searchable by cosine similarity against a free-text
// query, the Go analogue of VectorStore in the Python reference, with
// its sentence-transformer branch collapsed to the deterministic
// fallback since no embedding model is wired into this pipeline.
type DescriptionIndex struct {
	docs     []Document
	vectors  []featureVector
}

// NewDescriptionIndex returns an empty index.
func NewDescriptionIndex() *DescriptionIndex {
	return &DescriptionIndex{}
}

// Add embeds text and stores doc alongside it.
func (d *DescriptionIndex) Add(doc Document, text string) {
	d.docs = append(d.docs, doc)
	d.vectors = append(d.vectors, computeFeatures(text))
}

// ContextHit is one scored description-index match.
type ContextHit struct {
	Doc   Document
	Score float64
}

// ExportState returns the documents and feature vectors for persistence.
func (d *DescriptionIndex) ExportState() ([]Document, [][]float64) {
	vecs := make([][]float64, len(d.vectors))
	for i, v := range d.vectors {
		vecs[i] = []float64(v)
	}
	return d.docs, vecs
}

// ImportState replaces the index's contents with previously exported
// state, used when loading from the on-disk cache.
func (d *DescriptionIndex) ImportState(docs []Document, vectors [][]float64) {
	d.docs = docs
	d.vectors = make([]featureVector, len(vectors))
	for i, v := range vectors {
		d.vectors[i] = featureVector(v)
	}
}

// Search returns the top-K documents by cosine similarity to query.
func (d *DescriptionIndex) Search(query string, topK int) []ContextHit {
	if len(d.docs) == 0 {
		return nil
	}
	qv := computeFeatures(query)
	hits := make([]ContextHit, len(d.docs))
	for i, doc := range d.docs {
		hits[i] = ContextHit{Doc: doc, Score: cosineSimilarity(qv, d.vectors[i])}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
