package llmgateway

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedSQLRe     = regexp.MustCompile("(?is)```sql\\s*(.*?)\\s*```")
	fencedAnySelect = regexp.MustCompile("(?is)```\\w*\\s*(SELECT.*?)\\s*```")
	bareSelectRe    = regexp.MustCompile(`(?is)(SELECT\b.*?;)`)

	fencedJSONRe = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	braceSpanRe  = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractSQL recognizes, in order, a fenced ```sql block, any fenced
// block beginning with SELECT, or a bare "SELECT ...;" statement.
// Returns ErrExtractFailed if none match.
func ExtractSQL(text string) (string, error) {
	if m := fencedSQLRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	if m := fencedAnySelect.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	if m := bareSelectRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	return "", ErrExtractFailed
}

// ExtractJSON tries, in order, a direct parse of the whole text, a
// fenced block, then the first {...} span, unmarshaling into v.
// Returns ErrExtractFailed if no tier produces valid JSON.
func ExtractJSON(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(m[1]), v); err == nil {
			return nil
		}
	}
	if m := braceSpanRe.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), v); err == nil {
			return nil
		}
	}
	return ErrExtractFailed
}
