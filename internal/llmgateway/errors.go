package llmgateway

import "errors"

// ErrEmpty reports that the provider returned no content after the
// configured retries.
var ErrEmpty = errors.New("llm returned empty content after retries")

// ErrExtractFailed reports that SQL or JSON could not be pulled from a
// response.
var ErrExtractFailed = errors.New("could not extract structured content from llm response")
