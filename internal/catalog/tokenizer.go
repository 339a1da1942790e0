package catalog

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenizer is shared process-wide: one cl100k_base encoder, lazily built.
var (
	tkOnce sync.Once
	tkEnc  *tiktoken.Tiktoken
)

func encoder() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// tiktoken-go ships cl100k_base's ranks embedded; failure here
			// means a corrupted install, not a runtime condition to
			// recover from gracefully.
			panic(err)
		}
		tkEnc = enc
	})
	return tkEnc
}

// CountTokens returns the cl100k_base token count of s.
func CountTokens(s string) int {
	return len(encoder().Encode(s, nil, nil))
}
