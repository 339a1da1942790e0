package preprocessor

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
)

// cacheMagic and cacheVersion gate the on-disk blob. A format change
// bumps cacheVersion so a stale file rebuilds instead of failing a
// type assertion at load time.
const (
	cacheMagic   = "NXIDX"
	cacheVersion = uint32(1)
)

type cacheBlob struct {
	Magic   string
	Version uint32

	Values []IndexedValue
	Bands  [][]BandEntry

	Docs    []Document
	Vectors [][]float64

	Stats Stats
}

// Save serializes the preprocessor's full state to path as a single gob
// blob behind the magic string and version header.
func (p *Preprocessor) Save(path string) error {
	values, bands := p.lsh.ExportState()
	docs, vectors := p.desc.ExportState()

	blob := cacheBlob{
		Magic:   cacheMagic,
		Version: cacheVersion,
		Values:  values,
		Bands:   bands,
		Docs:    docs,
		Vectors: vectors,
		Stats:   p.stats,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blob); err != nil {
		return fmt.Errorf("encoding preprocessor cache: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Load rebuilds the preprocessor's indexes from path. It reports
// (false, nil) when the file is absent or its magic/version don't
// match, signaling the caller to rebuild rather than treating it as a
// fatal error.
func (p *Preprocessor) Load(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading preprocessor cache: %w", err)
	}

	var blob cacheBlob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&blob); err != nil {
		return false, nil // corrupt/foreign blob: rebuild, don't fail startup
	}
	if blob.Magic != cacheMagic || blob.Version != cacheVersion {
		return false, nil
	}

	p.lsh.ImportState(blob.Values, blob.Bands)
	p.desc.ImportState(blob.Docs, blob.Vectors)
	p.stats = blob.Stats
	return true, nil
}
