package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"insurance-rag/internal/helper"
)

// Metadata is the on-disk metadata file. Chunk order is significant: chunk i
// belongs to vector i.
type Metadata struct {
	Manifest
	Chunks []string `json:"chunks"`
}

// Checksum hashes the ordered chunk list.
func Checksum(chunks []string) string {
	h := sha256.New()
	for _, c := range chunks {
		fmt.Fprintf(h, "%d:", len(c))
		h.Write([]byte(c))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// WriteMetadata writes meta as indented JSON, keeping non-ASCII text readable.
func WriteMetadata(path string, meta Metadata) error {
	return helper.WriteFileAtomic(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		return nil
	})
}

// ReadMetadata reads a metadata file. Files holding only {"chunks": [...]}
// are accepted; their manifest fields stay empty apart from Count.
func ReadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}
	var raw struct {
		Manifest
		Chunks *[]string `json:"chunks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Metadata{}, fmt.Errorf("parsing metadata %s: %w", path, err)
	}
	if raw.Chunks == nil {
		return Metadata{}, fmt.Errorf("parsing metadata %s: missing \"chunks\" key", path)
	}
	meta := Metadata{Manifest: raw.Manifest, Chunks: *raw.Chunks}
	if meta.BuildID == "" && meta.Count == 0 {
		meta.Count = len(meta.Chunks)
	}
	return meta, nil
}
