// Package index builds and loads the pair of artifacts retrieval runs on: a
// vector index and a metadata file holding the chunk text by position.
//
// The two are tied together by a manifest. Every build gets a fresh build ID
// that is written into the metadata file and stamped on every stored vector,
// so a stale or foreign pair is detected on load or on the first search
// instead of silently returning the wrong chunks.
package index

import (
	"context"
	"time"
)

// NoMatch is the position reported for search slots without a vector.
const NoMatch = -1

// Hit is one search result slot.
type Hit struct {
	Position int
	Score    float32
	// Content and BuildID are what the store recorded for Position.
	Content string
	BuildID string
}

// Searcher is a loaded, read-only vector index.
type Searcher interface {
	// Search returns exactly k hits ordered by descending score. Slots beyond
	// the number of stored vectors carry Position NoMatch.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	// Len is the number of stored vectors.
	Len() int
}

// Store persists vectors at a location and reopens them for search.
type Store interface {
	Save(ctx context.Context, location string, manifest Manifest, chunks []string, vectors [][]float32) error
	Open(ctx context.Context, location string) (Searcher, error)
}

// Manifest identifies one build of the corpus.
type Manifest struct {
	BuildID   string    `json:"build_id,omitempty"`
	Model     string    `json:"embedding_model,omitempty"`
	Dimension int       `json:"dimension,omitempty"`
	Count     int       `json:"count"`
	Checksum  string    `json:"checksum,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Loaded is a validated index/metadata pair.
type Loaded struct {
	Searcher Searcher
	Chunks   []string
	Manifest Manifest
}
