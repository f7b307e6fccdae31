package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"insurance-rag/internal/helper"
	"insurance-rag/internal/index"
)

const (
	collectionName = "policy_chunks"
	buildIDKey     = "build_id"
)

// VectorDBManager encapsulates the chromem-go database operations. The whole
// database lives in memory and is exported to a single index file.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	compress      bool
	encryptionKey string
}

// NewVectorDBManager initializes a new in-memory vector database manager
func NewVectorDBManager(compress bool, encryptionKey string) *VectorDBManager {
	return &VectorDBManager{
		db:            chromem.NewDB(),
		compress:      compress,
		encryptionKey: encryptionKey,
	}
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(name string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// add multiple documents
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	if m.collection == nil {
		return errors.New("collection is required")
	}
	if err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Export writes the current collection to filePath through a temp file.
func (m *VectorDBManager) Export(filePath string) error {
	if m.collection == nil {
		return errors.New("collection is required")
	}
	if filePath == "" {
		return errors.New("file path is required")
	}

	log.Debug().
		Str("collection", m.collection.Name).
		Str("file", filePath).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Msg("Exporting collection")

	if err := helper.CreateFolder(filepath.Dir(filePath)); err != nil {
		return err
	}
	tmp := filePath + ".tmp"
	if err := m.db.ExportToFile(tmp, m.compress, m.encryptionKey, m.collection.Name); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to export database: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}

// Import loads filePath and selects the named collection.
func (m *VectorDBManager) Import(filePath, name string) error {
	if _, err := os.Stat(filePath); err != nil {
		return err
	}
	if err := m.db.ImportFromFile(filePath, m.encryptionKey); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(name, nil)
	if c == nil {
		return fmt.Errorf("collection %q not found in %s", name, filePath)
	}
	m.collection = c
	return nil
}

// Store implements index.Store on top of chromem export files.
type Store struct {
	compress      bool
	encryptionKey string
}

func NewStore(compress bool, encryptionKey string) *Store {
	return &Store{compress: compress, encryptionKey: encryptionKey}
}

// Save writes a fresh collection whose document IDs are the chunk positions.
func (s *Store) Save(ctx context.Context, location string, manifest index.Manifest, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks and %d vectors", len(chunks), len(vectors))
	}

	m := NewVectorDBManager(s.compress, s.encryptionKey)
	if _, err := m.GetOrCreateCollection(collectionName); err != nil {
		return err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   chunk,
			Metadata:  map[string]string{buildIDKey: manifest.BuildID},
			Embedding: vectors[i],
		}
	}

	log.Info().Msgf("Adding %d documents to vector database", len(docs))
	if err := m.CreateDocs(ctx, docs); err != nil {
		return err
	}
	return m.Export(location)
}

// Open imports the index file at location.
func (s *Store) Open(_ context.Context, location string) (index.Searcher, error) {
	m := NewVectorDBManager(s.compress, s.encryptionKey)
	if err := m.Import(location, collectionName); err != nil {
		return nil, err
	}
	return &Searcher{collection: m.collection}, nil
}

// Searcher runs nearest-neighbour queries against an imported collection.
type Searcher struct {
	collection *chromem.Collection
}

func (s *Searcher) Len() int { return s.collection.Count() }

// Search returns k slots. chromem refuses nResults above the collection size,
// so the query is clamped and the remaining slots are padded with NoMatch.
func (s *Searcher) Search(ctx context.Context, query []float32, k int) ([]index.Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	hits := make([]index.Hit, 0, k)

	if n := min(k, s.collection.Count()); n > 0 {
		results, err := s.collection.QueryEmbedding(ctx, query, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to query by similarity: %w", err)
		}
		for _, r := range results {
			pos, err := strconv.Atoi(r.ID)
			if err != nil {
				return nil, fmt.Errorf("unexpected document id %q: %w", r.ID, err)
			}
			hits = append(hits, index.Hit{
				Position: pos,
				Score:    r.Similarity,
				Content:  r.Content,
				BuildID:  r.Metadata[buildIDKey],
			})
		}
	}
	for len(hits) < k {
		hits = append(hits, index.Hit{Position: index.NoMatch})
	}
	return hits, nil
}
