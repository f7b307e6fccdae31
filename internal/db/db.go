// Package db stores the vector index in Postgres with the pgvector extension.
// It is an alternative to the file-backed chromem index for deployments that
// already run Postgres.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"insurance-rag/internal/config"
	"insurance-rag/internal/index"
)

const insertBatchSize = 500

// PolicyChunk is one row of the index table. Position is the chunk's index
// in the metadata file.
type PolicyChunk struct {
	bun.BaseModel `bun:"table:policy_chunks,alias:pc"`
	Position      int             `bun:"position,notnull"`
	BuildID       string          `bun:"build_id,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector,notnull"`
	Score         float32         `bun:"score,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a handle for cfg. Driver "pg" uses bun's pgdriver, driver
// "postgres" uses lib/pq. No connection is made until first use.
func ConnectDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	var sqldb *sql.DB
	switch cfg.Driver {
	case "", "pg":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		sqldb = sql.OpenDB(pgdriver.NewConnector(opts...))
	case "postgres":
		var err error
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
	return NewDB(sqldb, cfg.Debug), nil
}

// Store keeps one build in the policy_chunks table. Saving a build replaces
// the previous one; the location argument is only logged.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func createTableSQL(dimension int) string {
	return fmt.Sprintf(`CREATE TABLE policy_chunks (
	position integer PRIMARY KEY,
	build_id text NOT NULL,
	content text NOT NULL,
	embedding vector(%d) NOT NULL
)`, dimension)
}

func (s *Store) Save(ctx context.Context, location string, manifest index.Manifest, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors))
	}
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	rows := make([]PolicyChunk, len(chunks))
	for i := range chunks {
		rows[i] = PolicyChunk{
			Position:  i,
			BuildID:   manifest.BuildID,
			Content:   chunks[i],
			Embedding: pgvector.NewVector(vectors[i]),
		}
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDropTable().Model((*PolicyChunk)(nil)).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("dropping table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, createTableSQL(manifest.Dimension)); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
		for start := 0; start < len(rows); start += insertBatchSize {
			batch := rows[start:min(start+insertBatchSize, len(rows))]
			if _, err := tx.NewInsert().Model(&batch).Exec(ctx); err != nil {
				return fmt.Errorf("inserting rows %d-%d: %w", start, start+len(batch)-1, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debug().Str("location", location).Int("rows", len(rows)).Msg("Stored vectors in postgres")
	return nil
}

func (s *Store) Open(ctx context.Context, location string) (index.Searcher, error) {
	n, err := s.db.NewSelect().Model((*PolicyChunk)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}
	log.Debug().Str("location", location).Int("rows", n).Msg("Opened postgres index")
	return &Searcher{db: s.db, count: n}, nil
}

// Searcher ranks rows by cosine similarity. The row count is read once at
// open time.
type Searcher struct {
	db    *bun.DB
	count int
}

func (s *Searcher) Len() int { return s.count }

func (s *Searcher) Search(ctx context.Context, query []float32, k int) ([]index.Hit, error) {
	vec := pgvector.NewVector(query)

	var rows []PolicyChunk
	err := s.db.NewSelect().
		Model(&rows).
		Column("position", "build_id", "content").
		ColumnExpr("1 - (embedding <=> ?) AS score", vec).
		OrderExpr("embedding <=> ?", vec).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	return toHits(rows, k), nil
}

func toHits(rows []PolicyChunk, k int) []index.Hit {
	hits := make([]index.Hit, 0, k)
	for _, r := range rows {
		hits = append(hits, index.Hit{
			Position: r.Position,
			Score:    r.Score,
			Content:  r.Content,
			BuildID:  r.BuildID,
		})
	}
	for len(hits) < k {
		hits = append(hits, index.Hit{Position: index.NoMatch})
	}
	return hits
}
