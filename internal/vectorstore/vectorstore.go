// Package vectorstore embeds a free-text query and ranks catalog SKUs by
// cosine similarity against pgvector embeddings (spec.md §4.B).
package vectorstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/laptop-mgfd/dialogue-core/internal/core"
)

// Store performs embedding + pgvector similarity search.
type Store struct {
	pool    *pgxpool.Pool
	embed   *embedder
	timeout time.Duration
}

// Config bundles the dependencies needed to construct a Store.
type Config struct {
	Pool           *pgxpool.Pool
	EmbedEndpoint  string
	EmbedCacheSize int
	EmbedTimeout   time.Duration
	SearchTimeout  time.Duration
}

// New builds a Store from Config.
func New(cfg Config) (*Store, error) {
	emb, err := newEmbedder(cfg.EmbedEndpoint, cfg.EmbedCacheSize, cfg.EmbedTimeout)
	if err != nil {
		return nil, err
	}
	return &Store{pool: cfg.Pool, embed: emb, timeout: cfg.SearchTimeout}, nil
}

// Ranked is one search hit: the model name plus its rank, best (1) first.
type Ranked struct {
	ModelName string
	Rank      int
	Score     float64
}

// Search embeds query and returns the k nearest SKUs by cosine distance
// over sku_embeddings, best match first.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Ranked, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vec, err := s.embed.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT model_name, 1 - (embedding <=> $1) AS score
		FROM sku_embeddings
		ORDER BY embedding <=> $1, model_name ASC
		LIMIT $2
	`, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, core.Wrap(core.KindVectorUnavailable, "vector search query", err)
	}
	defer rows.Close()

	var out []Ranked
	rank := 1
	for rows.Next() {
		var r Ranked
		if err := rows.Scan(&r.ModelName, &r.Score); err != nil {
			return nil, core.Wrap(core.KindVectorUnavailable, "scan vector search row", err)
		}
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Wrap(core.KindVectorUnavailable, "iterate vector search rows", err)
	}

	return out, nil
}
