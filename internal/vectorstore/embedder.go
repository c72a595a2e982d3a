package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/laptop-mgfd/dialogue-core/internal/core"
)

// embedder calls an embedding sidecar over HTTP and caches query-text to
// vector lookups so repeated queries within a process lifetime skip the
// round trip.
type embedder struct {
	endpoint string
	client   *http.Client
	cache    *lru.Cache[string, []float32]
}

func newEmbedder(endpoint string, cacheSize int, timeout time.Duration) (*embedder, error) {
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &embedder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		cache:    cache,
	}, nil
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// embed returns the embedding vector for text, consulting the cache first.
func (e *embedder) embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v, nil
	}

	reqBody, err := json.Marshal(embedRequest{Texts: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, core.Wrap(core.KindVectorUnavailable, "embed HTTP request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Wrap(core.KindVectorUnavailable, "read embed response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.New(core.KindVectorUnavailable, fmt.Sprintf("embed service returned %d: %s", resp.StatusCode, string(body)))
	}

	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, core.Wrap(core.KindVectorUnavailable, "unmarshal embed response", err)
	}
	if len(out.Embeddings) == 0 {
		return nil, core.New(core.KindVectorUnavailable, "embed service returned no embeddings")
	}

	e.cache.Add(text, out.Embeddings[0])
	return out.Embeddings[0], nil
}
