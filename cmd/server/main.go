package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/laptop-mgfd/dialogue-core/internal/catalog"
	"github.com/laptop-mgfd/dialogue-core/internal/catalogconfig"
	"github.com/laptop-mgfd/dialogue-core/internal/config"
	"github.com/laptop-mgfd/dialogue-core/internal/db"
	"github.com/laptop-mgfd/dialogue-core/internal/dialogue"
	"github.com/laptop-mgfd/dialogue-core/internal/entity"
	"github.com/laptop-mgfd/dialogue-core/internal/funnel"
	"github.com/laptop-mgfd/dialogue-core/internal/handler"
	"github.com/laptop-mgfd/dialogue-core/internal/llmclient"
	"github.com/laptop-mgfd/dialogue-core/internal/prompt"
	"github.com/laptop-mgfd/dialogue-core/internal/retrieval"
	"github.com/laptop-mgfd/dialogue-core/internal/vectorstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	catConfig, err := catalogconfig.Load(cfg.CatalogConfigDir)
	if err != nil {
		slog.Error("failed to load catalog config artifacts", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.StartupChecks(ctx, pool); err != nil {
		slog.Error("startup checks failed", "error", err)
		os.Exit(1)
	}

	cat, err := catalog.Load(ctx, pool)
	if err != nil {
		slog.Error("failed to load SKU catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "skus", len(cat.All()), "series", len(cat.Series()))

	vectors, err := vectorstore.New(vectorstore.Config{
		Pool:           pool,
		EmbedEndpoint:  cfg.EmbedEndpoint,
		EmbedCacheSize: cfg.EmbedCacheSize,
		EmbedTimeout:   cfg.VectorSearchTimeout(),
		SearchTimeout:  cfg.VectorSearchTimeout(),
	})
	if err != nil {
		slog.Error("failed to initialize vector store", "error", err)
		os.Exit(1)
	}

	llm := llmclient.New(llmclient.Config{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		APIKey:    cfg.LLMAPIKey,
		APIURL:    cfg.LLMAPIURL,
		MaxTokens: cfg.LLMMaxTokens,
		Timeout:   cfg.LLMTimeout(),
	})

	extractor := entity.New(catConfig, cat)
	funnelCtl := funnel.New(catConfig.Funnel, cfg.SessionTTL, cfg.SessionCleanupInterval)
	planner := retrieval.New(retrieval.Config{
		Catalog:       cat,
		Vectors:       vectorSearchAdapter{vectors},
		DefaultSeries: defaultSeriesFrom(cat),
		VectorK:       cfg.KVec,
		Timeout:       cfg.RetrievalTimeout(),
	})
	builder := prompt.New(catConfig.Template)

	engine := dialogue.New(dialogue.Config{
		Catalog:      cat,
		Extractor:    extractor,
		Funnel:       funnelCtl,
		Planner:      planner,
		LLM:          llm,
		Builder:      builder,
		MaxCellWidth: cfg.MaxCellWidth,
		LLMTimeout:   cfg.LLMTimeout(),
	})

	turnHandler := handler.NewTurnHandler(engine)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			handler.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/turn", turnHandler.Query)
	r.Post("/v1/funnel/answer", turnHandler.FunnelAnswer)
	r.Post("/v1/funnel/batch-answer", turnHandler.FunnelBatchAnswer)
	r.Post("/v1/funnel/start-batch", turnHandler.StartFunnelBatch)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownCtx.Done()
	slog.Info("shutting down server...")

	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(cancelCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// vectorSearchAdapter adapts vectorstore.Store's concrete Ranked type to
// the retrieval package's own narrow VectorSearcher interface.
type vectorSearchAdapter struct {
	store *vectorstore.Store
}

func (a vectorSearchAdapter) Search(ctx context.Context, query string, k int) ([]retrieval.Ranked, error) {
	hits, err := a.store.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]retrieval.Ranked, len(hits))
	for i, h := range hits {
		out[i] = retrieval.Ranked{ModelName: h.ModelName, Rank: h.Rank}
	}
	return out, nil
}

// defaultSeriesFrom picks the fallback series set used when a funnel
// completion's filters yield nothing: every known series, so the planner
// always has rows to fall back to.
func defaultSeriesFrom(cat *catalog.Catalog) []string {
	return cat.Series()
}
