// Command ingest pulls one announcement day of arXiv submissions into
// PostgreSQL, computes embeddings, and rebuilds the day's candidate pools.
//
// Usage:
//
//	ingest -date 2026-08-21 [-filter cs] [-skip-pool]
//
// Without -date the current announcement day (three days back, New York
// time) is used. Exit codes: 0 success, 1 failure, 2 bad arguments.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flopap/backend/internal/config"
	"github.com/flopap/backend/internal/domain"
	"github.com/flopap/backend/internal/logger"
	"github.com/flopap/backend/internal/provider"
	"github.com/flopap/backend/internal/repository/postgres"
	"github.com/flopap/backend/internal/usecase"
	"github.com/flopap/backend/pkg/arxiv"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	dateFlag := fs.String("date", "", "announcement date YYYY-MM-DD (default: today minus 3, New York time)")
	filterFlag := fs.String("filter", domain.FilterCS, "candidate pool filter: cs|ai-ml-cv|math|physics|all")
	skipPool := fs.Bool("skip-pool", false, "skip candidate pool rebuild")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}

	cfg := config.Load()
	log := logger.Get()

	targetDate, err := resolveDate(*dateFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -date: %v\n", err)
		return 2
	}
	if _, err := usecase.PredicateFor(*filterFlag); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -filter: %v\n", err)
		return 2
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		return 1
	}
	defer pool.Close()

	paperRepo := postgres.NewPaperRepository(pool)
	batchRepo := postgres.NewIngestionBatchRepository(pool)
	embeddingRepo := postgres.NewEmbeddingRepository(pool)
	candidatePoolRepo := postgres.NewCandidatePoolRepository(pool)

	arxivClient := arxiv.NewClient(
		arxiv.WithBaseURL(cfg.Arxiv.BaseURL),
		arxiv.WithProxy(cfg.Arxiv.Proxy),
		arxiv.WithRetry(cfg.Arxiv.Retries, cfg.Arxiv.RetryDelay),
	)
	providerPool, err := provider.NewPool(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("embeddings disabled")
		providerPool = nil
	}

	ingest := usecase.NewIngestUsecase(paperRepo, batchRepo, embeddingRepo, arxivClient, providerPool, cfg.Arxiv, cfg.Embedding, log)

	report, err := ingest.IngestForDate(ctx, targetDate)
	if err != nil {
		log.Error().Err(err).Msg("ingestion failed")
		return 1
	}
	log.Info().
		Str("batch_id", report.BatchID).
		Int("fetched", report.Fetched).
		Int("valid", report.Valid).
		Int("dropped", len(report.Dropped)).
		Int("embedded", report.Embedded).
		Bool("used_fallback", report.UsedFallback).
		Msg("ingestion finished")

	if !*skipPool {
		candidates := usecase.NewCandidateUsecase(paperRepo, candidatePoolRepo)
		size, err := candidates.BuildPool(targetDate, *filterFlag)
		if err != nil {
			log.Error().Err(err).Msg("candidate pool rebuild failed")
			return 1
		}
		log.Info().Str("filter", *filterFlag).Int("pool_size", size).Msg("candidate pool rebuilt")
	}
	return 0
}

func resolveDate(raw string) (time.Time, error) {
	if raw == "" {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			return time.Time{}, err
		}
		now := time.Now().In(loc)
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		return day.AddDate(0, 0, -3), nil
	}
	return time.Parse("2006-01-02", raw)
}
