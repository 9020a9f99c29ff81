// Command recommend runs the daily ranking batch: every active user gets a
// stored ranking over the target day's candidate pool, then expired dynamic
// rankings are purged.
//
// Usage:
//
//	recommend [-date 2026-08-21] [-force]
//
// Exit codes: 0 success, 1 failure, 2 bad arguments.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flopap/backend/internal/config"
	"github.com/flopap/backend/internal/logger"
	"github.com/flopap/backend/internal/repository/postgres"
	"github.com/flopap/backend/internal/usecase"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	dateFlag := fs.String("date", "", "announcement date YYYY-MM-DD (default: today minus 3, New York time)")
	force := fs.Bool("force", false, "recompute rankings that already exist")
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

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		return 1
	}
	defer pool.Close()

	paperRepo := postgres.NewPaperRepository(pool)
	embeddingRepo := postgres.NewEmbeddingRepository(pool)
	candidatePoolRepo := postgres.NewCandidatePoolRepository(pool)
	rankingRepo := postgres.NewRankingRepository(pool)
	feedbackRepo := postgres.NewFeedbackRepository(pool)
	profileRepo := postgres.NewUserProfileRepository(pool)

	scorer := usecase.NewScorer(paperRepo, embeddingRepo, feedbackRepo, profileRepo, cfg.Embedding.Model)
	candidates := usecase.NewCandidateUsecase(paperRepo, candidatePoolRepo)
	rankings := usecase.NewRankingUsecase(rankingRepo, feedbackRepo, scorer, cfg.Recommend.Conferences)
	recommend := usecase.NewRecommendUsecase(profileRepo, candidates, rankings, cfg.Recommend.MaxWorkers, log)

	report, err := recommend.RunForDate(ctx, targetDate, *force)
	if err != nil {
		log.Error().Err(err).Msg("recommendation batch failed")
		return 1
	}
	log.Info().
		Str("source_key", report.SourceKey).
		Int("pool_size", report.PoolSize).
		Int("users", report.Users).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int64("dynamic_gc", report.DynamicGC).
		Msg("recommendation batch finished")

	if report.Failed > 0 {
		return 1
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
