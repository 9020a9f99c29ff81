// Command enrich runs the content pipelines over papers that are missing
// artifacts: Chinese translations, interpretations, and audio narrations.
//
// Usage:
//
//	enrich [-stage all|translate|interpret|tts] [-limit 500]
//
// Exit codes: 0 success, 1 failure, 2 bad arguments.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flopap/backend/internal/config"
	"github.com/flopap/backend/internal/logger"
	"github.com/flopap/backend/internal/provider"
	"github.com/flopap/backend/internal/repository/postgres"
	"github.com/flopap/backend/internal/usecase"
	"github.com/flopap/backend/pkg/edgetts"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("enrich", flag.ContinueOnError)
	stage := fs.String("stage", "all", "pipeline stage: all|translate|interpret|tts")
	limit := fs.Int("limit", 500, "max papers per stage")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}
	switch *stage {
	case "all", "translate", "interpret", "tts":
	default:
		fmt.Fprintf(os.Stderr, "invalid -stage %q\n", *stage)
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "-limit must be positive")
		return 2
	}

	cfg := config.Load()
	log := logger.Get()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		return 1
	}
	defer pool.Close()

	paperRepo := postgres.NewPaperRepository(pool)
	translationRepo := postgres.NewTranslationRepository(pool)
	interpretationRepo := postgres.NewInterpretationRepository(pool)
	ttsRepo := postgres.NewTTSRepository(pool)

	providerPool, err := provider.NewPool(cfg)
	if err != nil {
		log.Error().Err(err).Msg("LLM credentials required for enrichment")
		return 1
	}

	enrich := usecase.NewEnrichUsecase(translationRepo, interpretationRepo, providerPool, log)
	tts := usecase.NewTTSUsecase(
		paperRepo, translationRepo, interpretationRepo, ttsRepo,
		edgetts.NewEngine(cfg.TTS.Voice), cfg.TTS.Voice, cfg.TTS.Dir, cfg.TTS.Concurrency, log,
	)

	failed := 0

	if *stage == "all" || *stage == "translate" {
		report, err := enrich.TranslateMissing(ctx, *limit)
		if err != nil {
			log.Error().Err(err).Msg("translation stage failed")
			return 1
		}
		log.Info().Int("processed", report.Processed).Int("succeeded", report.Succeeded).Int("failed", report.Failed).Msg("translation stage finished")
		failed += report.Failed
	}

	if *stage == "all" || *stage == "interpret" {
		report, err := enrich.InterpretMissing(ctx, *limit)
		if err != nil {
			log.Error().Err(err).Msg("interpretation stage failed")
			return 1
		}
		log.Info().Int("processed", report.Processed).Int("succeeded", report.Succeeded).Int("failed", report.Failed).Msg("interpretation stage finished")
		failed += report.Failed
	}

	if *stage == "all" || *stage == "tts" {
		recent, err := paperRepo.ListRecent(time.Now().AddDate(0, 0, -7), *limit)
		if err != nil {
			log.Error().Err(err).Msg("recent paper query failed")
			return 1
		}
		ids := make([]uuid.UUID, len(recent))
		for i, paper := range recent {
			ids[i] = paper.ID
		}
		report, err := tts.GenerateForPapers(ctx, ids)
		if err != nil {
			log.Error().Err(err).Msg("tts stage failed")
			return 1
		}
		log.Info().
			Int("processed", report.Processed).
			Int("generated", report.Generated).
			Int("reused", report.Reused).
			Int("skipped", report.Skipped).
			Int("failed", report.Failed).
			Msg("tts stage finished")
		failed += report.Failed
	}

	if failed > 0 {
		return 1
	}
	return 0
}
