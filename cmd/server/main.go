package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flopap/backend/internal/cache"
	"github.com/flopap/backend/internal/config"
	delivery "github.com/flopap/backend/internal/delivery/http"
	"github.com/flopap/backend/internal/logger"
	"github.com/flopap/backend/internal/middleware"
	"github.com/flopap/backend/internal/provider"
	"github.com/flopap/backend/internal/repository/postgres"
	"github.com/flopap/backend/internal/usecase"
	"github.com/flopap/backend/pkg/arxiv"
	"github.com/flopap/backend/pkg/edgetts"
)

func main() {
	cfg := config.Load()
	log := logger.Get()
	log.Info().Str("port", cfg.Server.Port).Msg("starting backend")

	if cfg.Database.URL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	// Connect to PostgreSQL with retry
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		var err error
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				cancel()
				log.Info().Msg("connected to postgres")
				break
			} else {
				pool.Close()
				err = pingErr
			}
		}
		cancel()
		log.Warn().Err(err).Int("attempt", attempt).Msg("database connection failed")
		if attempt == 5 {
			log.Fatal().Msg("could not connect to database after 5 attempts")
		}
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	defer pool.Close()

	// Repositories
	paperRepo := postgres.NewPaperRepository(pool)
	embeddingRepo := postgres.NewEmbeddingRepository(pool)
	batchRepo := postgres.NewIngestionBatchRepository(pool)
	candidatePoolRepo := postgres.NewCandidatePoolRepository(pool)
	rankingRepo := postgres.NewRankingRepository(pool)
	feedbackRepo := postgres.NewFeedbackRepository(pool)
	profileRepo := postgres.NewUserProfileRepository(pool)
	translationRepo := postgres.NewTranslationRepository(pool)
	interpretationRepo := postgres.NewInterpretationRepository(pool)
	ttsRepo := postgres.NewTTSRepository(pool)
	infographicRepo := postgres.NewInfographicRepository(pool)
	visualRepo := postgres.NewVisualRepository(pool)
	settingsRepo := postgres.NewPoolSettingsRepository(pool)

	// External clients
	arxivClient := arxiv.NewClient(
		arxiv.WithBaseURL(cfg.Arxiv.BaseURL),
		arxiv.WithProxy(cfg.Arxiv.Proxy),
		arxiv.WithRetry(cfg.Arxiv.Retries, cfg.Arxiv.RetryDelay),
	)
	providerPool, err := provider.NewPool(cfg)
	if err != nil {
		if errors.Is(err, provider.ErrNoCredentials) {
			log.Warn().Msg("no LLM credentials configured, enrichment disabled")
		} else {
			log.Fatal().Err(err).Msg("provider pool init failed")
		}
	}
	feedCache := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, log)
	if feedCache == nil {
		log.Info().Msg("redis not configured, feed cache disabled")
	}

	// Usecases
	scorer := usecase.NewScorer(paperRepo, embeddingRepo, feedbackRepo, profileRepo, cfg.Embedding.Model)
	candidateUsecase := usecase.NewCandidateUsecase(paperRepo, candidatePoolRepo)
	rankingUsecase := usecase.NewRankingUsecase(rankingRepo, feedbackRepo, scorer, cfg.Recommend.Conferences)
	ingestUsecase := usecase.NewIngestUsecase(paperRepo, batchRepo, embeddingRepo, arxivClient, providerPool, cfg.Arxiv, cfg.Embedding, log)
	recommendUsecase := usecase.NewRecommendUsecase(profileRepo, candidateUsecase, rankingUsecase, cfg.Recommend.MaxWorkers, log)
	enrichUsecase := usecase.NewEnrichUsecase(translationRepo, interpretationRepo, providerPool, log)
	ttsUsecase := usecase.NewTTSUsecase(
		paperRepo, translationRepo, interpretationRepo, ttsRepo,
		edgetts.NewEngine(cfg.TTS.Voice), cfg.TTS.Voice, cfg.TTS.Dir, cfg.TTS.Concurrency, log,
	)
	feedUsecase := usecase.NewFeedUsecase(
		paperRepo, translationRepo, interpretationRepo, infographicRepo, visualRepo, ttsRepo, feedbackRepo,
		settingsRepo, candidateUsecase, rankingUsecase, feedCache, cfg.Recommend.CloudMode, log,
	)
	feedbackUsecase := usecase.NewFeedbackUsecase(paperRepo, feedbackRepo, feedCache)
	conferenceUsecase := usecase.NewConferenceUsecase(paperRepo, profileRepo, rankingUsecase, ingestUsecase, cfg.Recommend.ConfDataDir, log)
	jobs := usecase.NewJobRegistry(log)

	// HTTP layer
	handler := delivery.NewHandler(
		feedUsecase, feedbackUsecase, ttsUsecase,
		paperRepo, translationRepo, interpretationRepo, infographicRepo, visualRepo, ttsRepo, settingsRepo,
		cfg.Recommend.Conferences,
	)
	factoryHandler := delivery.NewFactoryHandler(
		jobs, ingestUsecase, candidateUsecase, recommendUsecase,
		enrichUsecase, ttsUsecase, conferenceUsecase, feedUsecase, paperRepo,
	)
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	router := delivery.NewRouter(handler, factoryHandler, authMiddleware, cfg.CORS.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
