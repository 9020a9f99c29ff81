package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flopap/backend/internal/domain"
	"github.com/flopap/backend/internal/usecase"
)

const contentGenBatchLimit = 500

// FactoryHandler triggers and reports on background content jobs.
type FactoryHandler struct {
	jobs        *usecase.JobRegistry
	ingest      *usecase.IngestUsecase
	candidates  *usecase.CandidateUsecase
	recommend   *usecase.RecommendUsecase
	enrich      *usecase.EnrichUsecase
	tts         *usecase.TTSUsecase
	conferences *usecase.ConferenceUsecase
	feed        *usecase.FeedUsecase
	papers      domain.PaperRepository
}

func NewFactoryHandler(
	jobs *usecase.JobRegistry,
	ingest *usecase.IngestUsecase,
	candidates *usecase.CandidateUsecase,
	recommend *usecase.RecommendUsecase,
	enrich *usecase.EnrichUsecase,
	tts *usecase.TTSUsecase,
	conferences *usecase.ConferenceUsecase,
	feed *usecase.FeedUsecase,
	papers domain.PaperRepository,
) *FactoryHandler {
	return &FactoryHandler{
		jobs:        jobs,
		ingest:      ingest,
		candidates:  candidates,
		recommend:   recommend,
		enrich:      enrich,
		tts:         tts,
		conferences: conferences,
		feed:        feed,
		papers:      papers,
	}
}

// targetDate picks the run date: an explicit ?date=YYYY-MM-DD or the
// current announcement day.
func (h *FactoryHandler) targetDate(r *http.Request) (time.Time, error) {
	if raw := r.URL.Query().Get("date"); raw != "" {
		return time.Parse("2006-01-02", raw)
	}
	return h.feed.AnnouncementDate(), nil
}

func (h *FactoryHandler) startJob(w http.ResponseWriter, name string, fn usecase.JobFunc) {
	err := h.jobs.Start(name, fn)
	var running usecase.ErrJobRunning
	if errors.As(err, &running) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start job")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": usecase.JobStatusRunning})
}

func (h *FactoryHandler) FetchArxiv(w http.ResponseWriter, r *http.Request) {
	date, err := h.targetDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date")
		return
	}
	h.startJob(w, usecase.JobFetchArxiv, func(ctx context.Context) (int, error) {
		report, err := h.ingest.IngestForDate(ctx, date)
		if err != nil {
			return 0, err
		}
		return report.Valid, nil
	})
}

func (h *FactoryHandler) BuildCandidatePool(w http.ResponseWriter, r *http.Request) {
	date, err := h.targetDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date")
		return
	}
	h.startJob(w, usecase.JobGenCandidatePool, func(ctx context.Context) (int, error) {
		total := 0
		for _, filter := range []string{domain.FilterCS, domain.FilterAIMLCV, domain.FilterMath, domain.FilterPhysics} {
			n, err := h.candidates.BuildPool(date, filter)
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil
	})
}

func (h *FactoryHandler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	date, err := h.targetDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date")
		return
	}
	force := r.URL.Query().Get("force") == "true"
	h.startJob(w, usecase.JobGenRecommend, func(ctx context.Context) (int, error) {
		report, err := h.recommend.RunForDate(ctx, date, force)
		if err != nil {
			return 0, err
		}
		return report.Succeeded, nil
	})
}

// GenerateContent runs the full enrichment chain for recently ingested
// papers: translations, interpretations, then narrations.
func (h *FactoryHandler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	h.startJob(w, usecase.JobGenContent, func(ctx context.Context) (int, error) {
		translated, err := h.enrich.TranslateMissing(ctx, contentGenBatchLimit)
		if err != nil {
			return 0, err
		}
		interpreted, err := h.enrich.InterpretMissing(ctx, contentGenBatchLimit)
		if err != nil {
			return translated.Succeeded, err
		}

		recent, err := h.papers.ListRecent(time.Now().AddDate(0, 0, -7), contentGenBatchLimit)
		if err != nil {
			return translated.Succeeded + interpreted.Succeeded, err
		}
		ids := make([]uuid.UUID, len(recent))
		for i, paper := range recent {
			ids[i] = paper.ID
		}
		narrated, err := h.tts.GenerateForPapers(ctx, ids)
		if err != nil {
			return translated.Succeeded + interpreted.Succeeded, err
		}
		return translated.Succeeded + interpreted.Succeeded + narrated.Generated, nil
	})
}

func (h *FactoryHandler) ImportConference(w http.ResponseWriter, r *http.Request) {
	confID := chi.URLParam(r, "confId")
	h.startJob(w, usecase.ConferenceJobName(usecase.JobImportConference, confID), func(ctx context.Context) (int, error) {
		report, err := h.conferences.ImportFromFile(ctx, confID)
		if err != nil {
			return 0, err
		}
		return report.Imported, nil
	})
}

func (h *FactoryHandler) BuildConferencePool(w http.ResponseWriter, r *http.Request) {
	confID := chi.URLParam(r, "confId")
	force := r.URL.Query().Get("force") == "true"
	h.startJob(w, usecase.ConferenceJobName("conference_pool", confID), func(ctx context.Context) (int, error) {
		return h.conferences.GenerateRankings(confID, force)
	})
}

func (h *FactoryHandler) GenerateConferenceContent(w http.ResponseWriter, r *http.Request) {
	confID := chi.URLParam(r, "confId")
	h.startJob(w, usecase.ConferenceJobName("conference_content", confID), func(ctx context.Context) (int, error) {
		ids, err := h.conferences.PaperIDs(confID)
		if err != nil {
			return 0, err
		}
		papers, err := h.papers.GetByIDs(ids)
		if err != nil {
			return 0, err
		}

		translated, err := h.enrich.TranslatePapers(ctx, papers)
		if err != nil {
			return 0, err
		}
		interpreted, err := h.enrich.InterpretPapers(ctx, papers)
		if err != nil {
			return translated.Succeeded, err
		}
		narrated, err := h.tts.GenerateForPapers(ctx, ids)
		if err != nil {
			return translated.Succeeded + interpreted.Succeeded, err
		}
		return translated.Succeeded + interpreted.Succeeded + narrated.Generated, nil
	})
}

func (h *FactoryHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": h.jobs.List()})
}

// AvailableConferences lists conference files ready for import.
func (h *FactoryHandler) AvailableConferences(w http.ResponseWriter, r *http.Request) {
	ids, err := h.conferences.ListAvailable()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list conferences")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conferences": ids})
}
