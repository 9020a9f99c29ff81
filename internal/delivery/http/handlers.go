package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flopap/backend/internal/domain"
	"github.com/flopap/backend/internal/middleware"
	"github.com/flopap/backend/internal/usecase"
)

type Handler struct {
	feedUsecase     *usecase.FeedUsecase
	feedbackUsecase *usecase.FeedbackUsecase
	ttsUsecase      *usecase.TTSUsecase

	paperRepo          domain.PaperRepository
	translationRepo    domain.TranslationRepository
	interpretationRepo domain.InterpretationRepository
	infographicRepo    domain.InfographicRepository
	visualRepo         domain.VisualRepository
	ttsRepo            domain.TTSRepository
	settingsRepo       domain.PoolSettingsRepository

	conferences []string
}

func NewHandler(
	feed *usecase.FeedUsecase,
	feedback *usecase.FeedbackUsecase,
	tts *usecase.TTSUsecase,
	papers domain.PaperRepository,
	translations domain.TranslationRepository,
	interpretations domain.InterpretationRepository,
	infographics domain.InfographicRepository,
	visuals domain.VisualRepository,
	ttsRows domain.TTSRepository,
	settings domain.PoolSettingsRepository,
	conferences []string,
) *Handler {
	return &Handler{
		feedUsecase:        feed,
		feedbackUsecase:    feedback,
		ttsUsecase:         tts,
		paperRepo:          papers,
		translationRepo:    translations,
		interpretationRepo: interpretations,
		infographicRepo:    infographics,
		visualRepo:         visuals,
		ttsRepo:            ttsRows,
		settingsRepo:       settings,
		conferences:        conferences,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// Feed handlers

// resolveFeedSource maps the query parameter shapes onto a feed source.
// The arXiv feed is addressed as source=arxiv (or unset) with
// sub=today|week; a conference feed as source=conference&sub=<conf-id>.
// Bare source values pass through for clients that address a feed directly.
func resolveFeedSource(source, sub string) string {
	switch source {
	case "", "arxiv":
		if sub == "week" {
			return "week"
		}
		return "today"
	case "conference":
		return sub
	default:
		return source
	}
}

func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	source := resolveFeedSource(r.URL.Query().Get("source"), r.URL.Query().Get("sub"))
	cursor, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.feedUsecase.GetFeed(r.Context(), userID, source, cursor, limit)
	if err == usecase.ErrUnknownFeedSource {
		writeError(w, http.StatusBadRequest, "Unknown feed source")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build feed")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

type feedbackRequest struct {
	PaperID   string `json:"paper_id"`
	Action    string `json:"action"`
	Value     bool   `json:"value"`
	Confirmed bool   `json:"confirmed"`
}

func (h *Handler) PostFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	paperID, err := uuid.Parse(req.PaperID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paper_id")
		return
	}
	kind, err := domain.ParseFeedbackKind(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown feedback action")
		return
	}

	result, err := h.feedbackUsecase.Apply(r.Context(), userID, paperID, kind, req.Value, req.Confirmed)
	switch {
	case errors.Is(err, usecase.ErrPaperNotFound):
		writeError(w, http.StatusNotFound, "Paper not found")
	case errors.Is(err, usecase.ErrDislikeIrreversible):
		writeError(w, http.StatusConflict, "Dislike cannot be undone")
	case errors.Is(err, usecase.ErrPaperDisliked):
		writeError(w, http.StatusConflict, "Paper was disliked")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to record feedback")
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// Paper artifact handlers

func (h *Handler) paperIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paper id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) GetTranslation(w http.ResponseWriter, r *http.Request) {
	paperID, ok := h.paperIDParam(w, r)
	if !ok {
		return
	}
	translation, err := h.translationRepo.GetByPaperID(paperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get translation")
		return
	}
	if !translation.Complete() {
		writeError(w, http.StatusNotFound, "Translation not found")
		return
	}
	writeJSON(w, http.StatusOK, translation)
}

func (h *Handler) GetInterpretation(w http.ResponseWriter, r *http.Request) {
	paperID, ok := h.paperIDParam(w, r)
	if !ok {
		return
	}
	interpretation, err := h.interpretationRepo.GetByPaperID(paperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get interpretation")
		return
	}
	if interpretation == nil || interpretation.Content == "" {
		writeError(w, http.StatusNotFound, "Interpretation not found")
		return
	}
	writeJSON(w, http.StatusOK, interpretation)
}

func (h *Handler) GetInfographic(w http.ResponseWriter, r *http.Request) {
	paperID, ok := h.paperIDParam(w, r)
	if !ok {
		return
	}
	infographic, err := h.infographicRepo.GetByPaperID(paperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get infographic")
		return
	}
	if infographic == nil {
		writeError(w, http.StatusNotFound, "Infographic not found")
		return
	}
	writeJSON(w, http.StatusOK, infographic)
}

func (h *Handler) GetVisual(w http.ResponseWriter, r *http.Request) {
	paperID, ok := h.paperIDParam(w, r)
	if !ok {
		return
	}
	visual, err := h.visualRepo.GetByPaperID(paperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get visual")
		return
	}
	if visual == nil {
		writeError(w, http.StatusNotFound, "Visual not found")
		return
	}
	writeJSON(w, http.StatusOK, visual)
}

type saveInfographicRequest struct {
	HTMLContent string `json:"html_content"`
	Checksum    string `json:"checksum,omitempty"`
}

func (h *Handler) SaveInfographic(w http.ResponseWriter, r *http.Request) {
	paperID, ok := h.paperIDParam(w, r)
	if !ok {
		return
	}

	var req saveInfographicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.HTMLContent == "" {
		writeError(w, http.StatusBadRequest, "html_content is required")
		return
	}

	err := h.infographicRepo.Upsert(&domain.PaperInfographic{
		PaperID:     paperID,
		HTMLContent: req.HTMLContent,
		Checksum:    req.Checksum,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save infographic")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": paperID.String(), "message": "Infographic saved"})
}

type saveVisualRequest struct {
	ImageData string `json:"image_data"`
	Checksum  string `json:"checksum,omitempty"`
}

func (h *Handler) SaveVisual(w http.ResponseWriter, r *http.Request) {
	paperID, ok := h.paperIDParam(w, r)
	if !ok {
		return
	}

	var req saveVisualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ImageData == "" {
		writeError(w, http.StatusBadRequest, "image_data is required")
		return
	}

	err := h.visualRepo.Upsert(&domain.PaperVisual{
		PaperID:   paperID,
		ImageData: req.ImageData,
		Checksum:  req.Checksum,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save visual")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": paperID.String(), "message": "Visual saved"})
}

type contentStatusResponse struct {
	PaperID           string `json:"paper_id"`
	HasTranslation    bool   `json:"has_translation"`
	HasInterpretation bool   `json:"has_interpretation"`
	HasInfographic    bool   `json:"has_infographic"`
	HasVisual         bool   `json:"has_visual"`
	HasAudio          bool   `json:"has_audio"`
}

func (h *Handler) GetContentStatus(w http.ResponseWriter, r *http.Request) {
	paperID, ok := h.paperIDParam(w, r)
	if !ok {
		return
	}
	paper, err := h.paperRepo.GetByID(paperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get paper")
		return
	}
	if paper == nil {
		writeError(w, http.StatusNotFound, "Paper not found")
		return
	}

	status := contentStatusResponse{PaperID: paperID.String()}
	if translation, err := h.translationRepo.GetByPaperID(paperID); err == nil {
		status.HasTranslation = translation.Complete()
	}
	if interpretation, err := h.interpretationRepo.GetByPaperID(paperID); err == nil {
		status.HasInterpretation = interpretation != nil && interpretation.Content != ""
	}
	ids := []uuid.UUID{paperID}
	if present, err := h.infographicRepo.ExistsByPaperIDs(ids); err == nil {
		status.HasInfographic = present[paperID]
	}
	if present, err := h.visualRepo.ExistsByPaperIDs(ids); err == nil {
		status.HasVisual = present[paperID]
	}
	if present, err := h.ttsRepo.ListPaperIDsWithAudio(ids); err == nil {
		status.HasAudio = present[paperID]
	}

	writeJSON(w, http.StatusOK, status)
}

// Pool settings handlers

func (h *Handler) GetPoolSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sourceKey := chi.URLParam(r, "sourceKey")
	settings, err := h.settingsRepo.Get(userID, sourceKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get pool settings")
		return
	}
	if settings == nil {
		settings = domain.DefaultPoolSettings(userID, sourceKey)
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) ListPoolSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	settings, err := h.settingsRepo.ListByUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pool settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"settings": settings})
}

type poolSettingsRequest struct {
	PoolRatio       float64 `json:"pool_ratio"`
	MaxPoolSize     int     `json:"max_pool_size"`
	ShowMode        string  `json:"show_mode"`
	FilterNoContent bool    `json:"filter_no_content"`
}

func (h *Handler) PutPoolSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req poolSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings := &domain.PoolSettings{
		UserID:          userID,
		SourceKey:       chi.URLParam(r, "sourceKey"),
		PoolRatio:       req.PoolRatio,
		MaxPoolSize:     req.MaxPoolSize,
		ShowMode:        req.ShowMode,
		FilterNoContent: req.FilterNoContent,
	}
	if err := settings.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.settingsRepo.Upsert(settings); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save pool settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Source enumeration handlers

type dataSource struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

func (h *Handler) GetDataSources(w http.ResponseWriter, r *http.Request) {
	sources := []dataSource{
		{Key: "today", Label: "Today", Kind: "dynamic"},
		{Key: "week", Label: "This Week", Kind: "dynamic"},
	}
	for _, conf := range h.conferences {
		sources = append(sources, dataSource{
			Key:   domain.NormalizeConferenceKey(conf),
			Label: conf,
			Kind:  "static",
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}
