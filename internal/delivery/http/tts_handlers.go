package http

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var audioMIMETypes = map[string]string{
	".opus": "audio/ogg",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
}

type ttsAudioResponse struct {
	AudioURL string `json:"audio_url"`
	Filename string `json:"filename"`
	FileSize int64  `json:"file_size"`
}

// GetTTSAudio returns the audio metadata for a paper, cleaning up rows
// whose file has disappeared.
func (h *Handler) GetTTSAudio(w http.ResponseWriter, r *http.Request) {
	paperID, err := uuid.Parse(chi.URLParam(r, "paperId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paper id")
		return
	}

	row, err := h.ttsUsecase.Resolve(paperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve audio")
		return
	}
	if row == nil {
		writeError(w, http.StatusNotFound, "No audio for this paper")
		return
	}

	writeJSON(w, http.StatusOK, ttsAudioResponse{
		AudioURL: "/api/v1/tts/file/" + row.FilePath,
		Filename: row.FilePath,
		FileSize: row.FileSize,
	})
}

// GetTTSAudioByPath is the paper-scoped alias of GetTTSAudio.
func (h *Handler) GetTTSAudioByPath(w http.ResponseWriter, r *http.Request) {
	paperID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paper id")
		return
	}

	row, err := h.ttsUsecase.Resolve(paperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve audio")
		return
	}
	if row == nil {
		writeError(w, http.StatusNotFound, "No audio for this paper")
		return
	}

	writeJSON(w, http.StatusOK, ttsAudioResponse{
		AudioURL: "/api/v1/tts/file/" + row.FilePath,
		Filename: row.FilePath,
		FileSize: row.FileSize,
	})
}

// StreamTTSFile serves a stored audio file by basename.
func (h *Handler) StreamTTSFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	path, err := h.ttsUsecase.AudioPath(filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid audio filename")
		return
	}

	mime := audioMIMETypes[strings.ToLower(filepath.Ext(filename))]
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}
