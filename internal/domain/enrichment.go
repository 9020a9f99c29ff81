package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaperTranslation struct {
	PaperID   uuid.UUID `json:"paper_id"`
	TitleZH   string    `json:"title_zh"`
	SummaryZH string    `json:"summary_zh"`
	ModelName string    `json:"model_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Complete reports whether both translated fields are present; partial
// rows are re-generated by the translation pipeline.
func (t *PaperTranslation) Complete() bool {
	return t != nil && t.TitleZH != "" && t.SummaryZH != ""
}

type PaperInterpretation struct {
	PaperID   uuid.UUID `json:"paper_id"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	ModelName string    `json:"model_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PaperTTS struct {
	ID          uuid.UUID `json:"id"`
	PaperID     uuid.UUID `json:"paper_id"`
	VoiceModel  string    `json:"voice_model"`
	ContentHash string    `json:"content_hash"`
	// FilePath is the basename only, relative to the configured audio dir.
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	GeneratedAt time.Time `json:"generated_at"`
}

type PaperInfographic struct {
	PaperID     uuid.UUID `json:"paper_id"`
	HTMLContent string    `json:"html_content"`
	Checksum    string    `json:"checksum,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PaperVisual struct {
	PaperID   uuid.UUID `json:"paper_id"`
	ImageData string    `json:"image_data"`
	Checksum  string    `json:"checksum,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TranslationRepository interface {
	Upsert(t *PaperTranslation) error
	GetByPaperID(paperID uuid.UUID) (*PaperTranslation, error)
	GetByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]*PaperTranslation, error)
	ListPapersMissing(source string, limit int) ([]*Paper, error)
}

type InterpretationRepository interface {
	Upsert(i *PaperInterpretation) error
	GetByPaperID(paperID uuid.UUID) (*PaperInterpretation, error)
	GetByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]*PaperInterpretation, error)
	ListPapersMissing(source string, limit int) ([]*Paper, error)
}

type TTSRepository interface {
	Create(t *PaperTTS) error
	GetByHash(paperID uuid.UUID, voiceModel, contentHash string) (*PaperTTS, error)
	GetLatestByPaper(paperID uuid.UUID, voiceModel string) (*PaperTTS, error)
	Delete(id uuid.UUID) error
	ListPaperIDsWithAudio(paperIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type InfographicRepository interface {
	Upsert(g *PaperInfographic) error
	GetByPaperID(paperID uuid.UUID) (*PaperInfographic, error)
	ExistsByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type VisualRepository interface {
	Upsert(v *PaperVisual) error
	GetByPaperID(paperID uuid.UUID) (*PaperVisual, error)
	ExistsByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}
