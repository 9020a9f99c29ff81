package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const SourceArxiv = "arxiv"

type Paper struct {
	ID               uuid.UUID       `json:"id"`
	ArxivID          string          `json:"arxiv_id"`
	Source           string          `json:"source"`
	Title            string          `json:"title"`
	Summary          string          `json:"summary"`
	Authors          json.RawMessage `json:"authors,omitempty"`
	Categories       []string        `json:"categories"`
	PrimaryCategory  string          `json:"primary_category,omitempty"`
	SubmittedAt      time.Time       `json:"submitted_at"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
	PDFURL           string          `json:"pdf_url,omitempty"`
	AbsURL           string          `json:"abs_url,omitempty"`
	IngestionBatchID *uuid.UUID      `json:"ingestion_batch_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type Author struct {
	Name string `json:"name"`
}

// AuthorNames decodes the stored JSON author list; malformed payloads
// yield an empty slice rather than an error.
func (p *Paper) AuthorNames() []string {
	var authors []Author
	if err := json.Unmarshal(p.Authors, &authors); err != nil {
		return nil
	}
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		names = append(names, a.Name)
	}
	return names
}

type PaperEmbedding struct {
	PaperID   uuid.UUID `json:"paper_id"`
	ModelName string    `json:"model_name"`
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

type IngestionBatch struct {
	ID         uuid.UUID `json:"id"`
	SourceDate time.Time `json:"source_date"`
	FetchedAt  time.Time `json:"fetched_at"`
	Query      string    `json:"query"`
	ItemCount  int       `json:"item_count"`
}

type PaperRepository interface {
	Upsert(paper *Paper) error
	GetByID(id uuid.UUID) (*Paper, error)
	GetByArxivID(arxivID string) (*Paper, error)
	GetByIDs(ids []uuid.UUID) ([]*Paper, error)
	ListBySubmittedDate(date time.Time) ([]*Paper, error)
	ListBySource(source string) ([]*Paper, error)
	ListRecent(since time.Time, limit int) ([]*Paper, error)
	Delete(id uuid.UUID) error
}

type EmbeddingRepository interface {
	Upsert(emb *PaperEmbedding) error
	GetByPaperIDs(ids []uuid.UUID, modelName string) (map[uuid.UUID][]float32, error)
}

type IngestionBatchRepository interface {
	Create(batch *IngestionBatch) error
}
