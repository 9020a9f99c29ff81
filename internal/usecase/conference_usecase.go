package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flopap/backend/internal/domain"
)

var confIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// confPaperRecord is one entry of a conference accepted-papers file.
type confPaperRecord struct {
	ArxivID  string   `json:"arxiv_id"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Authors  []string `json:"authors"`
	Track    string   `json:"track,omitempty"`
	URL      string   `json:"url,omitempty"`
}

type ConferenceImportReport struct {
	ConfID   string `json:"conf_id"`
	Total    int    `json:"total"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Embedded int    `json:"embedded"`
}

// ConferenceUsecase imports accepted-paper lists from local JSON files and
// builds the static per-user rankings for them.
type ConferenceUsecase struct {
	papers   domain.PaperRepository
	profiles domain.UserProfileRepository
	rankings *RankingUsecase
	ingest   *IngestUsecase
	dataDir  string
	log      zerolog.Logger
}

func NewConferenceUsecase(
	papers domain.PaperRepository,
	profiles domain.UserProfileRepository,
	rankings *RankingUsecase,
	ingest *IngestUsecase,
	dataDir string,
	log zerolog.Logger,
) *ConferenceUsecase {
	return &ConferenceUsecase{
		papers:   papers,
		profiles: profiles,
		rankings: rankings,
		ingest:   ingest,
		dataDir:  dataDir,
		log:      log,
	}
}

// ImportFromFile loads <dataDir>/<confID>.json and upserts its papers under
// the conference source key. Records without a valid arXiv id are skipped.
func (u *ConferenceUsecase) ImportFromFile(ctx context.Context, confID string) (*ConferenceImportReport, error) {
	if !confIDPattern.MatchString(confID) {
		return nil, fmt.Errorf("invalid conference id %q", confID)
	}

	path := filepath.Join(u.dataDir, confID+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conference file: %w", err)
	}
	var records []confPaperRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse conference file %s: %w", path, err)
	}

	report := &ConferenceImportReport{ConfID: confID, Total: len(records)}
	source := domain.NormalizeConferenceKey(confID)

	var imported []*domain.Paper
	for _, record := range records {
		if !arxivIDPattern.MatchString(record.ArxivID) {
			report.Skipped++
			u.log.Warn().Str("conf_id", confID).Str("title", record.Title).Msg("skipping record without arxiv id")
			continue
		}

		authors := make([]domain.Author, len(record.Authors))
		for i, name := range record.Authors {
			authors[i] = domain.Author{Name: name}
		}
		authorJSON, err := json.Marshal(authors)
		if err != nil {
			report.Skipped++
			continue
		}

		paper := &domain.Paper{
			ArxivID:     record.ArxivID,
			Source:      source,
			Title:       record.Title,
			Summary:     record.Abstract,
			Authors:     authorJSON,
			Categories:  []string{"cs"},
			SubmittedAt: time.Now(),
			AbsURL:      record.URL,
		}
		if err := u.papers.Upsert(paper); err != nil {
			report.Skipped++
			u.log.Warn().Err(err).Str("arxiv_id", record.ArxivID).Msg("conference paper upsert failed")
			continue
		}
		imported = append(imported, paper)
		report.Imported++
	}

	if u.ingest != nil {
		embedded, _ := u.ingest.EmbedPapers(ctx, imported)
		report.Embedded = embedded
	}
	return report, nil
}

// PaperIDs returns the conference's paper ids.
func (u *ConferenceUsecase) PaperIDs(confID string) ([]uuid.UUID, error) {
	papers, err := u.papers.ListBySource(domain.NormalizeConferenceKey(confID))
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(papers))
	for i, paper := range papers {
		ids[i] = paper.ID
	}
	return ids, nil
}

// GenerateRankings builds the static conference ranking for every active
// user. Returns the number of users processed.
func (u *ConferenceUsecase) GenerateRankings(confID string, force bool) (int, error) {
	ids, err := u.PaperIDs(confID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("conference %q has no imported papers", confID)
	}

	userIDs, err := u.profiles.ListActiveUserIDs()
	if err != nil {
		return 0, err
	}

	key := domain.NormalizeConferenceKey(confID)
	processed := 0
	for _, userID := range userIDs {
		if err := u.rankings.UpsertRanking(userID, key, ids, force, 0); err != nil {
			u.log.Warn().Err(err).Str("user_id", userID.String()).Str("conf_id", confID).Msg("conference ranking failed")
			continue
		}
		processed++
	}
	return processed, nil
}

// ListAvailable scans the data directory for importable conference files.
func (u *ConferenceUsecase) ListAvailable() ([]string, error) {
	entries, err := os.ReadDir(u.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := entry.Name()[:len(entry.Name())-len(".json")]
		if confIDPattern.MatchString(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
