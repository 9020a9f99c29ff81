package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/flopap/backend/internal/domain"
	"github.com/flopap/backend/pkg/ffmpeg"
)

var (
	ErrTTSNotReady = errors.New("paper is missing the translated title or interpretation required for narration")

	markdownStripper = regexp.MustCompile("[*_`#>]+")
)

const ttsCallTimeout = 60 * time.Second

// TTSEngine is the streaming synthesis contract; pkg/edgetts implements it.
type TTSEngine interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

type TTSReport struct {
	Processed int `json:"processed"`
	Generated int `json:"generated"`
	Reused    int `json:"reused"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// TTSUsecase generates audio narrations with content-hash dedup: identical
// narration text for the same voice never produces a second file.
type TTSUsecase struct {
	papers          domain.PaperRepository
	translations    domain.TranslationRepository
	interpretations domain.InterpretationRepository
	ttsRows         domain.TTSRepository
	engine          TTSEngine
	voice           string
	baseDir         string
	concurrency     int64
	log             zerolog.Logger

	// transcode and jitter are swappable for tests.
	transcode func(context.Context, []byte) ([]byte, error)
	jitter    func() time.Duration
}

func NewTTSUsecase(
	papers domain.PaperRepository,
	translations domain.TranslationRepository,
	interpretations domain.InterpretationRepository,
	ttsRows domain.TTSRepository,
	engine TTSEngine,
	voice, baseDir string,
	concurrency int,
	log zerolog.Logger,
) *TTSUsecase {
	if concurrency <= 0 {
		concurrency = 5
	}
	u := &TTSUsecase{
		papers:          papers,
		translations:    translations,
		interpretations: interpretations,
		ttsRows:         ttsRows,
		engine:          engine,
		voice:           voice,
		baseDir:         baseDir,
		concurrency:     int64(concurrency),
		log:             log,
		jitter: func() time.Duration {
			// Spread synchronized bursts across the worker group.
			return 500*time.Millisecond + time.Duration(rand.Int63n(500))*time.Millisecond
		},
	}
	if ffmpeg.Available() {
		u.transcode = ffmpeg.TranscodeToOpus
	}
	return u
}

// GenerateForPaper produces (or reuses) the narration audio for one paper.
func (u *TTSUsecase) GenerateForPaper(ctx context.Context, paperID uuid.UUID) (*domain.PaperTTS, error) {
	narration, err := u.narrationFor(paperID)
	if err != nil {
		return nil, err
	}

	hash := contentHash(narration)
	if existing, err := u.lookupByHash(paperID, hash); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	select {
	case <-time.After(u.jitter()):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	callCtx, cancel := context.WithTimeout(ctx, ttsCallTimeout)
	defer cancel()
	audio, err := u.engine.Synthesize(callCtx, narration, u.voice)
	if err != nil {
		return nil, fmt.Errorf("synthesize narration: %w", err)
	}

	if u.transcode != nil {
		if opus, err := u.transcode(ctx, audio); err != nil {
			u.log.Warn().Err(err).Str("paper_id", paperID.String()).Msg("opus transcode failed, keeping raw audio")
		} else {
			audio = opus
		}
	}

	filename := uuid.NewString() + ".opus"
	if err := u.writeAtomic(filename, audio); err != nil {
		return nil, err
	}

	row := &domain.PaperTTS{
		PaperID:     paperID,
		VoiceModel:  u.voice,
		ContentHash: hash,
		FilePath:    filename,
		FileSize:    int64(len(audio)),
	}
	if err := u.ttsRows.Create(row); err != nil {
		// The orphan file is harmless; the row is the source of truth.
		os.Remove(filepath.Join(u.baseDir, filename))
		return nil, fmt.Errorf("persist tts row: %w", err)
	}
	return row, nil
}

// GenerateForPapers runs the TTS fan-out with a bounded in-flight count.
// Items without an acceptable composition are counted as skipped.
func (u *TTSUsecase) GenerateForPapers(ctx context.Context, paperIDs []uuid.UUID) (*TTSReport, error) {
	report := &TTSReport{Processed: len(paperIDs)}

	sem := semaphore.NewWeighted(u.concurrency)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, paperID := range paperIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(paperID uuid.UUID) {
			defer wg.Done()
			defer sem.Release(1)

			hadRow, err := u.hasCurrentAudio(ctx, paperID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && hadRow:
				report.Reused++
			case err != nil && errors.Is(err, ErrTTSNotReady):
				report.Skipped++
			case err != nil:
				report.Failed++
				u.log.Warn().Err(err).Str("paper_id", paperID.String()).Msg("tts item failed")
			default:
				report.Generated++
			}
		}(paperID)
	}
	wg.Wait()
	return report, nil
}

// hasCurrentAudio generates if needed; true when an existing row was
// reused.
func (u *TTSUsecase) hasCurrentAudio(ctx context.Context, paperID uuid.UUID) (bool, error) {
	narration, err := u.narrationFor(paperID)
	if err != nil {
		return false, err
	}
	hash := contentHash(narration)
	existing, err := u.lookupByHash(paperID, hash)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return true, nil
	}
	_, err = u.GenerateForPaper(ctx, paperID)
	return false, err
}

// Resolve returns the freshest audio row for a paper, deleting rows whose
// file has gone missing.
func (u *TTSUsecase) Resolve(paperID uuid.UUID) (*domain.PaperTTS, error) {
	for {
		row, err := u.ttsRows.GetLatestByPaper(paperID, "")
		if err != nil || row == nil {
			return nil, err
		}
		if u.fileExists(row.FilePath) {
			return row, nil
		}
		// Stale reference; drop the orphan row and look again.
		if err := u.ttsRows.Delete(row.ID); err != nil {
			return nil, err
		}
	}
}

// AudioPath maps a stored basename to its on-disk location, rejecting path
// traversal.
func (u *TTSUsecase) AudioPath(filename string) (string, error) {
	if filename != filepath.Base(filename) || filename == "." || filename == "" {
		return "", fmt.Errorf("invalid audio filename %q", filename)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".opus", ".mp3", ".wav":
	default:
		return "", fmt.Errorf("unsupported audio extension in %q", filename)
	}
	return filepath.Join(u.baseDir, filename), nil
}

func (u *TTSUsecase) narrationFor(paperID uuid.UUID) (string, error) {
	translation, err := u.translations.GetByPaperID(paperID)
	if err != nil {
		return "", err
	}
	interpretation, err := u.interpretations.GetByPaperID(paperID)
	if err != nil {
		return "", err
	}
	if translation == nil || translation.TitleZH == "" || interpretation == nil || interpretation.Content == "" {
		return "", ErrTTSNotReady
	}
	return BuildNarration(translation.TitleZH, interpretation.Content), nil
}

func (u *TTSUsecase) lookupByHash(paperID uuid.UUID, hash string) (*domain.PaperTTS, error) {
	existing, err := u.ttsRows.GetByHash(paperID, u.voice, hash)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	if u.fileExists(existing.FilePath) {
		return existing, nil
	}
	if err := u.ttsRows.Delete(existing.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (u *TTSUsecase) fileExists(filename string) bool {
	info, err := os.Stat(filepath.Join(u.baseDir, filename))
	return err == nil && !info.IsDir()
}

func (u *TTSUsecase) writeAtomic(filename string, data []byte) error {
	if err := os.MkdirAll(u.baseDir, 0o755); err != nil {
		return fmt.Errorf("create tts dir: %w", err)
	}
	tmp, err := os.CreateTemp(u.baseDir, ".tts-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(u.baseDir, filename))
}

// BuildNarration assembles the narrated text from the translated title and
// interpretation, stripping markdown and unpacking JSON-wrapped bilingual
// content.
func BuildNarration(titleZH, interpretation string) string {
	content := strings.TrimSpace(interpretation)

	// Some models wrap bilingual output as {"zh": "...", "en": "..."}.
	if strings.HasPrefix(content, "{") {
		var wrapped map[string]string
		if err := json.Unmarshal([]byte(content), &wrapped); err == nil {
			if zh := wrapped["zh"]; zh != "" {
				content = zh
			}
		}
	}

	content = markdownStripper.ReplaceAllString(content, "")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	content = strings.Join(lines, "\n")
	content = strings.ReplaceAll(content, "\n\n\n", "\n\n")

	return strings.TrimSpace(titleZH) + "。\n\n" + strings.TrimSpace(content)
}

func contentHash(narration string) string {
	sum := md5.Sum([]byte(narration))
	return hex.EncodeToString(sum[:])
}
