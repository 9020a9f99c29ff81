package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	JobFetchArxiv       = "fetch_arxiv"
	JobGenCandidatePool = "gen_candidate_pool"
	JobGenRecommend     = "gen_recommendation"
	JobGenContent       = "gen_content"
	JobImportConference = "import_conference"
)

const (
	JobStatusIdle    = "idle"
	JobStatusRunning = "running"
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
)

type JobState struct {
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	Processed    int        `json:"processed"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	LastRanAt    *time.Time `json:"last_ran_at,omitempty"`
	DurationMS   int64      `json:"duration_ms,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// JobFunc does the work and returns how many items it processed.
type JobFunc func(ctx context.Context) (int, error)

type ErrJobRunning struct{ Name string }

func (e ErrJobRunning) Error() string { return fmt.Sprintf("job %q is already running", e.Name) }

// JobRegistry runs background jobs with single-flight semantics per name:
// a second start while a run is in flight is rejected, never queued.
type JobRegistry struct {
	mu   sync.Mutex
	jobs map[string]*JobState
	log  zerolog.Logger
}

func NewJobRegistry(log zerolog.Logger) *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*JobState), log: log}
}

// Start launches the job in the background. The returned error only covers
// admission; run failures land in the job state.
func (r *JobRegistry) Start(name string, fn JobFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.jobs[name]
	if state == nil {
		state = &JobState{Name: name, Status: JobStatusIdle}
		r.jobs[name] = state
	}
	if state.Status == JobStatusRunning {
		return ErrJobRunning{Name: name}
	}

	now := time.Now()
	state.Status = JobStatusRunning
	state.StartedAt = &now
	state.Processed = 0
	state.ErrorMessage = ""

	go r.run(name, fn)
	return nil
}

func (r *JobRegistry) run(name string, fn JobFunc) {
	started := time.Now()
	r.log.Info().Str("job", name).Msg("job started")

	processed, err := fn(context.Background())

	finished := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.jobs[name]
	state.Processed = processed
	state.LastRanAt = &finished
	state.DurationMS = finished.Sub(started).Milliseconds()
	if err != nil {
		state.Status = JobStatusFailed
		state.ErrorMessage = err.Error()
		r.log.Error().Err(err).Str("job", name).Msg("job failed")
		return
	}
	state.Status = JobStatusSuccess
	r.log.Info().Str("job", name).Int("processed", processed).Dur("took", finished.Sub(started)).Msg("job finished")
}

// Status returns a snapshot of one job, or nil if it never ran.
func (r *JobRegistry) Status(name string) *JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.jobs[name]
	if state == nil {
		return nil
	}
	snapshot := *state
	return &snapshot
}

// List returns snapshots of every known job, sorted by name.
func (r *JobRegistry) List() []*JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*JobState, 0, len(r.jobs))
	for _, state := range r.jobs {
		snapshot := *state
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ConferenceJobName namespaces per-conference job runs.
func ConferenceJobName(kind, confID string) string {
	return kind + ":" + confID
}
