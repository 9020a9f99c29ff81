package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, r *JobRegistry, name, want string) *JobState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("job %s never reached status %s", name, want)
		default:
		}
		if state := r.Status(name); state != nil && state.Status == want {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestJobRegistrySingleFlight(t *testing.T) {
	r := NewJobRegistry(zerolog.Nop())
	release := make(chan struct{})

	require.NoError(t, r.Start("demo", func(ctx context.Context) (int, error) {
		<-release
		return 7, nil
	}))

	err := r.Start("demo", func(ctx context.Context) (int, error) { return 0, nil })
	var running ErrJobRunning
	require.ErrorAs(t, err, &running)
	require.Equal(t, "demo", running.Name)

	close(release)
	state := waitForStatus(t, r, "demo", JobStatusSuccess)
	require.Equal(t, 7, state.Processed)
	require.NotNil(t, state.LastRanAt)

	// Finished jobs can run again.
	require.NoError(t, r.Start("demo", func(ctx context.Context) (int, error) { return 1, nil }))
	waitForStatus(t, r, "demo", JobStatusSuccess)
}

func TestJobRegistryRecordsFailure(t *testing.T) {
	r := NewJobRegistry(zerolog.Nop())
	require.NoError(t, r.Start("broken", func(ctx context.Context) (int, error) {
		return 3, errors.New("upstream exploded")
	}))

	state := waitForStatus(t, r, "broken", JobStatusFailed)
	require.Equal(t, 3, state.Processed)
	require.Contains(t, state.ErrorMessage, "upstream exploded")
}

func TestJobRegistryListAndStatus(t *testing.T) {
	r := NewJobRegistry(zerolog.Nop())
	require.Nil(t, r.Status("never-ran"))

	require.NoError(t, r.Start("b", func(ctx context.Context) (int, error) { return 0, nil }))
	require.NoError(t, r.Start("a", func(ctx context.Context) (int, error) { return 0, nil }))
	waitForStatus(t, r, "a", JobStatusSuccess)
	waitForStatus(t, r, "b", JobStatusSuccess)

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].Name)
	require.Equal(t, "b", list[1].Name)
}

func TestConferenceJobName(t *testing.T) {
	require.Equal(t, "import_conference:icml2026", ConferenceJobName(JobImportConference, "icml2026"))
}
