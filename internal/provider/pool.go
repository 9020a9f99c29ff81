// Package provider owns the outbound LLM client pool and the TTS engine.
// The pool is constructed once at startup and passed explicitly to the
// usecases that fan out over it.
package provider

import (
	"errors"

	"github.com/flopap/backend/internal/config"
	"github.com/flopap/backend/pkg/edgetts"
	"github.com/flopap/backend/pkg/llm"
)

var ErrNoCredentials = errors.New("no LLM credentials configured")

type Pool struct {
	clients []*llm.Client
	tts     *edgetts.Engine
}

func NewPool(cfg *config.Config) (*Pool, error) {
	if len(cfg.LLM.Credentials) == 0 {
		return nil, ErrNoCredentials
	}

	clients := make([]*llm.Client, 0, len(cfg.LLM.Credentials))
	for _, cred := range cfg.LLM.Credentials {
		clients = append(clients, llm.NewClient(cred.APIKey, cred.BaseURL, cfg.LLM.ChatModel, cfg.Embedding.Model))
	}

	return &Pool{
		clients: clients,
		tts:     edgetts.NewEngine(cfg.TTS.Voice),
	}, nil
}

// Clients returns the process-lifetime client slice; callers must not
// mutate it.
func (p *Pool) Clients() []*llm.Client { return p.clients }

// Client returns the i-th client modulo pool size, for round-robin use.
func (p *Pool) Client(i int) *llm.Client {
	return p.clients[i%len(p.clients)]
}

func (p *Pool) Size() int { return len(p.clients) }

func (p *Pool) TTS() *edgetts.Engine { return p.tts }

// Distribute splits items into n contiguous groups whose sizes differ by at
// most one, preserving input order within each group. Empty groups are
// included so callers can zip groups with workers.
func Distribute[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = 1
	}
	groups := make([][]T, n)
	base := len(items) / n
	extra := len(items) % n

	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		groups[i] = items[start : start+size]
		start += size
	}
	return groups
}
