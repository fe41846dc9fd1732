package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type CycleState string

const (
	CycleFetching   CycleState = "fetching"
	CycleProcessing CycleState = "processing"
	CycleCompleted  CycleState = "completed"
	CycleAborted    CycleState = "aborted"
)

type CycleReport struct {
	ID        string
	State     CycleState
	StartedAt time.Time
	Elapsed   time.Duration

	Fetched int
	recordMetrics

	mu sync.Mutex
}

type recordMetrics struct {
	Malformed    int // Skipped by the normalizer
	Known        int // Stored by an earlier cycle, or by a concurrent writer
	Created      int
	Notified     int // Tokens the gateway accepted
	FailedTokens int
	Errored      int // Store failures; retried next cycle
}

func newCycleReport() *CycleReport {
	return &CycleReport{
		ID:        uuid.NewString(),
		State:     CycleFetching,
		StartedAt: time.Now().UTC(),
	}
}

func (r *CycleReport) add(m recordMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Malformed += m.Malformed
	r.Known += m.Known
	r.Created += m.Created
	r.Notified += m.Notified
	r.FailedTokens += m.FailedTokens
	r.Errored += m.Errored
}

func (r *CycleReport) finish(state CycleState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = state
	r.Elapsed = time.Now().UTC().Sub(r.StartedAt)
}

func (r *CycleReport) logFields() []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	args := []any{"fetched", r.Fetched}
	counters := []struct {
		key string
		n   int
	}{
		{"malformed", r.Malformed},
		{"known", r.Known},
		{"created", r.Created},
		{"notified", r.Notified},
		{"failed_tokens", r.FailedTokens},
		{"errored", r.Errored},
	}
	for _, c := range counters {
		if c.n != 0 {
			args = append(args, c.key, c.n)
		}
	}
	return append(args, "elapsed_msecs", int(r.Elapsed.Milliseconds()))
}
