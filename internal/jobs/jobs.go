// Package jobs tracks asynchronous processing jobs.
//
// A job moves PENDING -> PROCESSING -> COMPLETED or FAILED. Every state
// change goes through Registry.Transition, which only applies when the job
// is still in the state the caller expects.
package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a job is not in the expected
	// state or the requested edge is not part of the state machine.
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is a snapshot of one job. Result holds whatever the work returned.
type Job struct {
	ID        string    `json:"job_id"`
	Status    Status    `json:"status"`
	Source    string    `json:"source,omitempty"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is a concurrency-safe job table keyed by id.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new PENDING job and returns its snapshot.
func (r *Registry) Create(source string) Job {
	now := r.now()
	j := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.jobs[j.ID] = j
	r.mu.Unlock()
	return *j
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	return *j, nil
}

// Transition moves the job from one state to another, applying mutate to
// the job while the lock is held. It fails with ErrInvalidTransition when
// the job is not currently in from.
func (r *Registry) Transition(id string, from, to Status, mutate func(*Job)) (Job, error) {
	if !CanTransition(from, to) {
		return Job{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	if j.Status != from {
		return Job{}, fmt.Errorf("%w: job %s is %s, not %s", ErrInvalidTransition, id, j.Status, from)
	}
	if mutate != nil {
		mutate(j)
	}
	j.ID = id
	j.Status = to
	j.UpdatedAt = r.now()
	return *j, nil
}

// List returns snapshots of all jobs, newest first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// Prune drops terminal jobs last updated before cutoff and returns how
// many were removed.
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, j := range r.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}
