package job

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shinmindoree/llmtradingtest/internal/api/response"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Status represents job status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed}

// Job represents an async job.
type Job struct {
	ID        string                `json:"job_id"`
	Type      string                `json:"type"`
	Status    Status                `json:"status"`
	Result    any                   `json:"result,omitempty"`
	Error     *response.ErrorDetail `json:"error,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Store keeps async jobs in memory. Jobs expire ttl after their last
// update; when full, the oldest job is evicted.
type Store struct {
	jobs    map[string]*Job
	order   []string // Track insertion order for eviction
	maxSize int
	ttl     time.Duration
	mu      sync.RWMutex
	now     func() time.Time
}

// NewStore creates a new job store. ttl <= 0 keeps jobs until evicted.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Store{
		jobs:    make(map[string]*Job),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create creates a new job and returns it.
func (s *Store) Create(jobType string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)

	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Evict oldest if at capacity
	for len(s.jobs) >= s.maxSize && len(s.order) > 0 {
		delete(s.jobs, s.order[0])
		s.order = s.order[1:]
	}

	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)

	jobCopy := *job
	return &jobCopy
}

func (s *Store) expired(j *Job, now time.Time) bool {
	return s.ttl > 0 && now.Sub(j.UpdatedAt) > s.ttl
}

func (s *Store) expireLocked(now time.Time) {
	kept := s.order[:0]
	for _, id := range s.order {
		if j, ok := s.jobs[id]; ok && s.expired(j, now) {
			delete(s.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Get retrieves a job by ID.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok || s.expired(job, s.now()) {
		return nil, core.Errorf(core.ErrNotFound, "job %q", id)
	}

	// Return copy to prevent race conditions
	jobCopy := *job
	return &jobCopy, nil
}

// Update modifies a job using an update function.
func (s *Store) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return core.Errorf(core.ErrNotFound, "job %q", id)
	}

	fn(job)
	job.UpdatedAt = s.now()
	return nil
}

// List returns live jobs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	result := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if !s.expired(job, now) {
			result = append(result, *job)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Counts returns the number of live jobs per status.
func (s *Store) Counts() map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		counts[st] = 0
	}
	for _, j := range s.List() {
		counts[j.Status]++
	}
	return counts
}
