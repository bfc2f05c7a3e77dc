package handler

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/pricehist/models"
)

// Batch job states.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobPartial    = "partial"
	JobFailed     = "failed"
)

// JobStore holds in-flight and finished batch jobs. Finished jobs are
// dropped once they are older than the retention period.
type JobStore struct {
	mu        sync.Mutex
	jobs      map[string]*models.BatchJob
	retention time.Duration
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewJobStore creates a store and starts its expiry loop, which runs
// every 5 minutes until Close.
func NewJobStore(retention time.Duration) *JobStore {
	s := &JobStore{
		jobs:      make(map[string]*models.BatchJob),
		retention: retention,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	go s.expiryLoop(5 * time.Minute)
	return s
}

// Create registers a new processing job for total inputs.
func (s *JobStore) Create(total int) models.BatchJob {
	job := &models.BatchJob{
		ID:        "batch-" + randomID(),
		Status:    JobProcessing,
		Total:     total,
		CreatedAt: s.now().Unix(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return *job
}

// Get returns a snapshot of the job.
func (s *JobStore) Get(id string) (models.BatchJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.BatchJob{}, false
	}
	return *job, true
}

// Update applies fn to the job under the store lock. Reports assigned by fn
// must not be mutated afterwards.
func (s *JobStore) Update(id string, fn func(*models.BatchJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}

// Close stops the expiry loop.
func (s *JobStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *JobStore) expiryLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.expire()
		}
	}
}

func (s *JobStore) expire() {
	cutoff := s.now().Add(-s.retention).Unix()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if job.Status != JobProcessing && job.CreatedAt < cutoff {
			delete(s.jobs, id)
		}
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
