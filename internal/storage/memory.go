package storage

import (
	"sync"

	"xstaking/internal/model"
)

// MemoryStorage keeps records in memory. FailWith makes the next PutLogBatch fail.
type MemoryStorage struct {
	mu      sync.Mutex
	records []model.LogRecord
	failErr error
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) PutLogBatch(logs []model.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		err := s.failErr
		s.failErr = nil
		return err
	}
	s.records = append(s.records, logs...)
	return nil
}

// FailWith arms a one-shot failure.
func (s *MemoryStorage) FailWith(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}

// Records returns a copy of everything stored so far.
func (s *MemoryStorage) Records() []model.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.LogRecord, len(s.records))
	copy(out, s.records)
	return out
}
