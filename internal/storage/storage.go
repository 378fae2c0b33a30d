package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/pl-listing/lister/internal/batch"
	"github.com/pl-listing/lister/internal/models"
)

// BatchRecord is everything the HTTP surface keeps about one submitted batch.
// Groups hold the uploaded bytes only until the worker takes them.
type BatchRecord struct {
	ID           string
	Tracker      *batch.Tracker
	Groups       []models.ImageGroup
	Hints        models.Hints
	SkippedFiles int
	CreatedAt    time.Time
}

// BatchStore is an in-memory registry of batches keyed by run ID.
type BatchStore struct {
	batches map[string]*BatchRecord
	mu      sync.RWMutex
}

func New() *BatchStore {
	return &BatchStore{
		batches: make(map[string]*BatchRecord),
	}
}

func (s *BatchStore) Get(id string) (*BatchRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, exists := s.batches[id]
	return rec, exists
}

func (s *BatchStore) Set(id string, rec *BatchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[id] = rec
}

// List returns every record, oldest first.
func (s *BatchStore) List() []*BatchRecord {
	s.mu.RLock()
	result := make([]*BatchRecord, 0, len(s.batches))
	for _, rec := range s.batches {
		result = append(result, rec)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// TakeGroups hands the raw images of a batch to the caller and drops them
// from the record, so the bytes live no longer than the run that uses them.
func (s *BatchStore) TakeGroups(id string) []models.ImageGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.batches[id]
	if !ok {
		return nil
	}
	groups := rec.Groups
	rec.Groups = nil
	return groups
}

func (s *BatchStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, id)
}
