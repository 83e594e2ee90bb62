package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/petrijr/toolflow/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe RunStore and EventStore backed
// by maps. Records are stored encoded so later mutation of a run's context
// does not leak into history.
type InMemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]memoryRun
	events map[string][]api.WorkflowEvent
}

type memoryRun struct {
	rec     RunRecord
	context []byte
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs:   make(map[string]memoryRun),
		events: make(map[string][]api.WorkflowEvent),
	}
}

var (
	_ RunStore   = (*InMemoryStore)(nil)
	_ EventStore = (*InMemoryStore)(nil)
)

func (s *InMemoryStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	data, err := EncodeContext(rec.Context)
	if err != nil {
		return err
	}
	stored := *rec
	stored.Context = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[rec.ID] = memoryRun{rec: stored, context: data}
	return nil
}

func (s *InMemoryStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	s.mu.RLock()
	r, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	return r.decode()
}

func (s *InMemoryStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*RunRecord
	for _, r := range s.runs {
		if !filter.match(&r.rec) {
			continue
		}
		rec, err := r.decode()
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	sortRuns(result)
	return result, nil
}

func (r memoryRun) decode() (*RunRecord, error) {
	fctx, err := DecodeContext(r.context)
	if err != nil {
		return nil, err
	}
	rec := r.rec
	rec.Context = fctx
	return &rec, nil
}

func (s *InMemoryStore) AppendEvent(ctx context.Context, ev api.WorkflowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.RunID] = append(s.events[ev.RunID], ev)
	return nil
}

func (s *InMemoryStore) ListEvents(ctx context.Context, runID string) ([]api.WorkflowEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events[runID]), nil
}
