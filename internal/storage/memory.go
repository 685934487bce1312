package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"teamledger/internal/core"
	"teamledger/internal/ports"
)

var _ ports.Store = (*MemoryStore)(nil)

// MemoryStore keeps operations in process memory. Used by tests and the
// memory:// backend.
type MemoryStore struct {
	mu  sync.Mutex
	ops []core.Operation
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Close() error              { return nil }
func (s *MemoryStore) Ping(context.Context) error { return nil }

// CreateOperation stores a copy of op with a fresh id.
func (s *MemoryStore) CreateOperation(_ context.Context, op core.Operation) (core.Operation, error) {
	if err := op.Validate(); err != nil {
		return core.Operation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	op.ID = uuid.NewString()
	op.Date = op.Date.UTC().Truncate(time.Microsecond)
	op.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	s.ops = append(s.ops, op)
	return op, nil
}

// ListOperations returns operations newest first.
func (s *MemoryStore) ListOperations(_ context.Context) ([]core.Operation, error) {
	s.mu.Lock()
	out := append([]core.Operation{}, s.ops...)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Summarize(_ context.Context, p core.Period) (core.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Aggregate(s.ops, p), nil
}

func (s *MemoryStore) ListTeams(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]struct{}{}
	teams := []string{}
	for _, op := range s.ops {
		if op.Team == nil {
			continue
		}
		name := *op.Team
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		teams = append(teams, name)
	}
	sort.Strings(teams)
	return teams, nil
}
