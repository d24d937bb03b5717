// Package memory is an in-process TableStore used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetpipe/internal/core"
	ports "budgetpipe/internal/sheets"
)

var _ ports.TableStore = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	tabs   map[string]core.Table
	writes int
}

func New() *Store {
	return &Store{tabs: make(map[string]core.Table)}
}

// WriteTable stores a private copy of t and returns a synthetic range reference.
func (s *Store) WriteTable(_ context.Context, sheet string, t core.Table) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[sheet] = t.Clone()
	s.writes++
	return fmt.Sprintf("mem:%s!%d", sheet, len(t)+1), nil
}

func (s *Store) ReadTable(_ context.Context, sheet string) (core.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrSheetNotFound, sheet)
	}
	return t.Clone(), nil
}

// Writes reports how many WriteTable calls succeeded.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
