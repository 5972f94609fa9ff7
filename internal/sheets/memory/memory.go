package memory

import (
	"context"
	"errors"
	"sync"

	"expenses/internal/core"
	ports "expenses/internal/sheets"
)

var _ ports.RecordExporter = (*Store)(nil)

// ErrFull is returned once a Store holds FailAfter rows.
var ErrFull = errors.New("memory sheet is full")

// Store keeps exported rows in memory. Err, when set, is returned by every
// Export call without recording anything. FailAfter, when positive, caps the
// number of rows held; an Export that reaches the cap fails with ErrFull.
type Store struct {
	mu        sync.Mutex
	rows      [][]any
	Err       error
	FailAfter int
}

func New() *Store {
	return &Store{}
}

func (s *Store) Export(_ context.Context, records []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for i, e := range records {
		if s.FailAfter > 0 && len(s.rows) >= s.FailAfter {
			if i == 0 {
				return ErrFull
			}
			return &ports.PartialExportError{Exported: i, Err: ErrFull}
		}
		s.rows = append(s.rows, ports.Row(e))
	}
	return nil
}

// SetFailAfter changes FailAfter while exports may be running.
func (s *Store) SetFailAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailAfter = n
}

// Rows returns a copy of everything exported so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.rows...)
}
