package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/godilite/feedback-server/internal/feedback"
)

// MemoryRepository keeps rows in process memory. Used for tests and demos.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[feedback.Category][]feedback.Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[feedback.Category][]feedback.Record)}
}

func (r *MemoryRepository) EnsureSchema(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) AppendRow(ctx context.Context, category feedback.Category, record feedback.Record) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", feedback.ErrUnknownCategory, category)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[category] = append(r.rows[category], record)
	return nil
}

func (r *MemoryRepository) ReadAll(ctx context.Context, category feedback.Category) ([]feedback.Record, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", feedback.ErrUnknownCategory, category)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]feedback.Record, len(r.rows[category]))
	copy(out, r.rows[category])
	return out, nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
