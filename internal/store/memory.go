package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps finished games in memory. It backs development
// deployments that run without a database.
type MemoryRepository struct {
	mu   sync.RWMutex
	recs map[string]*Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{recs: make(map[string]*Record)}
}

func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) SaveFinished(_ context.Context, rec *Record) error {
	if rec == nil {
		return nil
	}
	cp := *rec
	r.mu.Lock()
	r.recs[rec.Code] = &cp
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) GetByCode(_ context.Context, code string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recs[code]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID int64, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	var recs []*Record
	for _, rec := range r.recs {
		if rec.WhiteID == userID || rec.BlackID == userID {
			cp := *rec
			recs = append(recs, &cp)
		}
	}
	r.mu.RUnlock()
	sort.Slice(recs, func(i, j int) bool { return recs[i].EndedAt.After(recs[j].EndedAt) })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}
