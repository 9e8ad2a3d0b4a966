package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"shortener-core/internal/model"
)

// MemoryStore keeps pending requests for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]model.PendingRequest
	seq   uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]model.PendingRequest)}
}

func (s *MemoryStore) Save(ctx context.Context, req *model.PendingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.items[req.TxHash]; ok {
		req.ID = existing.ID
		req.CreatedAt = existing.CreatedAt
	} else {
		s.seq++
		req.ID = s.seq
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	s.items[req.TxHash] = *req
	return nil
}

func (s *MemoryStore) Finish(ctx context.Context, txHash string, status string, blockNumber, gasUsed uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.items[txHash]
	if !ok {
		return ErrNotFound
	}
	req.Status = status
	req.BlockNumber = blockNumber
	req.GasUsed = gasUsed
	req.UpdatedAt = time.Now()
	s.items[txHash] = req
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, txHash string) (*model.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.items[txHash]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (s *MemoryStore) ListOpen(ctx context.Context) ([]model.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PendingRequest
	for _, req := range s.items {
		if req.Open() {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
