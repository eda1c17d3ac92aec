package movement

import (
	"context"
	"sync"
	"time"
)

// History is the append-only store of classified samples read by Stats.
type History interface {
	Append(ctx context.Context, s Sample) error
	Window(ctx context.Context, userID string, start, end time.Time) ([]Sample, error)
}

// DefaultHistoryLimit caps samples kept per user by MemoryHistory.
const DefaultHistoryLimit = 10000

// MemoryHistory keeps the most recent samples per user in process memory.
type MemoryHistory struct {
	mu      sync.RWMutex
	limit   int
	samples map[string][]Sample
}

// NewMemoryHistory creates a history holding at most limit samples per user.
// A non-positive limit uses DefaultHistoryLimit.
func NewMemoryHistory(limit int) *MemoryHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryHistory{limit: limit, samples: make(map[string][]Sample)}
}

func (h *MemoryHistory) Append(_ context.Context, s Sample) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := append(h.samples[s.UserID], s)
	if len(list) > h.limit {
		list = append([]Sample(nil), list[len(list)-h.limit:]...)
	}
	h.samples[s.UserID] = list
	return nil
}

func (h *MemoryHistory) Window(_ context.Context, userID string, start, end time.Time) ([]Sample, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []Sample
	for _, s := range h.samples[userID] {
		if !start.IsZero() && s.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && s.Timestamp.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// StatsFor loads userID's samples in [start, end] from h and aggregates them.
func StatsFor(ctx context.Context, h History, userID string, start, end time.Time) (Stats, error) {
	samples, err := h.Window(ctx, userID, start, end)
	if err != nil {
		return Stats{}, err
	}
	return Aggregate(samples, start, end), nil
}
