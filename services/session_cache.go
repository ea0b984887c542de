package services

import (
	"context"
	"sync"
	"time"

	"stationmatrix-backend/matrix"
	"stationmatrix-backend/models"

	"github.com/google/uuid"
)

const DefaultSessionTTL = 5 * time.Minute

// SessionState is everything a mounted matrix session shows.
type SessionState struct {
	SavedAt   time.Time             `json:"savedAt"`
	Services  []models.Service      `json:"services"`
	Stations  []models.Station      `json:"stations"`
	Selected  []uuid.UUID           `json:"selected"`
	Store     matrix.StoreState     `json:"store"`
	Paginator matrix.PaginatorState `json:"paginator"`
}

// SessionCache keeps one state slot per key for a limited time.
type SessionCache interface {
	Get(ctx context.Context, key string) (*SessionState, bool, error)
	Set(ctx context.Context, key string, state *SessionState) error
	Clear(ctx context.Context, key string) error
}

type memorySlot struct {
	savedAt time.Time
	state   *SessionState
}

// MemoryCache is an in-process SessionCache.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	slots map[string]memorySlot
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return NewMemoryCacheWithClock(ttl, time.Now)
}

func NewMemoryCacheWithClock(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryCache{ttl: ttl, now: now, slots: map[string]memorySlot{}}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*SessionState, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.slots[key]
	if !ok {
		return nil, false, nil
	}
	if c.now().Sub(slot.savedAt) >= c.ttl {
		delete(c.slots, key)
		return nil, false, nil
	}
	state := *slot.state
	state.SavedAt = slot.savedAt
	return &state, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, state *SessionState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slots[key] = memorySlot{savedAt: c.now(), state: state}
	return nil
}

func (c *MemoryCache) Clear(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.slots, key)
	return nil
}

// PurgeExpired drops stale slots and returns how many went.
func (c *MemoryCache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	now := c.now()
	for key, slot := range c.slots {
		if now.Sub(slot.savedAt) >= c.ttl {
			delete(c.slots, key)
			n++
		}
	}
	return n
}
