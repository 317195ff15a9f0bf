package quota

import (
	"context"
	"sync"
	"time"
)

// usageRecord tracks one device key's usage for one calendar day
type usageRecord struct {
	count int
	date  string
}

// MemoryStore is a process-local usage store. Correctness holds only
// under single-instance deployment: horizontal scaling multiplies the
// effective quota by the instance count, and the table is lost on
// restart. Use RedisStore when either matters.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*usageRecord
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory usage store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*usageRecord),
		now:     time.Now,
	}
}

// SetClock overrides the store's clock. Tests use this to cross a
// calendar-day boundary without waiting for one.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Consume implements Store. The daily reset is lazy: a stored record
// whose date differs from today is reinitialized on first touch, with
// no carry-over of the previous day's count.
func (s *MemoryStore) Consume(ctx context.Context, deviceKey string, limit int) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.now().UTC().Format("2006-01-02")

	rec, ok := s.records[deviceKey]
	if !ok || rec.date != today {
		rec = &usageRecord{count: 0, date: today}
		s.records[deviceKey] = rec
	}

	if rec.count >= limit {
		return false, rec.count, nil
	}

	rec.count++
	return true, rec.count, nil
}

// Len returns the number of tracked device keys
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
