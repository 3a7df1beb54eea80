package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 64

type window struct {
	count int
	start time.Time
	size  time.Duration
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// MemoryLimiter keeps windows in process memory. Keys are spread over
// shards so that unrelated keys rarely contend for the same lock, while every
// read-modify-write of one key happens under that key's shard lock.
type MemoryLimiter struct {
	shards [shardCount]shard
	now    func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return NewMemoryLimiterWithClock(time.Now)
}

func NewMemoryLimiterWithClock(now func() time.Time) *MemoryLimiter {
	l := &MemoryLimiter{now: now}
	for i := range l.shards {
		l.shards[i].windows = make(map[string]*window)
	}
	return l
}

func (l *MemoryLimiter) shardFor(key string) *shard {
	return &l.shards[xxhash.Sum64String(key)%shardCount]
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, rate Rate) (Decision, error) {
	now := l.now()
	s := l.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.start.Add(w.size)) {
		w = &window{start: now, size: rate.Window}
		s.windows[key] = w
	}

	d := Decision{Limit: rate.Limit, RetryAfter: w.start.Add(w.size).Sub(now)}
	if w.count < rate.Limit {
		w.count++
		d.Allowed = true
	}
	d.Remaining = rate.Limit - w.count
	if d.Remaining < 0 {
		d.Remaining = 0
	}

	return d, nil
}

// Sweep drops every window that has already closed and returns how many were
// removed.
func (l *MemoryLimiter) Sweep(now time.Time) int {
	removed := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for key, w := range s.windows {
			if !now.Before(w.start.Add(w.size)) {
				delete(s.windows, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of live windows.
func (l *MemoryLimiter) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.windows)
		s.mu.Unlock()
	}
	return n
}
