// Package ratelimit implements per-operation-class admission control with
// fixed windows keyed by caller.
//
// Each class (upload, ai, qa, general) owns an independent budget of Points
// per Duration. The window for a (class, key) pair starts on its first
// admission and resets Duration later. A missing class fails open; an
// exhausted budget fails closed.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

type Class string

const (
	ClassGeneral Class = "general"
	ClassUpload  Class = "upload"
	ClassAI      Class = "ai"
	ClassQA      Class = "qa"
)

type Limit struct {
	Points   int
	Duration time.Duration
}

// Decision is the outcome of one admission attempt.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RetryAfterSeconds rounds up and never reports less than one second for a denial.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store holds window counters. Consume must increment and read atomically.
type Store interface {
	Consume(key string, window time.Duration, now time.Time) (count int, resetAt time.Time)
	Get(key string, now time.Time) (count int, resetAt time.Time, ok bool)
	Delete(key string) bool
	Sweep(now time.Time) int
}

type Gate struct {
	limits map[Class]Limit
	store  Store
	clock  Clock
	logger *utils.Logger
}

type Option func(*Gate)

func WithClock(c Clock) Option {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

func WithStore(s Store) Option {
	return func(g *Gate) {
		if s != nil {
			g.store = s
		}
	}
}

func NewGate(limits map[Class]Limit, logger *utils.Logger, opts ...Option) *Gate {
	g := &Gate{
		limits: make(map[Class]Limit, len(limits)),
		store:  NewMemoryStore(),
		clock:  systemClock{},
		logger: logger,
	}
	for class, limit := range limits {
		g.limits[class] = limit
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func storeKey(class Class, key string) string {
	return string(class) + ":" + key
}

// Admit consumes one point from the class budget for key.
func (g *Gate) Admit(class Class, key string) Decision {
	limit, ok := g.limits[class]
	if !ok || limit.Points <= 0 || limit.Duration <= 0 {
		g.logger.Error("Rate limit class not configured, allowing request", "class", class)
		return Decision{Allowed: true}
	}

	now := g.clock.Now()
	count, resetAt := g.store.Consume(storeKey(class, key), limit.Duration, now)

	remaining := limit.Points - count
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   count <= limit.Points,
		Limit:     limit.Points,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
		g.logger.Warn("Rate limit exceeded",
			"class", class,
			"key", key,
			"total_hits", count,
			"retry_after_ms", d.RetryAfter.Milliseconds())
	}
	return d
}

// Status reports the current window for key without consuming a point.
func (g *Gate) Status(class Class, key string) (Decision, bool) {
	limit, ok := g.limits[class]
	if !ok {
		return Decision{}, false
	}
	now := g.clock.Now()
	count, resetAt, found := g.store.Get(storeKey(class, key), now)
	if !found {
		return Decision{Allowed: true, Limit: limit.Points, Remaining: limit.Points}, true
	}
	remaining := limit.Points - count
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   remaining > 0,
		Limit:     limit.Points,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
	}
	return d, true
}

// Reset clears the window for key. Returns false for an unknown class.
func (g *Gate) Reset(class Class, key string) bool {
	if _, ok := g.limits[class]; !ok {
		return false
	}
	g.store.Delete(storeKey(class, key))
	g.logger.Info("Rate limit reset", "class", class, "key", key)
	return true
}

// Run sweeps expired windows every interval until ctx is done.
func (g *Gate) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.store.Sweep(g.clock.Now()); n > 0 {
				g.logger.Debug("Swept expired rate limit windows", "count", n)
			}
		}
	}
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps windows in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

func (s *MemoryStore) Consume(key string, d time.Duration, now time.Time) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(d)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt
}

func (s *MemoryStore) Get(key string, now time.Time) (int, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		return 0, time.Time{}, false
	}
	return w.count, w.resetAt, true
}

func (s *MemoryStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.windows[key]
	delete(s.windows, key)
	return ok
}

func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}
