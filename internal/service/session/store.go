package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labelscan/backend/internal/model/label"
	"github.com/labelscan/backend/internal/model/session"
)

const (
	// DefaultTTL 会话默认存活时间，从创建时刻起算。
	DefaultTTL = 15 * time.Minute
	// DefaultSweepInterval 后台清理过期会话的间隔。
	DefaultSweepInterval = 5 * time.Minute
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrAnalysisRequired = errors.New("analysis is required")
)

// Options 控制会话存储的过期策略。
type Options struct {
	TTL           time.Duration
	SweepInterval time.Duration
	// Sliding 为 true 时每次成功读取都会把过期时间顺延一个 TTL。
	Sliding bool
}

// Option customizes a Store at construction time.
type Option func(*Store)

// WithClock replaces the time source, mainly for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the identifier source.
func WithIDGenerator(next func() string) Option {
	return func(s *Store) {
		if next != nil {
			s.newID = next
		}
	}
}

type record struct {
	analysis  *label.Analysis
	createdAt time.Time
	expiresAt time.Time
}

// Store is an in-memory, expiring map of session id to label analysis.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
	opts    Options
	now     func() time.Time
	newID   func() string
}

// NewStore creates an empty store. Zero option values fall back to the defaults.
func NewStore(opts Options, extra ...Option) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	s := &Store{
		records: make(map[string]*record),
		opts:    opts,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, apply := range extra {
		apply(s)
	}
	return s
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.opts.TTL
}

// Create stores a copy of the analysis under a fresh identifier.
func (s *Store) Create(_ context.Context, analysis *label.Analysis) (session.Session, error) {
	if analysis == nil {
		return session.Session{}, ErrAnalysisRequired
	}

	stored := analysis.Clone()
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for {
		existing, ok := s.records[id]
		if !ok || !now.Before(existing.expiresAt) {
			break
		}
		log.Printf("[session] id collision on %s, regenerating", id)
		id = s.newID()
	}

	rec := &record{
		analysis:  stored,
		createdAt: now,
		expiresAt: now.Add(s.opts.TTL),
	}
	s.records[id] = rec

	return rec.toSession(id), nil
}

// Get returns the session if it exists and has not expired.
func (s *Store) Get(_ context.Context, id string) (session.Session, error) {
	if id == "" {
		return session.Session{}, ErrSessionNotFound
	}

	now := s.now().UTC()

	if s.opts.Sliding {
		s.mu.Lock()
		defer s.mu.Unlock()

		rec, ok := s.records[id]
		if !ok || !now.Before(rec.expiresAt) {
			delete(s.records, id)
			return session.Session{}, ErrSessionNotFound
		}
		rec.expiresAt = now.Add(s.opts.TTL)
		return rec.toSession(id), nil
	}

	s.mu.RLock()
	rec, ok := s.records[id]
	if !ok || !now.Before(rec.expiresAt) {
		s.mu.RUnlock()
		return session.Session{}, ErrSessionNotFound
	}
	sess := rec.toSession(id)
	s.mu.RUnlock()

	return sess, nil
}

// Exists reports whether id resolves to a live session. It never renews the session.
func (s *Store) Exists(_ context.Context, id string) bool {
	now := s.now().UTC()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	return ok && now.Before(rec.expiresAt)
}

// Len returns the number of records currently held, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Sweep evicts every expired record and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if !now.Before(rec.expiresAt) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions on every tick until ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	log.Printf("[session] janitor started, ttl=%s interval=%s sliding=%t", s.opts.TTL, s.opts.SweepInterval, s.opts.Sliding)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[session] janitor stopped")
			return nil
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				log.Printf("[session] swept %d expired sessions", removed)
			}
		}
	}
}

func (r *record) toSession(id string) session.Session {
	return session.Session{
		ID:        id,
		Analysis:  r.analysis.Clone(),
		CreatedAt: r.createdAt,
		ExpiresAt: r.expiresAt,
	}
}
