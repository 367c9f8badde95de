package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/observability"
)

var (
	// ErrSessionRequired indicates the request carried no session identifier.
	ErrSessionRequired = errors.New("session id required")
	// ErrSessionNotFound indicates the session is unknown or was evicted.
	ErrSessionNotFound = errors.New("session not found")
)

// Session is one advisor's working context: its alert store and remembered view state.
type Session struct {
	ID        string
	CreatedAt time.Time
	Store     *AlertStore

	mu       sync.Mutex
	lastSeen time.Time
	pages    map[string]int
}

// Page returns the last page viewed for the named list, or 1.
func (s *Session) Page(view string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page, ok := s.pages[view]; ok && page > 0 {
		return page
	}
	return 1
}

// RememberPage stores the page last viewed for the named list.
func (s *Session) RememberPage(view string, page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[view] = page
}

// LastSeen reports when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// SessionService issues, resolves and expires advisor sessions.
type SessionService interface {
	Create(ctx context.Context) *Session
	Get(ctx context.Context, id string) (*Session, error)
	Close(ctx context.Context, id string) bool
	EvictIdle() int
	Count() int
	Run(ctx context.Context)
}

type sessionService struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idleTTL  time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSessionService constructs the in-memory session registry.
func NewSessionService(idleTTL time.Duration, logger zerolog.Logger) SessionService {
	return newSessionService(idleTTL, logger, time.Now)
}

func newSessionService(idleTTL time.Duration, logger zerolog.Logger, now func() time.Time) *sessionService {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &sessionService{
		sessions: make(map[string]*Session),
		idleTTL:  idleTTL,
		logger:   logger.With().Str("component", "session_service").Logger(),
		now:      now,
	}
}

func (s *sessionService) Create(_ context.Context) *Session {
	now := s.now()
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now.UTC(),
		Store:     NewAlertStoreWithClock(s.now),
		lastSeen:  now,
		pages:     make(map[string]int),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	count := len(s.sessions)
	s.mu.Unlock()

	observability.ActiveSessions().Set(float64(count))
	s.logger.Debug().Str("session_id", session.ID).Msg("session created")
	return session
}

func (s *sessionService) Get(_ context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSessionRequired
	}

	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	now := s.now()
	if now.Sub(session.LastSeen()) > s.idleTTL {
		s.Close(context.Background(), id)
		return nil, ErrSessionNotFound
	}

	session.touch(now)
	return session, nil
}

func (s *sessionService) Close(_ context.Context, id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	if ok {
		observability.ActiveSessions().Set(float64(count))
	}
	return ok
}

// EvictIdle drops every session idle for longer than the ttl.
func (s *sessionService) EvictIdle() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	evicted := 0
	for id, session := range s.sessions {
		if session.LastSeen().Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if evicted > 0 {
		observability.ActiveSessions().Set(float64(count))
		s.logger.Info().Int("evicted", evicted).Msg("idle sessions evicted")
	}
	return evicted
}

func (s *sessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run evicts idle sessions periodically until ctx is cancelled.
func (s *sessionService) Run(ctx context.Context) {
	interval := s.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle()
		}
	}
}
