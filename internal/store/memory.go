package store

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-map/internal/viewstate"
	"github.com/i474232898/weather-map/internal/weather"
)

var (
	// ErrNotFound is returned when no live session exists for an ID.
	ErrNotFound = errors.New("session not found")
)

// ControllerFactory builds the view state controller for a new session.
// The observer must be registered on the returned controller.
type ControllerFactory func(obs viewstate.Observer) *viewstate.Controller

// Session is one browser's view of the map. It owns a running controller and
// buffers alerts raised by it until the client collects them.
type Session struct {
	ID         string
	Controller *viewstate.Controller

	cancel context.CancelFunc

	mu       sync.Mutex
	alerts   []string
	lastSeen time.Time
}

func (s *Session) CoordinateChanged(weather.Coordinate) {}

func (s *Session) SnapshotChanged(weather.WeatherSnapshot) {}

// Alert queues a user-facing message.
func (s *Session) Alert(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, message)
}

// DrainAlerts returns and clears the queued alerts.
func (s *Session) DrainAlerts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.alerts
	s.alerts = nil
	return out
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) seen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// MemoryStore is a concurrency-safe in-memory registry of sessions.
type MemoryStore struct {
	mu sync.RWMutex

	// key: session id
	data map[string]*Session

	newController ControllerFactory
	baseCtx       context.Context
	now           func() time.Time

	// retention configuration
	maxSessions int           // max number of live sessions
	maxIdle     time.Duration // max time since a session was last used
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxSessions or maxIdle is <= 0, it is treated as unlimited.
// Session loops run until ctx is cancelled or the session is evicted.
func NewMemoryStore(ctx context.Context, factory ControllerFactory, maxSessions int, maxIdle time.Duration) *MemoryStore {
	return &MemoryStore{
		data:          make(map[string]*Session),
		newController: factory,
		baseCtx:       ctx,
		now:           time.Now,
		maxSessions:   maxSessions,
		maxIdle:       maxIdle,
	}
}

// Create starts a new session with a fresh controller and enforces the
// session count limit by evicting the least recently used sessions.
func (s *MemoryStore) Create() *Session {
	sess := &Session{ID: uuid.NewString(), lastSeen: s.now()}
	sess.Controller = s.newController(sess)

	ctx, cancel := context.WithCancel(s.baseCtx)
	sess.cancel = cancel
	go func() {
		if err := sess.Controller.Run(ctx); err != nil {
			log.Printf("ERROR: session %s controller stopped: %v", sess.ID, err)
		}
	}()

	s.mu.Lock()
	s.data[sess.ID] = sess
	evicted := s.enforceLimitLocked(sess.ID)
	s.mu.Unlock()

	for _, old := range evicted {
		old.cancel()
	}
	return sess
}

// Get returns the live session for id and marks it as used.
func (s *MemoryStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	now := s.now()
	if s.maxIdle > 0 && now.Sub(sess.seen()) > s.maxIdle {
		s.remove(id)
		return nil, ErrNotFound
	}

	sess.touch(now)
	return sess, nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Prune stops and removes every session idle for longer than maxIdle.
// It returns the number of sessions removed.
func (s *MemoryStore) Prune() int {
	if s.maxIdle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.maxIdle)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.data {
		if sess.seen().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.data, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.cancel()
	}
	return len(expired)
}

// Close stops every session.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	sessions := s.data
	s.data = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.cancel()
	}
}

func (s *MemoryStore) remove(id string) {
	s.mu.Lock()
	sess, ok := s.data[id]
	delete(s.data, id)
	s.mu.Unlock()
	if ok {
		sess.cancel()
	}
}

// enforceLimitLocked evicts the least recently used sessions other than keep.
func (s *MemoryStore) enforceLimitLocked(keep string) []*Session {
	if s.maxSessions <= 0 || len(s.data) <= s.maxSessions {
		return nil
	}

	all := make([]*Session, 0, len(s.data))
	for id, sess := range s.data {
		if id != keep {
			all = append(all, sess)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seen().Before(all[j].seen()) })

	over := len(s.data) - s.maxSessions
	evicted := all[:over]
	for _, sess := range evicted {
		delete(s.data, sess.ID)
	}
	return evicted
}
