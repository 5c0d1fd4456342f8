package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/i474232898/weather-map/internal/viewstate"
	"github.com/i474232898/weather-map/internal/weather"
)

type stubProvider struct{}

func (stubProvider) Resolve(context.Context, string) (weather.Coordinate, error) {
	return weather.Coordinate{}, weather.ErrCityNotFound
}

func (stubProvider) Fetch(_ context.Context, c weather.Coordinate) (weather.WeatherSnapshot, error) {
	return weather.WeatherSnapshot{Coordinate: c, CityName: "Johannesburg"}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(t *testing.T, maxSessions int, maxIdle time.Duration) (*MemoryStore, *clock) {
	t.Helper()
	factory := func(obs viewstate.Observer) *viewstate.Controller {
		return viewstate.New(stubProvider{}, stubProvider{}, weather.Coordinate{Lat: -26.1887, Lng: 28.0412}, viewstate.WithObserver(obs))
	}

	s := NewMemoryStore(context.Background(), factory, maxSessions, maxIdle)
	clk := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s.now = clk.now
	t.Cleanup(s.Close)
	return s, clk
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(t, 0, 0)

	sess := s.Create()
	got, err := s.Get(sess.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sess {
		t.Fatal("expected the same session back")
	}

	if _, err := got.Controller.State(context.Background()); err != nil {
		t.Fatalf("controller should be running: %v", err)
	}

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionCollectsAlerts(t *testing.T) {
	s, _ := newTestStore(t, 0, 0)
	sess := s.Create()

	err := sess.Controller.SubmitSearch(context.Background())
	if !errors.Is(err, weather.ErrCityNotFound) {
		t.Fatalf("expected ErrCityNotFound, got %v", err)
	}

	alerts := sess.DrainAlerts()
	if len(alerts) != 1 || alerts[0] != weather.NotFoundMessage {
		t.Fatalf("unexpected alerts %v", alerts)
	}
	if again := sess.DrainAlerts(); len(again) != 0 {
		t.Fatalf("alerts should be cleared after draining, got %v", again)
	}
}

func TestMaxSessionsEvictsLeastRecentlyUsed(t *testing.T) {
	s, clk := newTestStore(t, 2, 0)

	first := s.Create()
	clk.t = clk.t.Add(time.Minute)
	second := s.Create()
	clk.t = clk.t.Add(time.Minute)

	// Using first makes second the least recently used.
	if _, err := s.Get(first.ID); err != nil {
		t.Fatal(err)
	}
	clk.t = clk.t.Add(time.Minute)
	third := s.Create()

	if s.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", s.Len())
	}
	if _, err := s.Get(second.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second session to be evicted, got %v", err)
	}
	for _, sess := range []*Session{first, third} {
		if _, err := s.Get(sess.ID); err != nil {
			t.Fatalf("expected session %s to survive: %v", sess.ID, err)
		}
	}

	select {
	case <-second.Controller.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("evicted session's controller should stop")
	}
}

func TestPruneRemovesIdleSessions(t *testing.T) {
	s, clk := newTestStore(t, 0, 30*time.Minute)

	idle := s.Create()
	clk.t = clk.t.Add(20 * time.Minute)
	active := s.Create()
	clk.t = clk.t.Add(15 * time.Minute)

	if n := s.Prune(); n != 1 {
		t.Fatalf("expected 1 pruned session, got %d", n)
	}
	if _, err := s.Get(idle.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected idle session to be gone, got %v", err)
	}
	if _, err := s.Get(active.ID); err != nil {
		t.Fatalf("expected active session to survive: %v", err)
	}
}

func TestGetExpiresIdleSession(t *testing.T) {
	s, clk := newTestStore(t, 0, time.Minute)

	sess := s.Create()
	clk.t = clk.t.Add(2 * time.Minute)

	if _, err := s.Get(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected expired session to be removed, got %d", s.Len())
	}
}
