// Package viewstate owns the view state of one map viewer: the current
// coordinate, the search text and the last weather snapshot.
//
// All state lives on a single event-loop goroutine started by Run. Geocoding
// and forecast calls run on their own goroutines and post their results back
// to the loop, so no state is ever touched concurrently.
package viewstate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/i474232898/weather-map/internal/weather"
)

var (
	// ErrStopped is returned when the controller's loop is no longer running.
	ErrStopped = errors.New("view state controller stopped")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("view state controller already running")
)

// Observer receives state changes. Methods are called from the loop
// goroutine and must not block.
type Observer interface {
	CoordinateChanged(coord weather.Coordinate)
	SnapshotChanged(snap weather.WeatherSnapshot)
	Alert(message string)
}

// State is a copy of the controller's view state.
type State struct {
	Coordinate weather.Coordinate
	MapCenter  weather.Coordinate
	Query      string
	// Snapshot is nil until the first successful fetch.
	Snapshot *weather.WeatherSnapshot
	// Generation increments on every coordinate change.
	Generation uint64
	// Pending is true while the fetch for the current generation is in flight.
	Pending bool
}

// Controller is the single owner of the view state.
type Controller struct {
	resolver     weather.Resolver
	fetcher      weather.Fetcher
	observers    []Observer
	fetchTimeout time.Duration

	events  chan func(ctx context.Context)
	done    chan struct{}
	started atomic.Bool

	// loop-owned
	state       State
	cancelFetch context.CancelFunc
}

// Option customizes a Controller.
type Option func(*Controller)

// WithObserver registers an observer for state changes.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o)
	}
}

// WithFetchTimeout bounds each resolver and fetcher call. Zero means no bound
// beyond the transport's own timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.fetchTimeout = d
	}
}

// New creates a Controller whose coordinate starts at initial. No fetch is
// issued until Run is called.
func New(resolver weather.Resolver, fetcher weather.Fetcher, initial weather.Coordinate, opts ...Option) *Controller {
	c := &Controller{
		resolver: resolver,
		fetcher:  fetcher,
		events:   make(chan func(ctx context.Context)),
		done:     make(chan struct{}),
		state: State{
			Coordinate: initial,
			MapCenter:  initial,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes events until ctx is cancelled. Starting the loop counts as the
// first coordinate change, so the initial location is fetched immediately.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)

	c.setCoordinate(ctx, c.state.Coordinate)

	for {
		select {
		case <-ctx.Done():
			if c.cancelFetch != nil {
				c.cancelFetch()
			}
			return nil
		case fn := <-c.events:
			fn(ctx)
		}
	}
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// SetQuery replaces the search text. It never triggers a fetch.
func (c *Controller) SetQuery(ctx context.Context, query string) error {
	return c.call(ctx, func(context.Context) {
		c.state.Query = query
	})
}

// DragEnd moves the marker to coord without consulting the resolver.
func (c *Controller) DragEnd(ctx context.Context, coord weather.Coordinate) error {
	if err := coord.Validate(); err != nil {
		return fmt.Errorf("invalid coordinate: %w", err)
	}
	return c.call(ctx, func(loopCtx context.Context) {
		c.setCoordinate(loopCtx, coord)
	})
}

// SubmitSearch resolves the current search text and, on success, makes the
// match the current coordinate. It waits for the lookup to finish and returns
// its outcome: nil, weather.ErrCityNotFound or a *weather.TransportError. In
// the failure cases the view state is left as it was; a not-found outcome is
// also reported to observers as an alert.
func (c *Controller) SubmitSearch(ctx context.Context) error {
	outcome := make(chan error, 1)

	err := c.post(ctx, func(loopCtx context.Context) {
		query := c.state.Query
		go c.resolve(loopCtx, query, outcome)
	})
	if err != nil {
		return err
	}

	select {
	case err := <-outcome:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// State returns a copy of the current view state.
func (c *Controller) State(ctx context.Context) (State, error) {
	var st State
	err := c.call(ctx, func(context.Context) {
		st = c.state
		if c.state.Snapshot != nil {
			snap := *c.state.Snapshot
			st.Snapshot = &snap
		}
	})
	return st, err
}

func (c *Controller) resolve(loopCtx context.Context, query string, outcome chan<- error) {
	rctx, cancel := c.callContext(loopCtx)
	coord, err := c.resolver.Resolve(rctx, query)
	cancel()

	posted := c.post(loopCtx, func(loopCtx context.Context) {
		switch {
		case err == nil:
			c.setCoordinate(loopCtx, coord)
		case errors.Is(err, weather.ErrCityNotFound):
			log.Printf("INFO: no match for search %q", query)
			for _, o := range c.observers {
				o.Alert(weather.NotFoundMessage)
			}
		default:
			log.Printf("ERROR: search for %q failed: %v", query, err)
		}
		outcome <- err
	})
	if posted != nil {
		outcome <- posted
	}
}

// setCoordinate replaces the coordinate and starts exactly one fetch for it.
// Any fetch still in flight for an older coordinate is cancelled and its result
// will be discarded.
func (c *Controller) setCoordinate(loopCtx context.Context, coord weather.Coordinate) {
	if c.cancelFetch != nil {
		c.cancelFetch()
	}

	c.state.Coordinate = coord
	c.state.MapCenter = coord
	c.state.Generation++
	c.state.Pending = true
	gen := c.state.Generation

	for _, o := range c.observers {
		o.CoordinateChanged(coord)
	}

	fctx, cancel := c.callContext(loopCtx)
	c.cancelFetch = cancel

	go func() {
		snap, err := c.fetcher.Fetch(fctx, coord)
		cancel()
		_ = c.post(loopCtx, func(context.Context) {
			c.applyFetch(gen, snap, err)
		})
	}()
}

func (c *Controller) applyFetch(gen uint64, snap weather.WeatherSnapshot, err error) {
	if gen != c.state.Generation {
		log.Printf("DEBUG: discarding weather for superseded generation %d (current %d)", gen, c.state.Generation)
		return
	}

	c.state.Pending = false
	c.cancelFetch = nil

	if err != nil {
		log.Printf("ERROR: weather fetch failed for %.4f,%.4f; keeping last snapshot: %v",
			c.state.Coordinate.Lat, c.state.Coordinate.Lng, err)
		return
	}

	c.state.Snapshot = &snap
	for _, o := range c.observers {
		o.SnapshotChanged(snap)
	}
}

func (c *Controller) callContext(loopCtx context.Context) (context.Context, context.CancelFunc) {
	if c.fetchTimeout > 0 {
		return context.WithTimeout(loopCtx, c.fetchTimeout)
	}
	return context.WithCancel(loopCtx)
}

// post hands fn to the loop without waiting for it to run.
func (c *Controller) post(ctx context.Context, fn func(context.Context)) error {
	select {
	case c.events <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// call runs fn on the loop and waits for it to finish.
func (c *Controller) call(ctx context.Context, fn func(context.Context)) error {
	finished := make(chan struct{})
	err := c.post(ctx, func(loopCtx context.Context) {
		defer close(finished)
		fn(loopCtx)
	})
	if err != nil {
		return err
	}

	// fn runs synchronously on the loop once accepted.
	<-finished
	return nil
}
