package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type ClockMode string

const (
	// ClockServer runs the question countdown inside the engine.
	ClockServer ClockMode = "server"
	// ClockHost relays ticks sent by the verified host connection.
	ClockHost ClockMode = "host"
)

type Options struct {
	Clock                  ClockMode
	PrepareDuration        time.Duration
	TickInterval           time.Duration
	DefaultQuestionSeconds int
	ResultGrace            time.Duration
	HostReconnectGrace     time.Duration
	StaleRoomAfter         time.Duration
	SweepInterval          time.Duration
	FinalizeAttempts       int
	FinalizeBackoff        time.Duration
	UpdateAttempts         int
}

func DefaultOptions() Options {
	return Options{
		Clock:                  ClockServer,
		PrepareDuration:        3 * time.Second,
		TickInterval:           time.Second,
		DefaultQuestionSeconds: 20,
		ResultGrace:            time.Minute,
		HostReconnectGrace:     2 * time.Minute,
		StaleRoomAfter:         2 * time.Hour,
		SweepInterval:          10 * time.Minute,
		FinalizeAttempts:       3,
		FinalizeBackoff:        500 * time.Millisecond,
		UpdateAttempts:         5,
	}
}

type Deps struct {
	Store       RoomStore
	Questions   QuestionSource
	Results     ResultSink
	Stats       StatsRecorder
	Broadcaster Broadcaster
	Logger      *slog.Logger
}

// Engine owns every mutation of room state. All writes go through update,
// which serializes them per game code.
type Engine struct {
	store       RoomStore
	questions   QuestionSource
	results     ResultSink
	stats       StatsRecorder
	broadcaster Broadcaster
	logger      *slog.Logger
	opts        Options
	locks       *roomLocks
	timers      *timerRegistry
	now         func() time.Time

	finalizingMu sync.Mutex
	finalizing   map[string]struct{}
}

func NewEngine(deps Deps, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.Clock == "" {
		opts.Clock = defaults.Clock
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaults.TickInterval
	}
	if opts.DefaultQuestionSeconds <= 0 {
		opts.DefaultQuestionSeconds = defaults.DefaultQuestionSeconds
	}
	if opts.FinalizeAttempts <= 0 {
		opts.FinalizeAttempts = defaults.FinalizeAttempts
	}
	if opts.UpdateAttempts <= 0 {
		opts.UpdateAttempts = defaults.UpdateAttempts
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaults.SweepInterval
	}
	e := &Engine{
		store:       deps.Store,
		questions:   deps.Questions,
		results:     deps.Results,
		stats:       deps.Stats,
		broadcaster: deps.Broadcaster,
		logger:      deps.Logger,
		opts:        opts,
		locks:       newRoomLocks(),
		timers:      newTimerRegistry(),
		now:         func() time.Time { return time.Now().UTC() },
		finalizing:  make(map[string]struct{}),
	}
	if e.store == nil {
		e.store = NewMemoryStore()
	}
	if e.questions == nil {
		e.questions = NewMemoryQuestions()
	}
	if e.results == nil || e.stats == nil {
		mem := NewMemoryResults()
		if e.results == nil {
			e.results = mem
		}
		if e.stats == nil {
			e.stats = mem
		}
	}
	if e.broadcaster == nil {
		e.broadcaster = nopBroadcaster{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

func (e *Engine) Options() Options {
	return e.opts
}

// Run sweeps stale rooms until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepStaleRooms(ctx)
		}
	}
}

// Close stops every pending timer and question clock.
func (e *Engine) Close() {
	e.timers.stopAll()
}

var errNoChange = errors.New("no change")

// mutation collects the side effects of one update. They run after the
// room lock is released.
type mutation struct {
	code       string
	events     []Event
	direct     []directEvent
	after      []func()
	deleteRoom bool
}

type directEvent struct {
	connectionID string
	event        Event
}

func (m *mutation) broadcast(eventType string, payload any) {
	m.events = append(m.events, Event{Type: eventType, Payload: payload})
}

func (m *mutation) send(connectionID string, eventType string, payload any) {
	if connectionID == "" {
		return
	}
	m.direct = append(m.direct, directEvent{
		connectionID: connectionID,
		event:        Event{Type: eventType, Payload: payload},
	})
}

func (m *mutation) then(fn func()) {
	m.after = append(m.after, fn)
}

func (e *Engine) update(ctx context.Context, code string, create bool, fn func(room *Room, m *mutation) error) (*Room, error) {
	unlock := e.locks.lock(code)
	var (
		room *Room
		m    *mutation
		err  error
	)
	for attempt := 0; attempt < e.opts.UpdateAttempts; attempt++ {
		room, m, err = e.tryUpdate(ctx, code, create, fn)
		if !errors.Is(err, ErrVersionConflict) {
			break
		}
		e.logger.Debug("room version conflict", "code", code, "attempt", attempt+1)
	}
	unlock()
	if err != nil {
		return nil, err
	}
	e.flush(m)
	return room, nil
}

func (e *Engine) tryUpdate(ctx context.Context, code string, create bool, fn func(room *Room, m *mutation) error) (*Room, *mutation, error) {
	room, ok, err := e.store.Get(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("load room %s: %w", code, err)
	}
	if !ok {
		if !create {
			return nil, nil, ErrRoomNotFound
		}
		room = newRoom(code, e.now())
		e.logger.Info("room created", "code", code)
	}
	m := &mutation{code: code}
	if err := fn(room, m); err != nil {
		if errors.Is(err, errNoChange) {
			return room, m, nil
		}
		return nil, nil, err
	}
	if m.deleteRoom {
		if err := e.store.Delete(ctx, code); err != nil {
			return nil, nil, fmt.Errorf("delete room %s: %w", code, err)
		}
		return room, m, nil
	}
	room.UpdatedAt = e.now()
	if err := e.store.Save(ctx, room); err != nil {
		return nil, nil, err
	}
	return room, m, nil
}

func (e *Engine) flush(m *mutation) {
	if m == nil {
		return
	}
	if m.deleteRoom {
		e.timers.cancelRoom(m.code)
		e.logger.Info("room deleted", "code", m.code)
	}
	for _, event := range m.events {
		e.broadcaster.Broadcast(m.code, event)
	}
	for _, direct := range m.direct {
		e.broadcaster.Send(m.code, direct.connectionID, direct.event)
	}
	for _, fn := range m.after {
		fn()
	}
}

// Snapshot returns the public view of a room.
func (e *Engine) Snapshot(ctx context.Context, code string) (Snapshot, bool, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return Snapshot{}, false, err
	}
	room, ok, err := e.store.Get(ctx, code)
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	return snapshot(room), true, nil
}

// Result returns the durable result for a code, if one was stored.
func (e *Engine) Result(ctx context.Context, code string) (*Result, bool, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, false, err
	}
	return e.results.LoadResult(ctx, code)
}

// CreateRoom allocates an unused code and stores an empty lobby for it.
func (e *Engine) CreateRoom(ctx context.Context) (Snapshot, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code := NewCode()
		_, exists, err := e.store.Get(ctx, code)
		if err != nil {
			return Snapshot{}, err
		}
		if exists {
			continue
		}
		room, err := e.update(ctx, code, true, func(room *Room, m *mutation) error {
			if room.Version != 0 {
				return ErrInvalidState
			}
			return nil
		})
		if errors.Is(err, ErrInvalidState) {
			continue
		}
		if err != nil {
			return Snapshot{}, err
		}
		return snapshot(room), nil
	}
	return Snapshot{}, errors.New("failed to generate unique game code")
}

func (e *Engine) sweepStaleRooms(ctx context.Context) {
	if e.opts.StaleRoomAfter <= 0 {
		return
	}
	codes, err := e.store.List(ctx)
	if err != nil {
		e.logger.Error("list rooms failed", "error", err)
		return
	}
	cutoff := e.now().Add(-e.opts.StaleRoomAfter)
	for _, code := range codes {
		_, err := e.update(ctx, code, false, func(room *Room, m *mutation) error {
			if room.connectedCount() > 0 || room.UpdatedAt.After(cutoff) {
				return errNoChange
			}
			m.deleteRoom = true
			return nil
		})
		if err != nil && !errors.Is(err, ErrRoomNotFound) {
			e.logger.Warn("stale room sweep failed", "code", code, "error", err)
		}
	}
}
