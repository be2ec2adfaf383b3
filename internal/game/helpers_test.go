package game

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recordedEvent struct {
	code         string
	connectionID string
	event        Event
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) Broadcast(code string, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{code: code, event: event})
}

func (b *recordingBroadcaster) Send(code, connectionID string, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{code: code, connectionID: connectionID, event: event})
}

func (b *recordingBroadcaster) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, recorded := range b.events {
		if recorded.event.Type == eventType {
			n++
		}
	}
	return n
}

func (b *recordingBroadcaster) last(eventType string) (recordedEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].event.Type == eventType {
			return b.events[i], true
		}
	}
	return recordedEvent{}, false
}

type testEnv struct {
	engine    *Engine
	events    *recordingBroadcaster
	questions *MemoryQuestions
	results   *MemoryResults
	store     *MemoryStore
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Clock = ClockHost
	opts.PrepareDuration = 0
	opts.ResultGrace = time.Hour
	opts.HostReconnectGrace = 0
	opts.FinalizeBackoff = time.Millisecond
	return opts
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		events:    &recordingBroadcaster{},
		questions: NewMemoryQuestions(),
		results:   NewMemoryResults(),
		store:     NewMemoryStore(),
	}
	env.engine = NewEngine(Deps{
		Store:       env.store,
		Questions:   env.questions,
		Results:     env.results,
		Stats:       env.results,
		Broadcaster: env.events,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, opts)
	t.Cleanup(env.engine.Close)
	return env
}

// testQuiz builds n questions whose correct answer is always "a".
func testQuiz(n, duration int) []Question {
	questions := make([]Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, Question{
			Text:     "question",
			Duration: duration,
			Answers: []Answer{
				{ID: "a", Text: "right", Correct: true},
				{ID: "b", Text: "wrong"},
			},
		})
	}
	return questions
}

func (env *testEnv) joinHost(t *testing.T, code string) HostAuth {
	t.Helper()
	res, err := env.engine.Join(context.Background(), JoinRequest{
		Code:         code,
		PlayerID:     "host",
		ConnectionID: "conn-host",
		Name:         "Host",
		ClaimHost:    true,
		AccountID:    "acct-host",
	})
	if err != nil {
		t.Fatalf("host join: %v", err)
	}
	if res.HostToken == "" {
		t.Fatalf("expected host token on claim")
	}
	return HostAuth{PlayerID: "host", Token: res.HostToken}
}

func (env *testEnv) joinPlayer(t *testing.T, code, id string) JoinResult {
	t.Helper()
	res, err := env.engine.Join(context.Background(), JoinRequest{
		Code:         code,
		PlayerID:     id,
		ConnectionID: "conn-" + id,
		Name:         id,
	})
	if err != nil {
		t.Fatalf("join %s: %v", id, err)
	}
	return res
}

func (env *testEnv) room(t *testing.T, code string) *Room {
	t.Helper()
	room, ok, err := env.store.Get(context.Background(), code)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if !ok {
		t.Fatalf("expected room %s to exist", code)
	}
	return room
}

func (env *testEnv) mustStep(t *testing.T, name string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
