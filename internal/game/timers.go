package game

import (
	"strings"
	"sync"
	"time"
)

const (
	timerPrepare = "prepare"
	timerClock   = "clock"
	timerCleanup = "cleanup"
	timerHost    = "host"
)

func timerKey(code, kind string) string {
	return code + "/" + kind
}

type timerEntry struct {
	id   uint64
	stop func()
}

// timerRegistry tracks the delayed work of every room so it can be
// replaced or cancelled by key.
type timerRegistry struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[string]timerEntry
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{entries: make(map[string]timerEntry)}
}

// schedule runs fn once after d, replacing any timer under the same key.
func (t *timerRegistry) schedule(key string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[key]; ok {
		existing.stop()
	}
	t.nextID++
	id := t.nextID
	timer := time.AfterFunc(d, func() {
		t.release(key, id)
		fn()
	})
	t.entries[key] = timerEntry{id: id, stop: func() { timer.Stop() }}
}

// every calls fn each interval until fn returns false or the key is
// cancelled.
func (t *timerRegistry) every(key string, interval time.Duration, fn func() bool) {
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	t.mu.Lock()
	if existing, ok := t.entries[key]; ok {
		existing.stop()
	}
	t.nextID++
	id := t.nextID
	t.entries[key] = timerEntry{id: id, stop: stop}
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer t.release(key, id)
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !fn() {
					return
				}
			}
		}
	}()
}

func (t *timerRegistry) release(key string, id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[key]; ok && entry.id == id {
		delete(t.entries, key)
	}
}

func (t *timerRegistry) cancel(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[key]; ok {
		entry.stop()
		delete(t.entries, key)
	}
}

func (t *timerRegistry) cancelRoom(code string) {
	prefix := code + "/"
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, entry := range t.entries {
		if strings.HasPrefix(key, prefix) {
			entry.stop()
			delete(t.entries, key)
		}
	}
}

func (t *timerRegistry) pending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

func (t *timerRegistry) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, entry := range t.entries {
		entry.stop()
		delete(t.entries, key)
	}
}
