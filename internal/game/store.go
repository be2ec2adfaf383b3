package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// RoomStore holds ephemeral room state. Implementations may live behind the
// network; Save must reject a room whose Version no longer matches the stored
// one with ErrVersionConflict and bump Version on success.
type RoomStore interface {
	Get(ctx context.Context, code string) (*Room, bool, error)
	Save(ctx context.Context, room *Room) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]string, error)
}

// MemoryStore keeps encoded copies so callers never share a *Room.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]memoryEntry
}

type memoryEntry struct {
	version int64
	data    []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, code string) (*Room, bool, error) {
	s.mu.Lock()
	entry, ok := s.rooms[code]
	s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var room Room
	if err := json.Unmarshal(entry.data, &room); err != nil {
		return nil, false, fmt.Errorf("decode room %s: %w", code, err)
	}
	normalizeRoom(&room)
	return &room, true, nil
}

func (s *MemoryStore) Save(_ context.Context, room *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rooms[room.Code]
	if ok && current.version != room.Version {
		return ErrVersionConflict
	}
	if !ok && room.Version != 0 {
		return ErrVersionConflict
	}
	next := room.Version + 1
	room.Version = next
	data, err := json.Marshal(room)
	if err != nil {
		room.Version = next - 1
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}
	s.rooms[room.Code] = memoryEntry{version: next, data: data}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

// normalizeRoom restores the nil-able collections a decoder may leave empty.
func normalizeRoom(room *Room) {
	if room.Players == nil {
		room.Players = make(map[string]*Player)
	}
	if room.Viewers == nil {
		room.Viewers = make(map[string]struct{})
	}
	for _, player := range room.Players {
		if player.Answers == nil {
			player.Answers = make(map[int]PlayerAnswer)
		}
	}
}

// DecodeRoom is used by stores that keep rooms as JSON documents.
func DecodeRoom(data []byte) (*Room, error) {
	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	normalizeRoom(&room)
	return &room, nil
}

// roomLocks serializes read-modify-write cycles per game code inside one
// process. Entries are reference counted and dropped when unused.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*roomLock)}
}

func (l *roomLocks) lock(code string) func() {
	l.mu.Lock()
	entry, ok := l.locks[code]
	if !ok {
		entry = &roomLock{}
		l.locks[code] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, code)
		}
		l.mu.Unlock()
	}
}

func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
