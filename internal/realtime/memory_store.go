package realtime

import (
	"context"
	"sync"
)

// MemoryStore keeps rooms in process memory. State is lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
	conns map[string]Membership
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*Room),
		conns: make(map[string]Membership),
	}
}

func (s *MemoryStore) Room(_ context.Context, roomID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, nil
	}
	return r.clone(), nil
}

func (s *MemoryStore) Membership(_ context.Context, connID string) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.conns[connID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MemoryStore) Mutate(_ context.Context, roomID string, fn func(room *Room) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.rooms[roomID]
	work := &Room{ID: roomID}
	if before != nil {
		work = before.clone()
	}
	if err := fn(work); err != nil {
		return err
	}

	added, removed := diffMembers(before, work)
	for _, id := range removed {
		delete(s.conns, id)
	}
	for _, p := range added {
		s.conns[p.ID] = Membership{ConnID: p.ID, RoomID: roomID, DisplayName: p.DisplayName}
	}
	if len(work.Participants) == 0 {
		delete(s.rooms, roomID)
		return nil
	}
	s.rooms[roomID] = work
	return nil
}

// Len returns the number of live rooms.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
