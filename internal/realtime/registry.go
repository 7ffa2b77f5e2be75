package realtime

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidJoin is returned when a join lacks a room id or display name.
	ErrInvalidJoin = errors.New("room id and display name required")
	// ErrAlreadyJoined is returned when a connection joins a second room.
	ErrAlreadyJoined = errors.New("connection already in a room")
	// ErrNotJoined is returned for room operations from a connection without a room.
	ErrNotJoined = errors.New("connection not in a room")
	// ErrNotParticipant is returned when an event names a user outside the sender's room.
	ErrNotParticipant = errors.New("user not in room")
	// ErrContention is returned when a shared store keeps losing optimistic transactions.
	ErrContention = errors.New("room update contention")

	// errSkip aborts a Mutate without writing anything.
	errSkip = errors.New("skip mutation")
)

// Participant is one live connection inside a room.
type Participant struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	ScreenSharing bool   `json:"screenSharing,omitempty"`
	HandRaised    bool   `json:"handRaised,omitempty"`
	Muted         bool   `json:"muted,omitempty"`
}

// Room is an active session. Participants are kept in join order.
type Room struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	SharerID     string        `json:"sharerId,omitempty"`
}

// Membership is the reverse entry for a connection.
type Membership struct {
	ConnID      string `json:"connId"`
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

func (r *Room) index(connID string) int {
	for i := range r.Participants {
		if r.Participants[i].ID == connID {
			return i
		}
	}
	return -1
}

// Has reports whether connID is a participant.
func (r *Room) Has(connID string) bool {
	return r.index(connID) >= 0
}

func (r *Room) clone() *Room {
	out := &Room{ID: r.ID, SharerID: r.SharerID}
	out.Participants = append([]Participant(nil), r.Participants...)
	return out
}

func (r *Room) snapshot() []Participant {
	out := make([]Participant, len(r.Participants))
	copy(out, r.Participants)
	return out
}

// Store persists rooms and reverse entries. Mutate is the only write path: fn runs against a working
// copy of the room (empty when absent) and the store then applies the participant diff to the reverse
// map and drops the room if it is left empty, all as one atomic step. fn may be retried.
type Store interface {
	Room(ctx context.Context, roomID string) (*Room, error)
	Membership(ctx context.Context, connID string) (*Membership, error)
	Mutate(ctx context.Context, roomID string, fn func(room *Room) error) error
}

// diffMembers returns the participants added and the connection ids removed between two room states.
func diffMembers(before, after *Room) (added []Participant, removed []string) {
	prev := map[string]bool{}
	if before != nil {
		for _, p := range before.Participants {
			prev[p.ID] = true
		}
	}
	next := map[string]bool{}
	for _, p := range after.Participants {
		next[p.ID] = true
		if !prev[p.ID] {
			added = append(added, p)
		}
	}
	for id := range prev {
		if !next[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// Registry implements room membership and screen-share arbitration on top of a Store.
type Registry struct {
	store Store
}

// NewRegistry creates a registry backed by store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Departure describes the effect of a leave.
type Departure struct {
	RoomID       string
	Participant  Participant
	Remaining    []Participant
	ClearedShare bool
	RoomClosed   bool
}

// Join inserts connID into roomID, creating the room if needed, and returns the participants that were
// present immediately before the insertion.
func (r *Registry) Join(ctx context.Context, connID, roomID, displayName string) ([]Participant, error) {
	roomID = strings.TrimSpace(roomID)
	displayName = strings.TrimSpace(displayName)
	if connID == "" || roomID == "" || displayName == "" {
		return nil, ErrInvalidJoin
	}
	m, err := r.store.Membership(ctx, connID)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return nil, ErrAlreadyJoined
	}

	var existing []Participant
	err = r.store.Mutate(ctx, roomID, func(room *Room) error {
		if room.Has(connID) {
			return ErrAlreadyJoined
		}
		existing = room.snapshot()
		room.Participants = append(room.Participants, Participant{ID: connID, DisplayName: displayName})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// Leave removes connID from its room. It returns nil when the connection is not in a room.
func (r *Registry) Leave(ctx context.Context, connID string) (*Departure, error) {
	m, err := r.store.Membership(ctx, connID)
	if err != nil || m == nil {
		return nil, err
	}
	var d *Departure
	err = r.store.Mutate(ctx, m.RoomID, func(room *Room) error {
		i := room.index(connID)
		if i < 0 {
			return errSkip
		}
		d = &Departure{RoomID: room.ID, Participant: room.Participants[i]}
		room.Participants = append(room.Participants[:i], room.Participants[i+1:]...)
		if room.SharerID == connID {
			room.SharerID = ""
			d.ClearedShare = true
		}
		d.Remaining = room.snapshot()
		d.RoomClosed = len(room.Participants) == 0
		return nil
	})
	if errors.Is(err, errSkip) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// StartShare claims the room's screen-share slot for connID. granted is false when another
// participant holds it. Re-claiming an owned slot is granted.
func (r *Registry) StartShare(ctx context.Context, connID string) (roomID string, granted bool, err error) {
	m, err := r.membership(ctx, connID)
	if err != nil {
		return "", false, err
	}
	err = r.store.Mutate(ctx, m.RoomID, func(room *Room) error {
		i := room.index(connID)
		if i < 0 {
			return ErrNotJoined
		}
		if room.SharerID != "" && room.SharerID != connID {
			granted = false
			return errSkip
		}
		room.SharerID = connID
		room.Participants[i].ScreenSharing = true
		granted = true
		return nil
	})
	if errors.Is(err, errSkip) {
		err = nil
	}
	return m.RoomID, granted, err
}

// StopShare releases the slot if connID holds it. stopped is false otherwise.
func (r *Registry) StopShare(ctx context.Context, connID string) (roomID string, stopped bool, err error) {
	m, err := r.membership(ctx, connID)
	if err != nil {
		return "", false, err
	}
	err = r.store.Mutate(ctx, m.RoomID, func(room *Room) error {
		if room.SharerID != connID {
			return errSkip
		}
		room.SharerID = ""
		if i := room.index(connID); i >= 0 {
			room.Participants[i].ScreenSharing = false
		}
		stopped = true
		return nil
	})
	if errors.Is(err, errSkip) {
		err = nil
	}
	return m.RoomID, stopped, err
}

// SetHand records the hand-raised flag of targetID (connID when empty) if it is in connID's room.
func (r *Registry) SetHand(ctx context.Context, connID, targetID string, raised bool) (roomID string, err error) {
	m, err := r.membership(ctx, connID)
	if err != nil {
		return "", err
	}
	if targetID == "" {
		targetID = connID
	}
	err = r.store.Mutate(ctx, m.RoomID, func(room *Room) error {
		i := room.index(targetID)
		if i < 0 {
			return ErrNotParticipant
		}
		if room.Participants[i].HandRaised == raised {
			return errSkip
		}
		room.Participants[i].HandRaised = raised
		return nil
	})
	if errors.Is(err, errSkip) {
		err = nil
	}
	return m.RoomID, err
}

// MuteOthers marks every participant except connID as muted.
func (r *Registry) MuteOthers(ctx context.Context, connID string) (roomID string, err error) {
	m, err := r.membership(ctx, connID)
	if err != nil {
		return "", err
	}
	err = r.store.Mutate(ctx, m.RoomID, func(room *Room) error {
		if !room.Has(connID) {
			return errSkip
		}
		for i := range room.Participants {
			if room.Participants[i].ID != connID {
				room.Participants[i].Muted = true
			}
		}
		return nil
	})
	if errors.Is(err, errSkip) {
		err = nil
	}
	return m.RoomID, err
}

// Room returns a room or nil when it does not exist.
func (r *Registry) Room(ctx context.Context, roomID string) (*Room, error) {
	return r.store.Room(ctx, roomID)
}

// Membership returns the reverse entry for connID or nil.
func (r *Registry) Membership(ctx context.Context, connID string) (*Membership, error) {
	return r.store.Membership(ctx, connID)
}

func (r *Registry) membership(ctx context.Context, connID string) (*Membership, error) {
	m, err := r.store.Membership(ctx, connID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotJoined
	}
	return m, nil
}
