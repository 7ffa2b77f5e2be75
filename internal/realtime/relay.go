package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

// Transport delivers room events to connections. Hub is the production implementation.
type Transport interface {
	Attach(roomID, connID string)
	Detach(roomID, connID string)
	SendTo(roomID, connID, event string, payload interface{})
	Broadcast(roomID, exceptConnID, event string, payload interface{})
}

// Relay turns inbound client events into registry updates and outbound deliveries.
// Events from a connection that has not joined a room are dropped.
type Relay struct {
	registry  *Registry
	transport Transport
	logger    *zap.Logger
}

// NewRelay creates a relay.
func NewRelay(registry *Registry, transport Transport, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{registry: registry, transport: transport, logger: logger}
}

// Handle processes one inbound message from connID.
func (rl *Relay) Handle(ctx context.Context, connID string, msg WSMessage) {
	switch msg.Event {
	case EventJoin:
		var p joinPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			rl.logger.Debug("bad join payload", zap.String("conn_id", connID), zap.Error(err))
			return
		}
		rl.Join(ctx, connID, p.RoomID, p.DisplayName)
	case EventLeave:
		rl.Leave(ctx, connID)
	case EventICECandidate:
		var p iceIn
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		rl.forward(ctx, connID, p.TargetID, EventICECandidate, iceOut{FromID: connID, Candidate: p.Candidate})
	case EventSessionDescription:
		var p sdpIn
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		rl.forward(ctx, connID, p.TargetID, EventSessionDescription, sdpOut{FromID: connID, SDP: p.SDP})
	case EventChatMessage, EventReaction:
		if roomID := rl.roomOf(ctx, connID); roomID != "" {
			rl.transport.Broadcast(roomID, connID, msg.Event, msg.Data)
		}
	case EventRaiseHand, EventLowerHand:
		rl.hand(ctx, connID, msg)
	case EventMuteAll:
		roomID, err := rl.registry.MuteOthers(ctx, connID)
		if err != nil {
			rl.logFailure(msg.Event, connID, err)
			return
		}
		rl.transport.Broadcast(roomID, connID, EventMuteAll, muteAllPayload{FromID: connID})
	case EventStartScreenShare:
		rl.startShare(ctx, connID)
	case EventStopScreenShare:
		roomID, stopped, err := rl.registry.StopShare(ctx, connID)
		if err != nil {
			rl.logFailure(msg.Event, connID, err)
			return
		}
		if stopped {
			rl.transport.Broadcast(roomID, "", EventStopScreenShare, sharePayload{FromID: connID})
		}
	default:
		rl.logger.Debug("unknown event", zap.String("conn_id", connID), zap.String("event", msg.Event))
	}
}

// Join registers connID in roomID, tells existing participants about the newcomer and sends the
// newcomer the list of participants already present.
func (rl *Relay) Join(ctx context.Context, connID, roomID, displayName string) {
	existing, err := rl.registry.Join(ctx, connID, roomID, displayName)
	if err != nil {
		rl.logFailure(EventJoin, connID, err)
		return
	}
	m, err := rl.registry.Membership(ctx, connID)
	if err != nil || m == nil {
		rl.logFailure(EventJoin, connID, err)
		return
	}
	rl.transport.Attach(m.RoomID, connID)

	newcomer := Participant{ID: connID, DisplayName: m.DisplayName}
	for _, p := range existing {
		rl.transport.SendTo(m.RoomID, p.ID, EventNewParticipant, newcomer)
	}
	rl.transport.SendTo(m.RoomID, connID, EventExistingParticipants, existing)
	rl.logger.Info("participant joined",
		zap.String("conn_id", connID),
		zap.String("room_id", m.RoomID),
		zap.Int("participants", len(existing)+1),
	)
}

// Leave removes connID from its room and notifies the rest of the room. Safe to call for
// connections that never joined.
func (rl *Relay) Leave(ctx context.Context, connID string) {
	d, err := rl.registry.Leave(ctx, connID)
	if err != nil {
		rl.logFailure(EventLeave, connID, err)
		return
	}
	if d == nil {
		return
	}
	if d.ClearedShare {
		rl.transport.Broadcast(d.RoomID, connID, EventStopScreenShare, sharePayload{FromID: connID})
	}
	rl.transport.Broadcast(d.RoomID, connID, EventUserLeft, userLeftPayload{ID: connID})
	rl.transport.Detach(d.RoomID, connID)
	rl.logger.Info("participant left",
		zap.String("conn_id", connID),
		zap.String("room_id", d.RoomID),
		zap.Bool("room_closed", d.RoomClosed),
	)
}

func (rl *Relay) startShare(ctx context.Context, connID string) {
	roomID, granted, err := rl.registry.StartShare(ctx, connID)
	if err != nil {
		rl.logFailure(EventStartScreenShare, connID, err)
		return
	}
	if !granted {
		rl.transport.SendTo(roomID, connID, EventScreenShareDenied, deniedPayload{Reason: ReasonShareTaken})
		return
	}
	sharer := connID
	rl.transport.Broadcast(roomID, "", EventStartScreenShare, sharePayload{FromID: connID, SharerID: &sharer})
}

func (rl *Relay) hand(ctx context.Context, connID string, msg WSMessage) {
	var p handPayload
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			rl.logger.Debug("bad hand payload", zap.String("conn_id", connID), zap.Error(err))
			return
		}
	}
	if p.UserID == "" {
		p.UserID = connID
	}
	roomID, err := rl.registry.SetHand(ctx, connID, p.UserID, msg.Event == EventRaiseHand)
	if err != nil {
		rl.logFailure(msg.Event, connID, err)
		return
	}
	rl.transport.Broadcast(roomID, connID, msg.Event, p)
}

// forward delivers a signaling payload to targetID only when both ends share a room.
func (rl *Relay) forward(ctx context.Context, fromID, targetID, event string, payload interface{}) {
	if targetID == "" || targetID == fromID {
		return
	}
	from, err := rl.registry.Membership(ctx, fromID)
	if err != nil || from == nil {
		return
	}
	to, err := rl.registry.Membership(ctx, targetID)
	if err != nil || to == nil || to.RoomID != from.RoomID {
		rl.logger.Debug("signaling target not in room",
			zap.String("event", event),
			zap.String("from", fromID),
			zap.String("target", targetID),
		)
		return
	}
	rl.transport.SendTo(from.RoomID, targetID, event, payload)
}

func (rl *Relay) roomOf(ctx context.Context, connID string) string {
	m, err := rl.registry.Membership(ctx, connID)
	if err != nil || m == nil {
		return ""
	}
	return m.RoomID
}

func (rl *Relay) logFailure(event, connID string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrNotJoined), errors.Is(err, ErrAlreadyJoined), errors.Is(err, ErrInvalidJoin), errors.Is(err, ErrNotParticipant):
		rl.logger.Debug("event ignored", zap.String("event", event), zap.String("conn_id", connID), zap.Error(err))
	default:
		rl.logger.Error("event failed", zap.String("event", event), zap.String("conn_id", connID), zap.Error(err))
	}
}
