// Package rooms owns room membership and signaling relay for the
// realtime channel. A room is an ephemeral named group of connections
// for one scheduled session: created on first join, deleted when the
// last member leaves. A connection belongs to at most one room at a
// time; that invariant is held structurally by keeping membership and
// the connection→room index inside a single registry mutated under
// one lock.
package rooms

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/stillwater-health/telesession/internal/metrics"
	"github.com/stillwater-health/telesession/internal/store"
)

// room is the membership aggregate for one room id. Only the registry
// touches it, always under the registry lock.
type room struct {
	id      string
	members map[string]*Client
}

func (r *room) othersInfo(except string) []ParticipantInfo {
	info := make([]ParticipantInfo, 0, len(r.members))
	for id, m := range r.members {
		if id == except {
			continue
		}
		info = append(info, m.info())
	}
	return info
}

// Registry maps room ids to member sets and serializes all membership
// mutation. Expected scale is a handful of concurrent two-person
// rooms, so one lock over everything is deliberate: same-room
// operations must be serialized anyway, and the lock also makes the
// room-switch transition atomic for every observer.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*room
	byClient map[string]*room // socket id → current room

	// presence mirrors membership to redis for external readers.
	// Optional, advisory: failures are logged and never fail a join.
	presence store.Presence
}

func NewRegistry(presence store.Presence) *Registry {
	return &Registry{
		rooms:    make(map[string]*room),
		byClient: make(map[string]*room),
		presence: presence,
	}
}

// Join moves c into the room named roomID, creating it if needed. If c
// is in another room it leaves it first, with the same departure
// broadcast an explicit leave would emit; no observer ever sees c in
// both rooms or neither. The member-list response is enqueued to the
// joiner before the join broadcast to the others, so the joiner's
// room-joined can never arrive after a peer's user-joined for the
// same event.
func (reg *Registry) Join(c *Client, roomID string) {
	if roomID == "" {
		log.Debug().Str("socket_id", c.ID).Msg("join with empty room id, ignoring")
		return
	}

	reg.mu.Lock()

	prev := reg.byClient[c.ID]
	if prev != nil && prev.id == roomID {
		// Duplicate join: re-send the snapshot, announce nothing.
		c.enqueue(mustMarshal(roomJoined{
			Type:         TypeRoomJoined,
			RoomID:       roomID,
			Participants: prev.othersInfo(c.ID),
		}))
		reg.mu.Unlock()
		return
	}
	var prevRoomID string
	if prev != nil {
		reg.removeLocked(c, prev)
		prevRoomID = prev.id
	}

	rm, ok := reg.rooms[roomID]
	if !ok {
		rm = &room{id: roomID, members: make(map[string]*Client)}
		reg.rooms[roomID] = rm
		metrics.ActiveRooms.Inc()
		log.Debug().Str("room_id", roomID).Msg("room created")
	}
	rm.members[c.ID] = c
	reg.byClient[c.ID] = rm

	c.enqueue(mustMarshal(roomJoined{
		Type:         TypeRoomJoined,
		RoomID:       roomID,
		Participants: rm.othersInfo(c.ID),
	}))

	joined := mustMarshal(userEvent{Type: TypeUserJoined, ParticipantInfo: c.info()})
	for id, m := range rm.members {
		if id != c.ID {
			m.enqueue(joined)
		}
	}

	reg.mu.Unlock()

	metrics.RoomJoins.Inc()
	log.Info().
		Str("socket_id", c.ID).
		Str("user_id", c.Identity.UserID).
		Str("role", c.Identity.Role).
		Str("room_id", roomID).
		Msg("joined room")

	if reg.presence != nil {
		// A switch leaves the previous room; the mirror must never
		// show a socket in two rooms.
		if prevRoomID != "" {
			if err := reg.presence.RemovePeer(context.Background(), prevRoomID, c.ID); err != nil {
				log.Warn().Err(err).Str("room_id", prevRoomID).Msg("presence remove failed")
			}
		}
		if err := reg.presence.AddPeer(context.Background(), roomID, c.ID); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("presence add failed")
		}
	}
}

// Relay forwards a negotiation message to exactly one member of the
// sender's room. A sender outside any room, or a target that has
// already gone, drops the message silently: the peer-gone race is
// expected and the caller treats timeout as the signal.
func (reg *Registry) Relay(c *Client, msg Inbound) {
	fwd := signalForward{
		Type:         msg.Type,
		FromSocketID: c.ID,
		Offer:        msg.Offer,
		Answer:       msg.Answer,
		Candidate:    msg.Candidate,
	}
	data := mustMarshal(fwd)

	reg.mu.Lock()
	rm := reg.byClient[c.ID]
	if rm == nil {
		reg.mu.Unlock()
		return
	}
	target, ok := rm.members[msg.TargetSocketID]
	if !ok {
		reg.mu.Unlock()
		log.Debug().
			Str("socket_id", c.ID).
			Str("target", msg.TargetSocketID).
			Str("type", msg.Type).
			Msg("relay target gone, dropping")
		return
	}
	target.enqueue(data)
	reg.mu.Unlock()

	metrics.MessagesRelayed.WithLabelValues(msg.Type).Inc()
}

// BroadcastEvent sends an empty-payload event to every other member of
// the sender's room. A sender in no room broadcasts nothing; that is
// not an error.
func (reg *Registry) BroadcastEvent(c *Client, eventType string) {
	data := mustMarshal(roomEvent{Type: eventType})

	reg.mu.Lock()
	defer reg.mu.Unlock()

	rm := reg.byClient[c.ID]
	if rm == nil {
		return
	}
	for id, m := range rm.members {
		if id != c.ID {
			m.enqueue(data)
		}
	}
}

// Disconnect removes c from its room, if any, announcing the departure
// with c's identity captured at connect time. The room is deleted once
// empty. Disconnecting without ever joining broadcasts nothing.
func (reg *Registry) Disconnect(c *Client) {
	reg.mu.Lock()
	rm := reg.byClient[c.ID]
	if rm == nil {
		reg.mu.Unlock()
		return
	}
	reg.removeLocked(c, rm)
	reg.mu.Unlock()

	log.Info().
		Str("socket_id", c.ID).
		Str("user_id", c.Identity.UserID).
		Str("room_id", rm.id).
		Msg("left room")

	if reg.presence != nil {
		if err := reg.presence.RemovePeer(context.Background(), rm.id, c.ID); err != nil {
			log.Warn().Err(err).Str("room_id", rm.id).Msg("presence remove failed")
		}
	}
}

// RoomSize reports the current member count of a room, zero if it does
// not exist.
func (reg *Registry) RoomSize(roomID string) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if rm, ok := reg.rooms[roomID]; ok {
		return len(rm.members)
	}
	return 0
}

// removeLocked deletes c from rm and broadcasts the departure. Caller
// holds the registry lock.
func (reg *Registry) removeLocked(c *Client, rm *room) {
	delete(rm.members, c.ID)
	delete(reg.byClient, c.ID)

	if len(rm.members) == 0 {
		delete(reg.rooms, rm.id)
		metrics.ActiveRooms.Dec()
		log.Debug().Str("room_id", rm.id).Msg("room deleted")
		return
	}

	left := mustMarshal(userEvent{Type: TypeUserLeft, ParticipantInfo: c.info()})
	for _, m := range rm.members {
		m.enqueue(left)
	}
}

// mustMarshal serializes server-built messages. These are our own
// structs; a marshal failure is a programming error.
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
