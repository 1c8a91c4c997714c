// Package server models a single two-party room: its ordered membership,
// which members have joined the messaging channel, and the opaque state bag
// relayed game payloads live in.
package server

import (
	"encoding/json"
	"time"
)

// Room is an ephemeral two-party session. It is owned by the RoomManager;
// all mutation happens through the manager's contract on the supervisor's
// event loop. A room holds one or two members; a room with zero members is
// invalid and is destroyed by the manager.
type Room struct {
	ID        string
	createdAt time.Time

	// members keeps the ordered pair of connection ids; the first entry is
	// the first connection dequeued for this pairing.
	members []string
	joined  map[string]bool
	state   map[string]json.RawMessage
}

func newRoom(id, first, second string) *Room {
	return &Room{
		ID:        id,
		createdAt: time.Now(),
		members:   []string{first, second},
		joined:    make(map[string]bool, 2),
		state:     make(map[string]json.RawMessage),
	}
}

// Members returns the current membership in pairing order.
func (r *Room) Members() []string {
	out := make([]string, len(r.members))
	copy(out, r.members)
	return out
}

// HasMember reports whether connID is currently a member.
func (r *Room) HasMember(connID string) bool {
	for _, id := range r.members {
		if id == connID {
			return true
		}
	}
	return false
}

// Peer returns the other member of the room, if one remains.
func (r *Room) Peer(connID string) (string, bool) {
	for _, id := range r.members {
		if id != connID {
			return id, true
		}
	}
	return "", false
}

// removeMember purges connID from the membership and joined set.
func (r *Room) removeMember(connID string) {
	for i, id := range r.members {
		if id == connID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	delete(r.joined, connID)
}

// markJoined records that connID has joined the room's messaging channel.
func (r *Room) markJoined(connID string) {
	if r.HasMember(connID) {
		r.joined[connID] = true
	}
}

// bothJoined reports whether both members have acknowledged the room.
func (r *Room) bothJoined() bool {
	return len(r.members) == 2 && r.joined[r.members[0]] && r.joined[r.members[1]]
}

// MergeState folds the given keys into the room's opaque state bag. The
// server never interprets the values; they are whatever the peers' game
// needs (a board, a turn flag, pending choices).
func (r *Room) MergeState(state map[string]json.RawMessage) {
	for key, value := range state {
		r.state[key] = value
	}
}

// StateValue returns one entry of the state bag.
func (r *Room) StateValue(key string) (json.RawMessage, bool) {
	value, ok := r.state[key]
	return value, ok
}
