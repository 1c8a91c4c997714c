// Package server implements the room manager: creation and teardown of
// two-party rooms and fan-out of relayed events to exactly the other room
// member.
package server

import (
	"fmt"
	"log"

	"github.com/google/uuid"
)

// RoomManager owns the table of live rooms. It holds a handle to the
// connection registry so membership always stays a subset of registered
// connections, and it is driven only from the supervisor's event loop.
type RoomManager struct {
	registry *Registry
	rooms    map[string]*Room
}

// NewRoomManager creates a room manager backed by the given registry.
func NewRoomManager(registry *Registry) *RoomManager {
	return &RoomManager{
		registry: registry,
		rooms:    make(map[string]*Room),
	}
}

// CreateRoom forms a room for the two given connections and records the
// room id on both. Self-pairing and unregistered members are rejected with
// ErrInvalidPairing.
func (m *RoomManager) CreateRoom(first, second string) (*Room, error) {
	if first == second {
		return nil, fmt.Errorf("%w: connection %s cannot be paired with itself", ErrInvalidPairing, first)
	}

	connA, err := m.registry.Lookup(first)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not registered", ErrInvalidPairing, first)
	}
	connB, err := m.registry.Lookup(second)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not registered", ErrInvalidPairing, second)
	}
	if connA.RoomID != "" || connB.RoomID != "" {
		return nil, fmt.Errorf("%w: a member is already in a room", ErrInvalidPairing)
	}

	room := newRoom(m.generateRoomID(), first, second)
	m.rooms[room.ID] = room
	connA.RoomID = room.ID
	connB.RoomID = room.ID

	log.Printf("Room %s created for %s and %s", room.ID, first, second)
	return room, nil
}

// generateRoomID returns a fresh identifier that is not in use by any live
// room. UUIDs make collisions vanishingly unlikely, but the table check keeps
// uniqueness a guarantee rather than a probability.
func (m *RoomManager) generateRoomID() string {
	for {
		id := uuid.NewString()
		if _, exists := m.rooms[id]; !exists {
			return id
		}
	}
}

// Room returns the live room for id, or ErrNotFound.
func (m *RoomManager) Room(id string) (*Room, error) {
	room, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return room, nil
}

// DestroyRoom removes the room and clears the room association of any
// remaining members. Destroying an unknown or already-destroyed room is a
// no-op.
func (m *RoomManager) DestroyRoom(id string) {
	room, ok := m.rooms[id]
	if !ok {
		return
	}
	for _, memberID := range room.Members() {
		if conn, err := m.registry.Lookup(memberID); err == nil && conn.RoomID == id {
			conn.RoomID = ""
		}
	}
	delete(m.rooms, id)
	log.Printf("Room %s destroyed", id)
}

// Relay forwards an event to every member of the room except the sender.
// With two members that is exactly the peer; with one member the message is
// dropped, not queued. A sender that is no longer a member gets
// ErrStaleRelay.
func (m *RoomManager) Relay(roomID, senderID, event string, data any) (int, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return 0, ErrNotFound
	}
	if !room.HasMember(senderID) {
		return 0, ErrStaleRelay
	}

	delivered := 0
	for _, memberID := range room.Members() {
		if memberID == senderID {
			continue
		}
		conn, err := m.registry.Lookup(memberID)
		if err != nil {
			// Stale member; disconnect cleanup will purge it shortly.
			continue
		}
		if conn.send(event, data) {
			delivered++
		} else {
			log.Printf("Dropped %s relay to saturated connection %s in room %s", event, memberID, roomID)
		}
	}
	return delivered, nil
}

// LeaveRoom removes the connection from the room's membership, clears its
// room association, and notifies the remaining member. An emptied room is
// destroyed.
func (m *RoomManager) LeaveRoom(roomID, connID string) (remaining *Connection, err error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	if !room.HasMember(connID) {
		return nil, ErrNotFound
	}

	room.removeMember(connID)
	if conn, lookupErr := m.registry.Lookup(connID); lookupErr == nil && conn.RoomID == roomID {
		conn.RoomID = ""
	}

	peerID, hasPeer := room.Peer(connID)
	if !hasPeer {
		m.DestroyRoom(roomID)
		return nil, nil
	}

	if conn, lookupErr := m.registry.Lookup(peerID); lookupErr == nil {
		conn.send(EventPeerLeft, PeerNotice{SenderID: connID})
		remaining = conn
	}
	return remaining, nil
}

// Len reports the number of live rooms.
func (m *RoomManager) Len() int {
	return len(m.rooms)
}
