// Package server coordinates the session lifecycle: registration, the
// matchmaking queue, room formation, relays, and teardown, via the
// Supervisor type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

type clientEvent struct {
	connID string
	event  InboundEvent
}

// Supervisor owns the connection registry, the matchmaking queue, and the
// room manager, and drives every state transition from a single event loop.
// Serializing all mutation through one goroutine makes pairing (dequeue plus
// room creation) and teardown atomic with respect to every other event, so
// an observer can never see one side Paired while its partner is still
// Queued.
type Supervisor struct {
	registry *Registry
	queue    *MatchQueue
	rooms    *RoomManager

	register   chan *Client
	unregister chan string
	events     chan clientEvent

	clients map[string]*Client
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSupervisor creates a supervisor with an empty registry, queue, and room
// table. The returned Supervisor is ready to run its event loop.
func NewSupervisor() *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()
	return &Supervisor{
		registry:   registry,
		queue:      NewMatchQueue(),
		rooms:      NewRoomManager(registry),
		register:   make(chan *Client),
		unregister: make(chan string),
		events:     make(chan clientEvent),
		clients:    make(map[string]*Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// RegisterClient hands a freshly upgraded client to the event loop. The loop
// registers the connection, starts the pump goroutines, and enqueues the
// connection for pairing.
func (s *Supervisor) RegisterClient(client *Client) {
	select {
	case s.register <- client:
	case <-s.ctx.Done():
	}
}

// DisconnectClient reports a transport-level disconnect. It is safe to call
// more than once for the same connection.
func (s *Supervisor) DisconnectClient(connID string) {
	select {
	case s.unregister <- connID:
	case <-s.ctx.Done():
	}
}

// DispatchEvent submits one decoded inbound event for processing. Events
// from a single connection arrive through its read pump in order, and the
// loop processes them in arrival order.
func (s *Supervisor) DispatchEvent(connID string, event InboundEvent) {
	select {
	case s.events <- clientEvent{connID: connID, event: event}:
	case <-s.ctx.Done():
	}
}

// Run starts the supervisor's event loop. It should be called in a separate
// goroutine as it runs until Shutdown.
func (s *Supervisor) Run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			s.shutdownClients()
			return

		case client := <-s.register:
			if client == nil || client.session == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			s.handleRegister(client)

		case connID := <-s.unregister:
			s.handleDisconnect(connID)

		case ev := <-s.events:
			s.handleEvent(ev.connID, ev.event)
		}
	}
}

func (s *Supervisor) handleRegister(client *Client) {
	conn := client.session
	s.registry.Register(conn)
	s.clients[conn.ID] = client
	log.Printf("Connection %s registered from %s. Total connections: %d", conn.ID, client.addr, s.registry.Len())

	if client.conn != nil {
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			client.writePump()
		}()
		go func() {
			defer s.wg.Done()
			client.readPump()
		}()
	}

	// A new connection goes straight into matchmaking.
	s.enqueue(conn)
	s.tryPair()
}

// handleEvent dispatches one inbound event. The switch is exhaustive over
// the sealed InboundEvent set; adding a variant without a case here fails
// at review, not silently at runtime.
func (s *Supervisor) handleEvent(connID string, event InboundEvent) {
	conn, err := s.registry.Lookup(connID)
	if err != nil {
		log.Printf("Dropping %T from unknown connection %s", event, connID)
		return
	}

	switch ev := event.(type) {
	case FindPeerEvent:
		s.handleFindPeer(conn)
	case JoinRoomEvent:
		s.handleJoinRoom(conn, ev)
	case LeaveRoomEvent:
		s.handleLeaveRoom(conn, ev)
	case ChatEvent:
		s.handleChat(conn, ev)
	case SignalEvent:
		s.handleSignal(conn, ev)
	case GameStateEvent:
		s.handleGameState(conn, ev)
	case ChangeGameEvent:
		s.handleChangeGame(conn, ev)
	default:
		log.Printf("Unhandled event %T from %s", event, connID)
	}
}

func (s *Supervisor) enqueue(conn *Connection) {
	if conn.RoomID != "" {
		return
	}
	if s.queue.Enqueue(conn.ID) {
		conn.State = StateQueued
		log.Printf("Connection %s queued for pairing. Queue length: %d", conn.ID, s.queue.Len())
	}
}

// tryPair drains the queue two entries at a time. Each iteration is atomic
// with respect to other events: a candidate that vanished between enqueue
// and dequeue costs only that attempt, the survivor is re-enqueued at the
// back and pairing continues.
func (s *Supervisor) tryPair() {
	for {
		first, second, ok := s.queue.DequeuePair()
		if !ok {
			return
		}

		if _, err := s.registry.Lookup(first); err != nil {
			log.Printf("Pairing aborted: %v (%s); re-enqueueing %s", ErrRaceLoss, first, second)
			s.requeueSurvivor(second)
			continue
		}
		if _, err := s.registry.Lookup(second); err != nil {
			log.Printf("Pairing aborted: %v (%s); re-enqueueing %s", ErrRaceLoss, second, first)
			s.requeueSurvivor(first)
			continue
		}

		room, err := s.rooms.CreateRoom(first, second)
		if err != nil {
			log.Printf("Room creation for %s and %s failed: %v", first, second, err)
			s.requeueSurvivor(first)
			s.requeueSurvivor(second)
			continue
		}

		// Both sides transition together before any other event runs.
		for _, memberID := range room.Members() {
			conn, lookupErr := s.registry.Lookup(memberID)
			if lookupErr != nil {
				continue
			}
			conn.State = StatePaired
			conn.send(EventSendOffer, RoomAssignment{RoomID: room.ID})
		}
		log.Printf("Paired %s with %s in room %s", first, second, room.ID)
	}
}

func (s *Supervisor) requeueSurvivor(connID string) {
	conn, err := s.registry.Lookup(connID)
	if err != nil {
		return
	}
	// Back of the queue; the original wait time is not preserved.
	s.enqueue(conn)
}

func (s *Supervisor) handleFindPeer(conn *Connection) {
	if conn.RoomID != "" {
		log.Printf("Ignoring find-peer from %s: already in room %s", conn.ID, conn.RoomID)
		return
	}
	s.enqueue(conn)
	s.tryPair()
}

func (s *Supervisor) handleJoinRoom(conn *Connection, ev JoinRoomEvent) {
	if ev.Room == "" {
		conn.send(EventError, ErrorNotice{Code: "malformed-room", Message: "no room specified"})
		return
	}
	room, err := s.rooms.Room(ev.Room)
	if err != nil {
		conn.send(EventError, ErrorNotice{Code: "unknown-room", Message: "room does not exist"})
		return
	}
	if !room.HasMember(conn.ID) {
		log.Printf("Dropping join-room from %s: not a member of %s", conn.ID, ev.Room)
		return
	}

	room.markJoined(conn.ID)
	if _, err := s.rooms.Relay(room.ID, conn.ID, EventReady, nil); err != nil {
		log.Printf("Ready notification in room %s failed: %v", room.ID, err)
	}

	if room.bothJoined() {
		for _, memberID := range room.Members() {
			if member, lookupErr := s.registry.Lookup(memberID); lookupErr == nil {
				member.State = StateActive
			}
		}
		log.Printf("Room %s is active", room.ID)
	}
}

func (s *Supervisor) handleLeaveRoom(conn *Connection, ev LeaveRoomEvent) {
	roomID := conn.RoomID
	if roomID == "" || (ev.Room != "" && ev.Room != roomID) {
		log.Printf("Dropping leave-room from %s: not a member of %q", conn.ID, ev.Room)
		return
	}

	s.teardownRoom(roomID, conn.ID)
	conn.State = StateLeft
	log.Printf("Connection %s left room %s", conn.ID, roomID)

	// The leaver immediately rejoins matchmaking; the remaining peer stays
	// out until it asks for a new partner.
	s.enqueue(conn)
	s.tryPair()
}

// teardownRoom removes the leaver, notifies the remaining peer, and destroys
// the room. The peer's room association is cleared so it is free to re-enter
// the queue.
func (s *Supervisor) teardownRoom(roomID, leaverID string) {
	remaining, err := s.rooms.LeaveRoom(roomID, leaverID)
	if err != nil {
		log.Printf("Teardown of room %s skipped: %v", roomID, err)
		return
	}
	if remaining != nil {
		remaining.State = StateLeft
		s.rooms.DestroyRoom(roomID)
	}
}

func (s *Supervisor) handleChat(conn *Connection, ev ChatEvent) {
	if conn.RoomID == "" {
		log.Printf("Dropping chat from %s: not in a room", conn.ID)
		return
	}
	relay := ChatRelay{SenderID: conn.ID, Text: ev.Text}
	if _, err := s.rooms.Relay(conn.RoomID, conn.ID, EventMessage, relay); err != nil {
		log.Printf("Chat relay from %s failed: %v", conn.ID, err)
	}
}

func (s *Supervisor) handleSignal(conn *Connection, ev SignalEvent) {
	if ev.Room == "" {
		conn.send(EventError, ErrorNotice{Code: "malformed-room", Message: "no room specified"})
		return
	}
	if conn.RoomID != ev.Room {
		// The sender left or was never a member; drop silently.
		log.Printf("Dropping %s from %s: %v for room %s", ev.Kind, conn.ID, ErrStaleRelay, ev.Room)
		return
	}
	if _, err := s.rooms.Relay(ev.Room, conn.ID, string(ev.Kind), ev.Payload); err != nil {
		log.Printf("Signal relay from %s failed: %v", conn.ID, err)
	}
}

func (s *Supervisor) handleGameState(conn *Connection, ev GameStateEvent) {
	if ev.Room == "" || conn.RoomID != ev.Room {
		log.Printf("Dropping game-state from %s: %v for room %q", conn.ID, ErrStaleRelay, ev.Room)
		return
	}
	room, err := s.rooms.Room(ev.Room)
	if err != nil {
		log.Printf("Dropping game-state from %s: %v", conn.ID, err)
		return
	}

	room.MergeState(ev.State)
	relay := GameStateRelay{SenderID: conn.ID, State: ev.State}
	if _, err := s.rooms.Relay(ev.Room, conn.ID, EventGameState, relay); err != nil {
		log.Printf("Game state relay from %s failed: %v", conn.ID, err)
	}
}

func (s *Supervisor) handleChangeGame(conn *Connection, ev ChangeGameEvent) {
	if ev.Room == "" || conn.RoomID != ev.Room {
		log.Printf("Dropping change-game from %s: %v for room %q", conn.ID, ErrStaleRelay, ev.Room)
		return
	}
	room, err := s.rooms.Room(ev.Room)
	if err != nil {
		log.Printf("Dropping change-game from %s: %v", conn.ID, err)
		return
	}

	encoded, err := json.Marshal(ev.Game)
	if err != nil {
		return
	}
	room.MergeState(map[string]json.RawMessage{"game": encoded})
	if _, err := s.rooms.Relay(ev.Room, conn.ID, EventGameChanged, GameChanged{Game: ev.Game}); err != nil {
		log.Printf("Game change relay from %s failed: %v", conn.ID, err)
	}
}

// handleDisconnect performs terminal cleanup for a connection. It is
// idempotent: a second disconnect signal finds the registry entry gone and
// does nothing, so room membership is never double-decremented and the peer
// is never notified twice.
func (s *Supervisor) handleDisconnect(connID string) {
	conn, err := s.registry.Lookup(connID)
	if err != nil {
		return
	}

	s.queue.Remove(connID)
	if conn.RoomID != "" {
		s.teardownRoom(conn.RoomID, connID)
	}
	conn.State = StateDisconnected
	s.registry.Unregister(connID)

	if client, ok := s.clients[connID]; ok {
		delete(s.clients, connID)
		client.closeSend()
	}
	log.Printf("Connection %s unregistered. Total connections: %d", connID, s.registry.Len())
}

// shutdownClients closes every active client connection so the pump
// goroutines unwind.
func (s *Supervisor) shutdownClients() {
	log.Println("Shutting down all client connections...")

	count := 0
	for _, client := range s.clients {
		client.closeSend()
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing client connection from %s: %v", client.addr, err)
			}
		}
		count++
	}

	log.Printf("Closed %d client connections", count)
}

// Shutdown initiates graceful shutdown of the supervisor and waits for the
// event loop and all pump goroutines to finish, or for the timeout.
func (s *Supervisor) Shutdown(timeout time.Duration) error {
	log.Println("Initiating supervisor shutdown...")

	s.cancel()
	<-s.done

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Supervisor shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Supervisor shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
