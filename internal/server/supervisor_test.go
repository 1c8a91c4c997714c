package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectConn registers a connection the way handleRegister does for a
// WebSocket client, minus the pump goroutines: register, enqueue, attempt
// pairing. Tests drive the supervisor's handlers directly, which mirrors the
// single-threaded event loop.
func connectConn(t *testing.T, s *Supervisor, id string) (*Connection, *sinkRecorder) {
	t.Helper()
	sink := &sinkRecorder{}
	conn := NewConnection(id, nil, sink)
	s.registry.Register(conn)
	s.enqueue(conn)
	s.tryPair()
	return conn, sink
}

// assertSinglePlacement checks the core invariant: a connection is never
// both queued and roomed.
func assertSinglePlacement(t *testing.T, s *Supervisor, conns ...*Connection) {
	t.Helper()
	for _, conn := range conns {
		if conn.RoomID != "" {
			assert.False(t, s.queue.Contains(conn.ID),
				"connection %s is in room %s and still queued", conn.ID, conn.RoomID)
		}
	}
}

func roomAssignment(t *testing.T, sink *sinkRecorder) string {
	t.Helper()
	for _, frame := range sink.frames {
		if frame.Event == EventSendOffer {
			var assignment RoomAssignment
			require.NoError(t, json.Unmarshal(frame.Data, &assignment))
			return assignment.RoomID
		}
	}
	t.Fatal("no send-offer frame delivered")
	return ""
}

func TestLonePeerWaitsInQueue(t *testing.T) {
	s := NewSupervisor()
	connA, sinkA := connectConn(t, s, "a")

	assert.Equal(t, StateQueued, connA.State)
	assert.True(t, s.queue.Contains("a"))
	assert.Empty(t, sinkA.frames, "no offer until a partner arrives")
}

func TestPairingIsFIFO(t *testing.T) {
	s := NewSupervisor()

	connA, sinkA := connectConn(t, s, "a")
	connB, sinkB := connectConn(t, s, "b")
	connC, sinkC := connectConn(t, s, "c")
	connD, sinkD := connectConn(t, s, "d")

	roomAB := roomAssignment(t, sinkA)
	assert.Equal(t, roomAB, roomAssignment(t, sinkB), "a and b arrived first and pair together")

	roomCD := roomAssignment(t, sinkC)
	assert.Equal(t, roomCD, roomAssignment(t, sinkD))
	assert.NotEqual(t, roomAB, roomCD)

	for _, conn := range []*Connection{connA, connB, connC, connD} {
		assert.Equal(t, StatePaired, conn.State)
	}
	assert.Zero(t, s.queue.Len())
	assertSinglePlacement(t, s, connA, connB, connC, connD)
}

func TestPairingRaceRequeuesSurvivor(t *testing.T) {
	s := NewSupervisor()

	// The ghost entered the queue but disconnected before pairing ran.
	connA, _ := connectConn(t, s, "a")
	s.queue.Enqueue("ghost")
	s.tryPair()

	assert.True(t, s.queue.Contains("a"), "survivor is re-enqueued after a failed pairing")
	assert.Zero(t, s.rooms.Len(), "no room may be created with a vanished candidate")
	assert.Equal(t, StateQueued, connA.State)

	// The next arrival pairs normally with the survivor.
	connC, sinkC := connectConn(t, s, "c")
	assert.Equal(t, StatePaired, connA.State)
	assert.Equal(t, StatePaired, connC.State)
	assert.Equal(t, connA.RoomID, roomAssignment(t, sinkC))
}

func TestJoinRoomReadyFlow(t *testing.T) {
	s := NewSupervisor()
	connA, sinkA := connectConn(t, s, "a")
	connB, sinkB := connectConn(t, s, "b")
	roomID := connA.RoomID
	require.NotEmpty(t, roomID)
	sinkA.reset()
	sinkB.reset()

	s.handleEvent("a", JoinRoomEvent{Room: roomID})
	assert.Contains(t, sinkB.eventNames(), EventReady, "the peer learns the other side joined")
	assert.Equal(t, StatePaired, connA.State, "one join is not enough to go active")

	s.handleEvent("b", JoinRoomEvent{Room: roomID})
	assert.Contains(t, sinkA.eventNames(), EventReady)
	assert.Equal(t, StateActive, connA.State)
	assert.Equal(t, StateActive, connB.State)
}

func TestJoinUnknownRoomAnswersError(t *testing.T) {
	s := NewSupervisor()
	_, sinkA := connectConn(t, s, "a")

	s.handleEvent("a", JoinRoomEvent{Room: "no-such-room"})
	frame := sinkA.lastFrame(t)
	assert.Equal(t, EventError, frame.Event)

	var notice ErrorNotice
	require.NoError(t, json.Unmarshal(frame.Data, &notice))
	assert.Equal(t, "unknown-room", notice.Code)
}

func TestOfferRelayedVerbatimToPeerOnly(t *testing.T) {
	s := NewSupervisor()
	connA, sinkA := connectConn(t, s, "a")
	_, sinkB := connectConn(t, s, "b")
	roomID := connA.RoomID
	sinkA.reset()
	sinkB.reset()

	payload := json.RawMessage(`{"sdp":"v=0 o=- 46117 2"}`)
	s.handleEvent("a", SignalEvent{Kind: SignalOffer, Room: roomID, Payload: payload})

	frame := sinkB.lastFrame(t)
	assert.Equal(t, EventOffer, frame.Event)
	assert.JSONEq(t, string(payload), string(frame.Data), "the payload is forwarded untouched")
	assert.Empty(t, sinkA.frames, "the sender never receives its own signal")
}

func TestStaleSignalDroppedSilently(t *testing.T) {
	s := NewSupervisor()
	_, sinkA := connectConn(t, s, "a")
	_, sinkB := connectConn(t, s, "b")
	sinkA.reset()
	sinkB.reset()

	s.handleEvent("a", SignalEvent{Kind: SignalAnswer, Room: "some-other-room", Payload: json.RawMessage(`{}`)})
	assert.Empty(t, sinkA.frames)
	assert.Empty(t, sinkB.frames)

	// A missing room id is a malformed request and is answered.
	s.handleEvent("a", SignalEvent{Kind: SignalAnswer, Payload: json.RawMessage(`{}`)})
	assert.Equal(t, EventError, sinkA.lastFrame(t).Event)
}

func TestChatRelayCarriesSenderID(t *testing.T) {
	s := NewSupervisor()
	_, sinkA := connectConn(t, s, "a")
	_, sinkB := connectConn(t, s, "b")
	sinkA.reset()
	sinkB.reset()

	s.handleEvent("a", ChatEvent{Text: "hello there"})

	frame := sinkB.lastFrame(t)
	assert.Equal(t, EventMessage, frame.Event)

	var relayed ChatRelay
	require.NoError(t, json.Unmarshal(frame.Data, &relayed))
	assert.Equal(t, "a", relayed.SenderID)
	assert.Equal(t, "hello there", relayed.Text)
	assert.Empty(t, sinkA.frames)
}

func TestGameStateMergedAndRelayed(t *testing.T) {
	s := NewSupervisor()
	connA, sinkA := connectConn(t, s, "a")
	_, sinkB := connectConn(t, s, "b")
	roomID := connA.RoomID
	sinkA.reset()
	sinkB.reset()

	s.handleEvent("a", GameStateEvent{
		Room: roomID,
		State: map[string]json.RawMessage{
			"board": json.RawMessage(`["x",null,null]`),
			"turn":  json.RawMessage(`1`),
		},
	})

	frame := sinkB.lastFrame(t)
	assert.Equal(t, EventGameState, frame.Event)

	room, err := s.rooms.Room(roomID)
	require.NoError(t, err)
	turn, ok := room.StateValue("turn")
	require.True(t, ok)
	assert.JSONEq(t, `1`, string(turn))
}

func TestChangeGameStoredAndAnnounced(t *testing.T) {
	s := NewSupervisor()
	connA, _ := connectConn(t, s, "a")
	_, sinkB := connectConn(t, s, "b")
	roomID := connA.RoomID
	sinkB.reset()

	s.handleEvent("a", ChangeGameEvent{Room: roomID, Game: "tic-tac-toe"})

	frame := sinkB.lastFrame(t)
	assert.Equal(t, EventGameChanged, frame.Event)

	var changed GameChanged
	require.NoError(t, json.Unmarshal(frame.Data, &changed))
	assert.Equal(t, "tic-tac-toe", changed.Game)

	room, err := s.rooms.Room(roomID)
	require.NoError(t, err)
	game, ok := room.StateValue("game")
	require.True(t, ok)
	assert.JSONEq(t, `"tic-tac-toe"`, string(game))
}

func TestLeaveRoomRequeuesLeaverOnly(t *testing.T) {
	s := NewSupervisor()
	connA, _ := connectConn(t, s, "a")
	connB, sinkB := connectConn(t, s, "b")
	roomID := connA.RoomID
	sinkB.reset()

	s.handleEvent("a", LeaveRoomEvent{Room: roomID})

	assert.Contains(t, sinkB.eventNames(), EventPeerLeft)
	assert.Zero(t, s.rooms.Len(), "an explicit leave tears the room down")

	assert.Equal(t, StateQueued, connA.State, "the leaver goes straight back into matchmaking")
	assert.True(t, s.queue.Contains("a"))

	assert.Equal(t, StateLeft, connB.State, "the peer stays out until it asks for a new partner")
	assert.False(t, s.queue.Contains("b"))
	assert.Empty(t, connB.RoomID)

	// Once the peer re-enters, the two pair up again.
	s.handleEvent("b", FindPeerEvent{})
	assert.Equal(t, StatePaired, connA.State)
	assert.Equal(t, StatePaired, connB.State)
	assertSinglePlacement(t, s, connA, connB)
}

func TestDisconnectTearsDownRoomAndNotifiesPeer(t *testing.T) {
	s := NewSupervisor()
	connectConn(t, s, "a")
	connB, sinkB := connectConn(t, s, "b")
	sinkB.reset()

	s.handleDisconnect("a")

	assert.Contains(t, sinkB.eventNames(), EventPeerLeft)
	assert.Zero(t, s.rooms.Len())
	assert.Empty(t, connB.RoomID, "the peer is free to be re-enqueued")
	assert.Equal(t, StateLeft, connB.State)

	_, err := s.registry.Lookup("a")
	assert.ErrorIs(t, err, ErrNotFound, "the disconnected side is fully removed")
	assert.False(t, s.queue.Contains("a"), "a disconnected connection is never re-enqueued")

	// The peer re-enters matchmaking by asking again.
	s.handleEvent("b", FindPeerEvent{})
	assert.Equal(t, StateQueued, connB.State)
}

func TestDuplicateDisconnectIsIdempotent(t *testing.T) {
	s := NewSupervisor()
	connectConn(t, s, "a")
	_, sinkB := connectConn(t, s, "b")
	sinkB.reset()

	s.handleDisconnect("a")
	s.handleDisconnect("a")

	notices := 0
	for _, name := range sinkB.eventNames() {
		if name == EventPeerLeft {
			notices++
		}
	}
	assert.Equal(t, 1, notices, "the peer must be notified exactly once")
}

func TestDisconnectWhileQueuedRemovesEntry(t *testing.T) {
	s := NewSupervisor()
	connectConn(t, s, "a")

	s.handleDisconnect("a")
	assert.Zero(t, s.queue.Len())
	assert.Zero(t, s.registry.Len())
}

func TestFindPeerWhileRoomedIsIgnored(t *testing.T) {
	s := NewSupervisor()
	connA, _ := connectConn(t, s, "a")
	connB, _ := connectConn(t, s, "b")

	s.handleEvent("a", FindPeerEvent{})

	assert.False(t, s.queue.Contains("a"))
	assert.Equal(t, StatePaired, connA.State)
	assertSinglePlacement(t, s, connA, connB)
}

func TestEventFromUnknownConnectionDropped(t *testing.T) {
	s := NewSupervisor()

	// Must not panic or mutate anything.
	s.handleEvent("ghost", ChatEvent{Text: "hello?"})
	assert.Zero(t, s.registry.Len())
	assert.Zero(t, s.queue.Len())
}
