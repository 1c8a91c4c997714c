// Package server defines the wire protocol exchanged with clients: a small
// JSON envelope whose event name selects one of a closed set of inbound
// variants. Decoding to concrete types lets the supervisor match events
// exhaustively instead of silently dropping unrecognized names.
package server

import (
	"encoding/json"
	"fmt"
)

// Envelope is the outer JSON frame for every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names accepted from clients.
const (
	EventFindPeer     = "find-peer"
	EventJoinRoom     = "join-room"
	EventLeaveRoom    = "leave-room"
	EventChat         = "chat"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
	EventGameState    = "game-state"
	EventChangeGame   = "change-game"
)

// Outbound event names produced by the server.
const (
	EventSendOffer   = "send-offer"
	EventReady       = "ready"
	EventMessage     = "message"
	EventPeerLeft    = "peer-left"
	EventGameChanged = "game-changed"
	EventError       = "error"
)

// InboundEvent is the closed set of messages a client can send. The unexported
// marker method keeps the set sealed so the supervisor's switch stays
// exhaustive.
type InboundEvent interface {
	inboundEvent()
}

// FindPeerEvent asks the server to place the connection in the matchmaking
// queue.
type FindPeerEvent struct{}

// JoinRoomEvent acknowledges the room assignment and joins the room's
// messaging channel.
type JoinRoomEvent struct {
	Room string `json:"room"`
}

// LeaveRoomEvent leaves the current room, tearing it down.
type LeaveRoomEvent struct {
	Room string `json:"room"`
}

// ChatEvent carries a chat line to be relayed to the room peer.
type ChatEvent struct {
	Text string `json:"text"`
}

// SignalKind identifies one of the three WebRTC signaling message kinds.
type SignalKind string

// Signaling kinds map one-to-one onto their wire event names.
const (
	SignalOffer        SignalKind = EventOffer
	SignalAnswer       SignalKind = EventAnswer
	SignalICECandidate SignalKind = EventICECandidate
)

// SignalEvent carries an opaque WebRTC negotiation blob to be forwarded
// verbatim to the other room member. The server never inspects the payload.
type SignalEvent struct {
	Kind    SignalKind      `json:"-"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// GameStateEvent merges opaque key/value entries into the room's state bag
// and relays them to the peer. Boards, turn flags, and pending choices all
// travel through this one shape, so new games need no server changes.
type GameStateEvent struct {
	Room  string                     `json:"room"`
	State map[string]json.RawMessage `json:"state"`
}

// ChangeGameEvent switches the game both peers are playing.
type ChangeGameEvent struct {
	Room string `json:"room"`
	Game string `json:"game"`
}

func (FindPeerEvent) inboundEvent()   {}
func (JoinRoomEvent) inboundEvent()   {}
func (LeaveRoomEvent) inboundEvent()  {}
func (ChatEvent) inboundEvent()       {}
func (SignalEvent) inboundEvent()     {}
func (GameStateEvent) inboundEvent()  {}
func (ChangeGameEvent) inboundEvent() {}

// DecodeEvent parses a raw frame into its typed inbound variant. Unknown
// event names are an error so they can be answered instead of silently
// dropped.
func DecodeEvent(raw []byte) (InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	switch env.Event {
	case EventFindPeer:
		return FindPeerEvent{}, nil
	case EventJoinRoom:
		var ev JoinRoomEvent
		return ev, decodeData(env.Data, &ev)
	case EventLeaveRoom:
		var ev LeaveRoomEvent
		return ev, decodeData(env.Data, &ev)
	case EventChat:
		var ev ChatEvent
		return ev, decodeData(env.Data, &ev)
	case EventOffer, EventAnswer, EventICECandidate:
		var ev SignalEvent
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		ev.Kind = SignalKind(env.Event)
		return ev, nil
	case EventGameState:
		var ev GameStateEvent
		return ev, decodeData(env.Data, &ev)
	case EventChangeGame:
		var ev ChangeGameEvent
		return ev, decodeData(env.Data, &ev)
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}

func decodeData(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("malformed event data: %w", err)
	}
	return nil
}

// RoomAssignment tells both paired connections which room to join.
type RoomAssignment struct {
	RoomID string `json:"roomId"`
}

// ChatRelay is a chat line forwarded to the other room member.
type ChatRelay struct {
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
}

// PeerNotice reports a peer-initiated event such as leaving the room.
type PeerNotice struct {
	SenderID string `json:"senderId"`
}

// GameStateRelay forwards merged game state to the other room member.
type GameStateRelay struct {
	SenderID string                     `json:"senderId"`
	State    map[string]json.RawMessage `json:"state"`
}

// GameChanged announces the newly selected game to the other room member.
type GameChanged struct {
	Game string `json:"game"`
}

// ErrorNotice reports an unrecoverable per-request problem back to the
// sender, such as a malformed frame or an unknown room identifier.
type ErrorNotice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// encodeEnvelope marshals an outbound event with its payload. Marshaling can
// only fail for non-serializable payloads, which would be a programming
// error, so failures surface as an empty frame plus a log line at the caller.
func encodeEnvelope(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		raw = encoded
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
