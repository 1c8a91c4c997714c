// Package server implements the PairWire matchmaking and signaling core.
//
// Connections arrive over WebSocket, enter a strict-FIFO matchmaking queue,
// and are paired into ephemeral two-party rooms. Chat, game state, and WebRTC
// negotiation messages are relayed to exactly the other room member; media
// never flows through the server. The implementation is organized into
// specialized files for the registry, queue, room manager, session
// supervisor, clients, configuration, and HTTP plumbing to keep the codebase
// maintainable and testable as the project grows.
package server
