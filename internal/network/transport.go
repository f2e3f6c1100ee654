package network

import (
	"context"

	"github.com/taisirhassan/cipherstream/internal/codec"
)

// ProtocolID is the file-transfer capability negotiation string from
// spec.md §4.1, used by the transport substrate to route streams to this
// engine rather than some other protocol handler on the same host.
const ProtocolID = "/cipherstream/file-transfer/1.0.0"

// Transport is the abstract "authenticated, encrypted, multiplexed
// request/response substrate" spec.md §1 and §6 describe as an external
// collaborator. The engine never reaches into libp2p (or any other
// substrate) directly; it only calls this contract, so the substrate can
// be swapped without touching protocol or FSM code. LibP2PTransport below
// is the one concrete implementation this repository ships.
type Transport interface {
	// LocalPeerID returns this node's own peer identity.
	LocalPeerID() string

	// Listen starts accepting inbound connections on port and returns the
	// resulting listen address. Calling Listen a second time is an error.
	Listen(ctx context.Context, port int) (string, error)

	// Connect dials a peer at address, established out-of-band of any
	// particular transfer (e.g. from a "connect" CLI command or prior to
	// SendRequest for a peer with no live connection).
	Connect(ctx context.Context, address string) error

	// SendRequest opens a stream to peerID over ProtocolID, writes payload
	// as one frame, and blocks for exactly one framed response. The engine
	// uses it for every outbound protocol message, from the sender
	// (handshake, chunk, cancel) and from the receiver (handshake response,
	// chunk response, transfer complete); it does not use the returned frame.
	SendRequest(ctx context.Context, peerID string, payload []byte) ([]byte, error)

	// Bootstrap seeds the routing table with known addresses, fulfilling
	// spec.md §4.6's "trigger a routing bootstrap once" responsibility at
	// the transport level (DHT bootstrap peers).
	Bootstrap(ctx context.Context, addresses []string) error

	// FindClosestPeers queries the routing layer (DHT) for peers nearest
	// peerID, returning their string identities.
	FindClosestPeers(ctx context.Context, peerID string) ([]string, error)

	// AddRoutingAddress records a learned address for peerID in the
	// routing table without dialing it.
	AddRoutingAddress(peerID, address string) error

	// SubscribeTopic joins a gossip topic; inbound messages surface as
	// GossipMessage transport events.
	SubscribeTopic(topic string) error

	// PublishMessage broadcasts data on topic to subscribed peers.
	PublishMessage(topic string, data []byte) error

	// Events returns the channel of inbound transport-level occurrences
	// the engine's event loop selects on. The channel is closed when the
	// transport is closed.
	Events() <-chan Event

	// Close tears down all connections and listeners.
	Close() error
}

// EventKind tags the variant of an inbound Event.
type EventKind string

const (
	EventPeerConnected        EventKind = "peer_connected"
	EventPeerDisconnected     EventKind = "peer_disconnected"
	EventPeerDiscovered       EventKind = "peer_discovered"
	EventFileTransferRequest  EventKind = "file_transfer_request"
	EventFileTransferResponse EventKind = "file_transfer_response"
	EventGossipMessage        EventKind = "gossip_message"
)

// Event is the single variant the transport pushes to the engine's event
// loop, mirroring spec.md §4.6's "Inbound event surface". Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind EventKind

	PeerID    string
	Addresses []string

	// Payload is the raw frame payload for request/response and gossip
	// events. The engine routes on Msg and does not decode Payload itself.
	Payload []byte

	// Msg is Payload already decoded by the transport, so the engine
	// routes on concrete type without a second decode. Nil for event
	// kinds that carry no message.
	Msg codec.Message

	Topic string

	// Respond replies on the same logical stream a FileTransferRequest or
	// FileTransferResponse event arrived on. It is nil for the other event
	// kinds. Calling it more
	// than once is a caller error (the stream is closed after first use).
	Respond func(payload []byte) error
}
