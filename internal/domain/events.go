package domain

import "time"

// EventType tags the variant of a DomainEvent.
type EventType string

const (
	EventPeerDiscovered   EventType = "peer_discovered"
	EventPeerConnected    EventType = "peer_connected"
	EventPeerDisconnected EventType = "peer_disconnected"
	EventTransferStarted  EventType = "transfer_started"
	EventTransferProgress EventType = "transfer_progress"
	EventTransferComplete EventType = "transfer_completed"
	EventTransferFailed   EventType = "transfer_failed"
	EventChunkReceived    EventType = "chunk_received"
)

// Event is the single variant published on the event bus. Only the fields
// relevant to Type are populated; this mirrors the teacher's Message.Data
// map but keeps the domain layer statically typed.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	PeerID     string `json:"peer_id,omitempty"`
	Addresses  []string `json:"addresses,omitempty"`

	TransferID string           `json:"transfer_id,omitempty"`
	Progress   TransferProgress `json:"progress,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	ChunkIndex uint64           `json:"chunk_index,omitempty"`
}

func newEvent(t EventType) Event {
	return Event{Type: t, Timestamp: time.Now()}
}

// NewPeerDiscovered builds a PeerDiscovered event.
func NewPeerDiscovered(peerID string, addrs []string) Event {
	e := newEvent(EventPeerDiscovered)
	e.PeerID = peerID
	e.Addresses = addrs
	return e
}

// NewPeerConnected builds a PeerConnected event.
func NewPeerConnected(peerID string) Event {
	e := newEvent(EventPeerConnected)
	e.PeerID = peerID
	return e
}

// NewPeerDisconnected builds a PeerDisconnected event.
func NewPeerDisconnected(peerID string) Event {
	e := newEvent(EventPeerDisconnected)
	e.PeerID = peerID
	return e
}

// NewTransferStarted builds a TransferStarted event.
func NewTransferStarted(transferID, peerID string) Event {
	e := newEvent(EventTransferStarted)
	e.TransferID = transferID
	e.PeerID = peerID
	return e
}

// NewTransferProgress builds a TransferProgress event.
func NewTransferProgress(transferID string, progress TransferProgress) Event {
	e := newEvent(EventTransferProgress)
	e.TransferID = transferID
	e.Progress = progress
	return e
}

// NewTransferCompleted builds a TransferCompleted event.
func NewTransferCompleted(transferID string) Event {
	e := newEvent(EventTransferComplete)
	e.TransferID = transferID
	return e
}

// NewTransferFailed builds a TransferFailed event with a short, stable reason.
func NewTransferFailed(transferID, reason string) Event {
	e := newEvent(EventTransferFailed)
	e.TransferID = transferID
	e.Reason = reason
	return e
}

// NewChunkReceived builds a ChunkReceived event.
func NewChunkReceived(transferID string, index uint64) Event {
	e := newEvent(EventChunkReceived)
	e.TransferID = transferID
	e.ChunkIndex = index
	return e
}
