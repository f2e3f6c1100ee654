// Package domain holds the core entities of the file-transfer system:
// peers, files, transfers and the domain events emitted as they change.
// Nothing in this package talks to the network or disk directly; it is
// the shared vocabulary that the protocol, repository and network layers
// all read and write.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Peer is a remote node reachable over the transport substrate.
type Peer struct {
	ID        string    `json:"id"`
	Addresses []string  `json:"addresses"`
	Connected bool      `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// AddAddress records a newly learned address, ignoring duplicates.
func (p *Peer) AddAddress(addr string) {
	for _, a := range p.Addresses {
		if a == addr {
			return
		}
	}
	p.Addresses = append(p.Addresses, addr)
}

// File is a locally registered or received file.
type File struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Size       int64      `json:"size"`
	Hash       string     `json:"hash"` // lowercase hex SHA-256
	LocalPath  string     `json:"local_path"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

// NewFileID generates a fresh file identity.
func NewFileID() string {
	return uuid.NewString()
}

// TransferStatus is the tagged FSM terminal/non-terminal status of a transfer.
type TransferStatus struct {
	Kind   TransferStatusKind `json:"kind"`
	Reason string             `json:"reason,omitempty"`
}

// TransferStatusKind enumerates the variant tags of TransferStatus.
type TransferStatusKind string

const (
	StatusPending     TransferStatusKind = "pending"
	StatusInProgress  TransferStatusKind = "in_progress"
	StatusCompleted   TransferStatusKind = "completed"
	StatusFailed      TransferStatusKind = "failed"
	StatusCancelled   TransferStatusKind = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s TransferStatus) IsTerminal() bool {
	switch s.Kind {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Pending, InProgress, Completed, Cancelled are convenience constructors.
func Pending() TransferStatus    { return TransferStatus{Kind: StatusPending} }
func InProgress() TransferStatus { return TransferStatus{Kind: StatusInProgress} }
func Completed() TransferStatus  { return TransferStatus{Kind: StatusCompleted} }
func Cancelled() TransferStatus  { return TransferStatus{Kind: StatusCancelled} }
func Failed(reason string) TransferStatus {
	return TransferStatus{Kind: StatusFailed, Reason: reason}
}

// TransferProgress tracks monotonic progress of a single transfer.
type TransferProgress struct {
	BytesTransferred  int64 `json:"bytes_transferred"`
	TotalBytes        int64 `json:"total_bytes"`
	ChunksTransferred int   `json:"chunks_transferred"`
	TotalChunks       int   `json:"total_chunks"`
}

// Percentage returns the completion ratio in [0, 100].
func (p TransferProgress) Percentage() float64 {
	if p.TotalBytes == 0 {
		return 100
	}
	return float64(p.BytesTransferred) / float64(p.TotalBytes) * 100
}

// IsComplete reports whether both the byte and chunk counters reached their totals.
func (p TransferProgress) IsComplete() bool {
	return p.BytesTransferred >= p.TotalBytes && p.ChunksTransferred >= p.TotalChunks
}

// Transfer is a single-file, single-direction exchange between two peers.
type Transfer struct {
	ID          string           `json:"id"`
	FileID      string           `json:"file_id"`
	FileName    string           `json:"file_name"`
	FileSize    int64            `json:"file_size"`
	FileHash    string           `json:"file_hash"`
	SenderID    string           `json:"sender_id"`
	ReceiverID  string           `json:"receiver_id"`
	Status      TransferStatus   `json:"status"`
	Progress    TransferProgress `json:"progress"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// NewTransferID generates a fresh transfer identity.
func NewTransferID() string {
	return uuid.NewString()
}

// Active reports whether the transfer is still pending or in progress.
func (t *Transfer) Active() bool {
	return t.Status.Kind == StatusPending || t.Status.Kind == StatusInProgress
}

// Chunk is a contiguous slice of a file's bytes, identified by its index.
// Chunks are never persisted; they exist only for the duration of one
// FileChunk message.
type Chunk struct {
	TransferID string
	Index      uint64
	Data       []byte
	IsLast     bool
}
