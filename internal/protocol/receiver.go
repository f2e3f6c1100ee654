package protocol

import (
	"github.com/taisirhassan/cipherstream/internal/codec"
	"github.com/taisirhassan/cipherstream/internal/domain"
)

// ReceiverState is one state of the receiver FSM described in spec.md §4.2.
type ReceiverState int

const (
	ReceiverAwaitingHandshake ReceiverState = iota
	ReceiverReceiving
	ReceiverTerminal
)

// ReceiverFSM drives the inbound side of one file transfer. Like SenderFSM
// it is owned exclusively by the network engine's single goroutine.
type ReceiverFSM struct {
	transferID string
	peerID     string
	filename   string
	fileSize   uint64
	chunkSize  int
	total      uint64

	state             ReceiverState
	chunksTransferred uint64
	bytesTransferred  uint64
	status            domain.TransferStatus

	sink ChunkSink
}

// NewReceiverFSM constructs a receiver FSM for an already-accepted
// handshake. If the file is zero bytes, the returned complete message is
// non-nil and must be sent immediately: there is no chunk exchange for an
// empty file, per spec.md §4.2's zero-byte edge case.
func NewReceiverFSM(transferID, peerID, filename string, filesize uint64, chunkSize int, sink ChunkSink) (*ReceiverFSM, *codec.TransferComplete, domain.Event) {
	r := &ReceiverFSM{
		transferID: transferID,
		peerID:     peerID,
		filename:   filename,
		fileSize:   filesize,
		chunkSize:  chunkSize,
		total:      totalChunks(filesize, chunkSize),
		state:      ReceiverReceiving,
		status:     domain.InProgress(),
		sink:       sink,
	}

	if r.total == 0 {
		complete, ev := r.finalize()
		return r, &complete, ev
	}
	return r, nil, domain.NewTransferStarted(transferID, peerID)
}

func (r *ReceiverFSM) TransferID() string            { return r.transferID }
func (r *ReceiverFSM) PeerID() string                { return r.peerID }
func (r *ReceiverFSM) State() ReceiverState           { return r.state }
func (r *ReceiverFSM) Status() domain.TransferStatus { return r.status }

func (r *ReceiverFSM) progress() domain.TransferProgress {
	return domain.TransferProgress{
		BytesTransferred:  int64(r.bytesTransferred),
		TotalBytes:        int64(r.fileSize),
		ChunksTransferred: int(r.chunksTransferred),
		TotalChunks:       int(r.total),
	}
}

// HandshakeResponse builds the accept reply naming this FSM's transfer id.
func (r *ReceiverFSM) HandshakeResponse() codec.HandshakeResponse {
	id := r.transferID
	return codec.HandshakeResponse{Accepted: true, TransferID: &id}
}

// RejectHandshake builds a rejection reply for a failed admission check;
// no ReceiverFSM is created for a rejected handshake.
func RejectHandshake(reason string) codec.HandshakeResponse {
	r := reason
	return codec.HandshakeResponse{Accepted: false, Reason: &r}
}

func (r *ReceiverFSM) finalize() (codec.TransferComplete, domain.Event) {
	if err := r.sink.Finalize(); err != nil {
		r.state = ReceiverTerminal
		r.status = domain.Failed("write failure")
		errMsg := "write failure"
		return codec.TransferComplete{TransferID: r.transferID, Success: false, Error: &errMsg},
			domain.NewTransferFailed(r.transferID, "write failure")
	}
	r.state = ReceiverTerminal
	r.status = domain.Completed()
	return codec.TransferComplete{TransferID: r.transferID, Success: true},
		domain.NewTransferCompleted(r.transferID)
}

// HandleFileChunk writes one chunk, replies with its acknowledgement, and
// (on the last chunk) finalizes the destination file.
func (r *ReceiverFSM) HandleFileChunk(chunk codec.FileChunk) (codec.ChunkResponse, *codec.TransferComplete, *domain.Event, error) {
	if r.state == ReceiverAwaitingHandshake {
		errMsg := "no handshake"
		return codec.ChunkResponse{TransferID: chunk.TransferID, ChunkIndex: chunk.ChunkIndex, Success: false, Error: &errMsg}, nil, nil, nil
	}
	if r.state == ReceiverTerminal {
		errMsg := "transfer already terminal"
		return codec.ChunkResponse{TransferID: chunk.TransferID, ChunkIndex: chunk.ChunkIndex, Success: false, Error: &errMsg}, nil, nil, nil
	}
	if chunk.TransferID != r.transferID {
		errMsg := "unknown transfer"
		return codec.ChunkResponse{TransferID: chunk.TransferID, ChunkIndex: chunk.ChunkIndex, Success: false, Error: &errMsg}, nil, nil, nil
	}
	if chunk.ChunkIndex != r.chunksTransferred {
		errMsg := "out of order chunk"
		return codec.ChunkResponse{TransferID: r.transferID, ChunkIndex: chunk.ChunkIndex, Success: false, Error: &errMsg}, nil, nil, nil
	}

	if err := r.sink.WriteChunkAt(chunk.ChunkIndex, r.chunkSize, chunk.Data); err != nil {
		r.state = ReceiverTerminal
		r.status = domain.Failed("write failure")
		errMsg := "write failure"
		ackErr := errMsg
		complete := codec.TransferComplete{TransferID: r.transferID, Success: false, Error: &errMsg}
		ev := domain.NewTransferFailed(r.transferID, "write failure")
		return codec.ChunkResponse{TransferID: r.transferID, ChunkIndex: chunk.ChunkIndex, Success: false, Error: &ackErr}, &complete, &ev, nil
	}

	r.bytesTransferred += uint64(len(chunk.Data))
	r.chunksTransferred++
	ack := codec.ChunkResponse{TransferID: r.transferID, ChunkIndex: chunk.ChunkIndex, Success: true}

	if chunk.IsLast || r.chunksTransferred == r.total {
		complete, ev := r.finalize()
		return ack, &complete, &ev, nil
	}

	ev := domain.NewTransferProgress(r.transferID, r.progress())
	return ack, nil, &ev, nil
}

// HandleCancel aborts the partial file and replies with a failed
// TransferComplete. A cancel on an already-terminal transfer is a silent
// no-op, matching the idempotence requirement in spec.md §8.
func (r *ReceiverFSM) HandleCancel(msg codec.CancelTransfer) (*codec.TransferComplete, *domain.Event, error) {
	if r.state == ReceiverTerminal {
		return nil, nil, nil
	}
	if msg.TransferID != r.transferID {
		return nil, nil, nil
	}
	if err := r.sink.Abort(); err != nil {
		return nil, nil, err
	}
	r.state = ReceiverTerminal
	r.status = domain.Cancelled()
	errMsg := "cancelled by sender"
	complete := codec.TransferComplete{TransferID: r.transferID, Success: false, Error: &errMsg}
	ev := domain.NewTransferFailed(r.transferID, "cancelled by sender")
	return &complete, &ev, nil
}

// HandleDisconnect aborts an in-flight transfer when its peer's connection
// drops, e.g. from an idle-timeout sweep.
func (r *ReceiverFSM) HandleDisconnect() (domain.Event, error) {
	if r.state == ReceiverTerminal {
		return domain.Event{}, nil
	}
	_ = r.sink.Abort()
	r.state = ReceiverTerminal
	r.status = domain.Failed("disconnected")
	return domain.NewTransferFailed(r.transferID, "disconnected"), nil
}
