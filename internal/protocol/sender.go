package protocol

import (
	"github.com/taisirhassan/cipherstream/internal/codec"
	"github.com/taisirhassan/cipherstream/internal/domain"
)

// SenderState is one state of the sender FSM described in spec.md §4.2.
type SenderState int

const (
	SenderIdle SenderState = iota
	SenderAwaitingHandshakeAck
	SenderSending
	SenderAwaitingFinalAck
	SenderTerminal
)

// SenderFSM drives the outbound side of one file transfer. It is not safe
// for concurrent use: the network engine owns exactly one goroutine that
// mutates it, matching spec.md §5's single-owner scheduling model.
type SenderFSM struct {
	transferID string
	peerID     string
	filename   string
	fileSize   uint64
	chunkSize  int
	total      uint64

	state      SenderState
	chunkIndex uint64
	status     domain.TransferStatus

	source ChunkSource
}

// NewSenderFSM constructs a sender FSM in the Idle state for one transfer.
func NewSenderFSM(transferID, peerID, filename string, chunkSize int, source ChunkSource) *SenderFSM {
	size := source.Size()
	return &SenderFSM{
		transferID: transferID,
		peerID:     peerID,
		filename:   filename,
		fileSize:   size,
		chunkSize:  chunkSize,
		total:      totalChunks(size, chunkSize),
		state:      SenderIdle,
		status:     domain.Pending(),
		source:     source,
	}
}

func (s *SenderFSM) TransferID() string            { return s.transferID }
func (s *SenderFSM) PeerID() string                { return s.peerID }
func (s *SenderFSM) State() SenderState             { return s.state }
func (s *SenderFSM) Status() domain.TransferStatus { return s.status }

func (s *SenderFSM) progress() domain.TransferProgress {
	bytes := s.chunkIndex * uint64(s.chunkSize)
	if bytes > s.fileSize {
		bytes = s.fileSize
	}
	return domain.TransferProgress{
		BytesTransferred:  int64(bytes),
		TotalBytes:        int64(s.fileSize),
		ChunksTransferred: int(s.chunkIndex),
		TotalChunks:       int(s.total),
	}
}

func (s *SenderFSM) fail(reason string) domain.Event {
	s.state = SenderTerminal
	s.status = domain.Failed(reason)
	return domain.NewTransferFailed(s.transferID, reason)
}

func (s *SenderFSM) complete() domain.Event {
	s.state = SenderTerminal
	s.status = domain.Completed()
	return domain.NewTransferCompleted(s.transferID)
}

// Start emits the initial HandshakeRequest and moves to AwaitingHandshakeAck.
func (s *SenderFSM) Start() (codec.HandshakeRequest, error) {
	if s.state != SenderIdle {
		return codec.HandshakeRequest{}, newErr(ErrUnexpectedMessage, "sender already started")
	}
	s.state = SenderAwaitingHandshakeAck
	return codec.HandshakeRequest{
		Filename:   s.filename,
		FileSize:   s.fileSize,
		TransferID: s.transferID,
	}, nil
}

// HandleHandshakeResponse processes the receiver's reply to Start. When the
// transfer is accepted and the file is non-empty it returns the first
// FileChunk to send; for a zero-byte file it returns nil (no chunk exchange)
// and the FSM moves straight to AwaitingFinalAck.
func (s *SenderFSM) HandleHandshakeResponse(resp codec.HandshakeResponse) (*codec.FileChunk, *domain.Event, error) {
	if s.state != SenderAwaitingHandshakeAck {
		if s.state == SenderTerminal {
			return nil, nil, nil
		}
		return nil, nil, newErr(ErrUnexpectedMessage, "handshake response outside AwaitingHandshakeAck")
	}

	if !resp.Accepted {
		reason := "rejected"
		if resp.Reason != nil {
			reason = *resp.Reason
		}
		ev := s.fail(reason)
		return nil, &ev, nil
	}
	if resp.TransferID == nil {
		ev := s.fail("missing transfer id")
		return nil, &ev, nil
	}
	s.transferID = *resp.TransferID

	if s.total == 0 {
		s.state = SenderAwaitingFinalAck
		return nil, nil, nil
	}

	s.state = SenderSending
	chunk, err := s.buildChunk(0)
	if err != nil {
		ev := s.fail("local read error")
		return nil, &ev, nil
	}
	return &chunk, nil, nil
}

func (s *SenderFSM) buildChunk(index uint64) (codec.FileChunk, error) {
	data, err := s.source.ReadChunkAt(index, s.chunkSize)
	if err != nil {
		return codec.FileChunk{}, err
	}
	return codec.FileChunk{
		TransferID:  s.transferID,
		ChunkIndex:  index,
		TotalChunks: s.total,
		Data:        data,
		IsLast:      index == s.total-1,
	}, nil
}

// HandleChunkResponse advances to the next chunk, or to AwaitingFinalAck if
// the acknowledged chunk was the last one.
func (s *SenderFSM) HandleChunkResponse(resp codec.ChunkResponse) (*codec.FileChunk, *domain.Event, error) {
	if s.state != SenderSending {
		if s.state == SenderTerminal {
			return nil, nil, nil
		}
		return nil, nil, newErr(ErrUnexpectedMessage, "chunk response outside Sending")
	}
	if resp.ChunkIndex != s.chunkIndex {
		// Stale/duplicate response for a chunk we've already advanced past.
		return nil, nil, nil
	}
	if !resp.Success {
		reason := "chunk rejected"
		if resp.Error != nil {
			reason = *resp.Error
		}
		ev := s.fail(reason)
		return nil, &ev, nil
	}

	s.chunkIndex++
	if s.chunkIndex == s.total {
		s.state = SenderAwaitingFinalAck
		ev := domain.NewTransferProgress(s.transferID, s.progress())
		return nil, &ev, nil
	}

	chunk, err := s.buildChunk(s.chunkIndex)
	if err != nil {
		ev := s.fail("local read error")
		return nil, &ev, nil
	}
	ev := domain.NewTransferProgress(s.transferID, s.progress())
	return &chunk, &ev, nil
}

// HandleTransferComplete processes the receiver's final message.
func (s *SenderFSM) HandleTransferComplete(msg codec.TransferComplete) (domain.Event, error) {
	if s.state != SenderAwaitingFinalAck {
		if s.state == SenderTerminal {
			return domain.Event{}, nil
		}
		return domain.Event{}, newErr(ErrUnexpectedMessage, "transfer complete outside AwaitingFinalAck")
	}
	if msg.Success {
		return s.complete(), nil
	}
	reason := "remote failure"
	if msg.Error != nil {
		reason = *msg.Error
	}
	return s.fail(reason), nil
}

// Cancel emits a CancelTransfer and moves to Terminal{Cancelled}. Calling
// Cancel on an already-terminal transfer is a silent no-op.
func (s *SenderFSM) Cancel() (*codec.CancelTransfer, *domain.Event, error) {
	if s.state == SenderTerminal {
		return nil, nil, nil
	}
	s.state = SenderTerminal
	s.status = domain.Cancelled()
	ev := domain.NewTransferFailed(s.transferID, "cancelled")
	return &codec.CancelTransfer{TransferID: s.transferID}, &ev, nil
}

// HandleTimeout fails the transfer due to a deadline expiring in the given
// phase ("handshake", "chunk").
func (s *SenderFSM) HandleTimeout(phase string) (domain.Event, error) {
	if s.state == SenderTerminal {
		return domain.Event{}, nil
	}
	return s.fail("timeout"), nil
}

// HandleDisconnect fails the transfer when the underlying connection drops.
func (s *SenderFSM) HandleDisconnect() (domain.Event, error) {
	if s.state == SenderTerminal {
		return domain.Event{}, nil
	}
	return s.fail("disconnected"), nil
}
