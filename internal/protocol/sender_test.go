package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taisirhassan/cipherstream/internal/codec"
	"github.com/taisirhassan/cipherstream/internal/domain"
)

func strp(s string) *string { return &s }

func TestSenderHappyPathSmallFile(t *testing.T) {
	src := &memorySource{data: []byte("hello")}
	s := NewSenderFSM("proposed", "peer-1", "hello.txt", 1024*1024, src)

	req, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), req.FileSize)
	assert.Equal(t, SenderAwaitingHandshakeAck, s.State())

	chunk, ev, err := s.HandleHandshakeResponse(codec.HandshakeResponse{Accepted: true, TransferID: strp("T1")})
	require.NoError(t, err)
	require.Nil(t, ev)
	require.NotNil(t, chunk)
	assert.Equal(t, uint64(0), chunk.ChunkIndex)
	assert.True(t, chunk.IsLast)
	assert.Equal(t, []byte("hello"), chunk.Data)
	assert.Equal(t, "T1", s.TransferID())
	assert.Equal(t, SenderSending, s.State())

	next, progressEv, err := s.HandleChunkResponse(codec.ChunkResponse{TransferID: "T1", ChunkIndex: 0, Success: true})
	require.NoError(t, err)
	assert.Nil(t, next)
	require.NotNil(t, progressEv)
	assert.Equal(t, SenderAwaitingFinalAck, s.State())

	ev2, err := s.HandleTransferComplete(codec.TransferComplete{TransferID: "T1", Success: true})
	require.NoError(t, err)
	assert.Equal(t, domain.EventTransferComplete, ev2.Type)
	assert.Equal(t, SenderTerminal, s.State())
	assert.Equal(t, domain.StatusCompleted, s.Status().Kind)
}

func TestSenderMultiChunkFile(t *testing.T) {
	chunkSize := 1024 * 1024
	data := make([]byte, 2621440)
	for i := range data {
		data[i] = 0x42
	}
	src := &memorySource{data: data}
	s := NewSenderFSM("t", "peer-1", "big.bin", chunkSize, src)

	_, err := s.Start()
	require.NoError(t, err)

	chunk, _, err := s.HandleHandshakeResponse(codec.HandshakeResponse{Accepted: true, TransferID: strp("T2")})
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, uint64(0), chunk.ChunkIndex)
	assert.False(t, chunk.IsLast)
	assert.Len(t, chunk.Data, chunkSize)

	chunk, _, err = s.HandleChunkResponse(codec.ChunkResponse{TransferID: "T2", ChunkIndex: 0, Success: true})
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, uint64(1), chunk.ChunkIndex)
	assert.False(t, chunk.IsLast)

	chunk, _, err = s.HandleChunkResponse(codec.ChunkResponse{TransferID: "T2", ChunkIndex: 1, Success: true})
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, uint64(2), chunk.ChunkIndex)
	assert.True(t, chunk.IsLast)
	assert.Len(t, chunk.Data, 524288)

	next, _, err := s.HandleChunkResponse(codec.ChunkResponse{TransferID: "T2", ChunkIndex: 2, Success: true})
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, SenderAwaitingFinalAck, s.State())
}

func TestSenderHandshakeRejected(t *testing.T) {
	src := &memorySource{data: make([]byte, 2*1024*1024)}
	s := NewSenderFSM("t", "peer-1", "big.bin", 1024*1024, src)
	_, err := s.Start()
	require.NoError(t, err)

	chunk, ev, err := s.HandleHandshakeResponse(codec.HandshakeResponse{Accepted: false, Reason: strp("file too large")})
	require.NoError(t, err)
	assert.Nil(t, chunk)
	require.NotNil(t, ev)
	assert.Equal(t, domain.EventTransferFailed, ev.Type)
	assert.Equal(t, "file too large", ev.Reason)
	assert.Equal(t, domain.StatusFailed, s.Status().Kind)
}

func TestSenderHandshakeAcceptedWithoutTransferIDFails(t *testing.T) {
	src := &memorySource{data: []byte("x")}
	s := NewSenderFSM("t", "peer-1", "x.txt", 1024, src)
	_, err := s.Start()
	require.NoError(t, err)

	_, ev, err := s.HandleHandshakeResponse(codec.HandshakeResponse{Accepted: true, TransferID: nil})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "missing transfer id", ev.Reason)
}

func TestSenderZeroByteFile(t *testing.T) {
	src := &memorySource{data: []byte{}}
	s := NewSenderFSM("t", "peer-1", "empty.txt", 1024*1024, src)
	_, err := s.Start()
	require.NoError(t, err)

	chunk, ev, err := s.HandleHandshakeResponse(codec.HandshakeResponse{Accepted: true, TransferID: strp("T3")})
	require.NoError(t, err)
	assert.Nil(t, chunk)
	assert.Nil(t, ev)
	assert.Equal(t, SenderAwaitingFinalAck, s.State())

	ev2, err := s.HandleTransferComplete(codec.TransferComplete{TransferID: "T3", Success: true})
	require.NoError(t, err)
	assert.Equal(t, domain.EventTransferComplete, ev2.Type)
}

func TestSenderChunkRejected(t *testing.T) {
	src := &memorySource{data: []byte("data")}
	s := NewSenderFSM("t", "peer-1", "d.bin", 1024, src)
	_, _ = s.Start()
	_, _, _ = s.HandleHandshakeResponse(codec.HandshakeResponse{Accepted: true, TransferID: strp("T4")})

	next, ev, err := s.HandleChunkResponse(codec.ChunkResponse{TransferID: "T4", ChunkIndex: 0, Success: false, Error: strp("checksum mismatch")})
	require.NoError(t, err)
	assert.Nil(t, next)
	require.NotNil(t, ev)
	assert.Equal(t, "checksum mismatch", ev.Reason)
	assert.Equal(t, SenderTerminal, s.State())
}

func TestSenderCancelMidTransfer(t *testing.T) {
	src := &memorySource{data: []byte("data")}
	s := NewSenderFSM("t", "peer-1", "d.bin", 1024, src)
	_, _ = s.Start()
	_, _, _ = s.HandleHandshakeResponse(codec.HandshakeResponse{Accepted: true, TransferID: strp("T5")})

	cancel, ev, err := s.Cancel()
	require.NoError(t, err)
	require.NotNil(t, cancel)
	assert.Equal(t, "T5", cancel.TransferID)
	require.NotNil(t, ev)
	assert.Equal(t, domain.StatusCancelled, s.Status().Kind)

	// A second cancel is a silent no-op.
	cancel2, ev2, err := s.Cancel()
	require.NoError(t, err)
	assert.Nil(t, cancel2)
	assert.Nil(t, ev2)
}

func TestSenderLateChunkResponseIgnored(t *testing.T) {
	src := &memorySource{data: make([]byte, 3)}
	s := NewSenderFSM("t", "peer-1", "d.bin", 1, src)
	_, _ = s.Start()
	_, _, _ = s.HandleHandshakeResponse(codec.HandshakeResponse{Accepted: true, TransferID: strp("T6")})

	// Response for a chunk index other than the one in flight (index 0).
	next, ev, err := s.HandleChunkResponse(codec.ChunkResponse{TransferID: "T6", ChunkIndex: 5, Success: true})
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Nil(t, ev)
	assert.Equal(t, SenderSending, s.State())
}

func TestSenderDisconnect(t *testing.T) {
	src := &memorySource{data: []byte("data")}
	s := NewSenderFSM("t", "peer-1", "d.bin", 1024, src)
	_, _ = s.Start()
	_, _, _ = s.HandleHandshakeResponse(codec.HandshakeResponse{Accepted: true, TransferID: strp("T7")})

	ev, err := s.HandleDisconnect()
	require.NoError(t, err)
	assert.Equal(t, "disconnected", ev.Reason)
	assert.Equal(t, SenderTerminal, s.State())
}
