package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taisirhassan/cipherstream/internal/codec"
	"github.com/taisirhassan/cipherstream/internal/domain"
)

func TestReceiverHappyPathSmallFile(t *testing.T) {
	sink := newMemorySink(5)
	r, complete, startEv := NewReceiverFSM("T1", "peer-1", "hello.txt", 5, 1024*1024, sink)
	assert.Nil(t, complete)
	assert.Equal(t, domain.EventTransferStarted, startEv.Type)
	assert.Equal(t, ReceiverReceiving, r.State())

	ack, complete, ev, err := r.HandleFileChunk(codec.FileChunk{TransferID: "T1", ChunkIndex: 0, TotalChunks: 1, Data: []byte("hello"), IsLast: true})
	require.NoError(t, err)
	assert.True(t, ack.Success)
	require.NotNil(t, complete)
	assert.True(t, complete.Success)
	require.NotNil(t, ev)
	assert.Equal(t, domain.EventTransferComplete, ev.Type)
	assert.Equal(t, ReceiverTerminal, r.State())
	assert.True(t, sink.finalized)
	assert.Equal(t, []byte("hello"), sink.buf)
}

func TestReceiverZeroByteFile(t *testing.T) {
	sink := newMemorySink(0)
	r, complete, ev := NewReceiverFSM("T2", "peer-1", "empty.txt", 0, 1024, sink)
	require.NotNil(t, complete)
	assert.True(t, complete.Success)
	assert.Equal(t, domain.EventTransferComplete, ev.Type)
	assert.Equal(t, ReceiverTerminal, r.State())
	assert.True(t, sink.finalized)
}

func TestReceiverChunkForUnknownTransfer(t *testing.T) {
	sink := newMemorySink(5)
	r, _, _ := NewReceiverFSM("T3", "peer-1", "a.bin", 5, 1024, sink)

	ack, complete, ev, err := r.HandleFileChunk(codec.FileChunk{TransferID: "other", ChunkIndex: 0, Data: []byte("x")})
	require.NoError(t, err)
	assert.False(t, ack.Success)
	require.NotNil(t, ack.Error)
	assert.Equal(t, "unknown transfer", *ack.Error)
	assert.Nil(t, complete)
	assert.Nil(t, ev)
	assert.Equal(t, ReceiverReceiving, r.State())
}

func TestReceiverOutOfOrderChunk(t *testing.T) {
	sink := newMemorySink(10)
	r, _, _ := NewReceiverFSM("T4", "peer-1", "a.bin", 10, 5, sink)

	ack, _, _, err := r.HandleFileChunk(codec.FileChunk{TransferID: "T4", ChunkIndex: 1, Data: []byte("xxxxx")})
	require.NoError(t, err)
	assert.False(t, ack.Success)
	assert.Equal(t, "out of order chunk", *ack.Error)
}

func TestReceiverWriteFailure(t *testing.T) {
	sink := newMemorySink(5)
	sink.failWrite = true
	r, _, _ := NewReceiverFSM("T5", "peer-1", "a.bin", 5, 1024, sink)

	ack, complete, ev, err := r.HandleFileChunk(codec.FileChunk{TransferID: "T5", ChunkIndex: 0, Data: []byte("hello"), IsLast: true})
	require.NoError(t, err)
	assert.False(t, ack.Success)
	require.NotNil(t, complete)
	assert.False(t, complete.Success)
	require.NotNil(t, ev)
	assert.Equal(t, domain.EventTransferFailed, ev.Type)
	assert.Equal(t, ReceiverTerminal, r.State())
}

func TestReceiverCancel(t *testing.T) {
	sink := newMemorySink(10)
	r, _, _ := NewReceiverFSM("T6", "peer-1", "a.bin", 10, 5, sink)

	complete, ev, err := r.HandleCancel(codec.CancelTransfer{TransferID: "T6"})
	require.NoError(t, err)
	require.NotNil(t, complete)
	assert.False(t, complete.Success)
	assert.Equal(t, "cancelled by sender", *complete.Error)
	require.NotNil(t, ev)
	assert.Equal(t, ReceiverTerminal, r.State())
	assert.True(t, sink.aborted)

	// Idempotent: a second cancel is a silent no-op.
	complete2, ev2, err := r.HandleCancel(codec.CancelTransfer{TransferID: "T6"})
	require.NoError(t, err)
	assert.Nil(t, complete2)
	assert.Nil(t, ev2)
}

func TestReceiverChunkWhileAwaitingHandshake(t *testing.T) {
	r := &ReceiverFSM{transferID: "T7", state: ReceiverAwaitingHandshake, chunkSize: 1024}
	ack, complete, ev, err := r.HandleFileChunk(codec.FileChunk{TransferID: "T7", ChunkIndex: 0, Data: []byte("x")})
	require.NoError(t, err)
	assert.False(t, ack.Success)
	assert.Equal(t, "no handshake", *ack.Error)
	assert.Nil(t, complete)
	assert.Nil(t, ev)
}

func TestReceiverMultiChunkFinalizesOnLastIndex(t *testing.T) {
	sink := newMemorySink(10)
	r, _, _ := NewReceiverFSM("T8", "peer-1", "a.bin", 10, 5, sink)

	ack, complete, ev, err := r.HandleFileChunk(codec.FileChunk{TransferID: "T8", ChunkIndex: 0, Data: []byte("aaaaa")})
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Nil(t, complete)
	require.NotNil(t, ev)
	assert.Equal(t, domain.EventTransferProgress, ev.Type)

	ack, complete, ev, err = r.HandleFileChunk(codec.FileChunk{TransferID: "T8", ChunkIndex: 1, Data: []byte("bbbbb"), IsLast: true})
	require.NoError(t, err)
	assert.True(t, ack.Success)
	require.NotNil(t, complete)
	assert.True(t, complete.Success)
	require.NotNil(t, ev)
	assert.Equal(t, domain.EventTransferComplete, ev.Type)
	assert.Equal(t, []byte("aaaaabbbbb"), sink.buf)
}

func TestReceiverDisconnect(t *testing.T) {
	sink := newMemorySink(10)
	r, _, _ := NewReceiverFSM("T9", "peer-1", "a.bin", 10, 5, sink)

	ev, err := r.HandleDisconnect()
	require.NoError(t, err)
	assert.Equal(t, "disconnected", ev.Reason)
	assert.True(t, sink.aborted)
	assert.Equal(t, ReceiverTerminal, r.State())
}
