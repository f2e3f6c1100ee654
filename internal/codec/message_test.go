package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Message{
		HandshakeRequest{Filename: "report.pdf", FileSize: 123456, TransferID: "t-1"},
		FileChunk{TransferID: "t-1", ChunkIndex: 0, TotalChunks: 4, Data: []byte("hello"), IsLast: false},
		FileChunk{TransferID: "t-1", ChunkIndex: 3, TotalChunks: 4, Data: []byte{}, IsLast: true},
		CancelTransfer{TransferID: "t-1"},
		HandshakeResponse{Accepted: true, Reason: nil, TransferID: strPtr("t-1")},
		HandshakeResponse{Accepted: false, Reason: strPtr("busy"), TransferID: nil},
		ChunkResponse{TransferID: "t-1", ChunkIndex: 2, Success: true, Error: nil},
		ChunkResponse{TransferID: "t-1", ChunkIndex: 2, Success: false, Error: strPtr("checksum mismatch")},
		TransferComplete{TransferID: "t-1", Success: true, Error: nil},
		TransferComplete{TransferID: "t-1", Success: false, Error: strPtr("peer disconnected")},
	}

	for _, msg := range cases {
		encoded, err := Encode(msg)
		require.NoError(t, err)

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, msg, decoded)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrMalformedPayload))
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte{99, 0, 0, 0, 0})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrUnknownVariant))
}

func TestDecodeTruncatedField(t *testing.T) {
	// Tag byte for HandshakeRequest followed by a length prefix claiming 10
	// bytes but supplying none.
	payload := []byte{byte(TagHandshakeRequest), 0, 0, 0, 10}
	_, err := Decode(payload)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrMalformedPayload))
}

func TestDecodeTrailingBytes(t *testing.T) {
	encoded, err := Encode(CancelTransfer{TransferID: "t-1"})
	require.NoError(t, err)

	_, err = Decode(append(encoded, 0xFF))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrMalformedPayload))
}

func TestEncodeRejectsOversizedHandshake(t *testing.T) {
	msg := HandshakeRequest{
		Filename:   string(make([]byte, MaxHandshakeLen+1)),
		FileSize:   1,
		TransferID: "t-1",
	}
	_, err := Encode(msg)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidFrame))
}

func TestDecodeRejectsOversizedHandshake(t *testing.T) {
	// An oversized handshake payload must be rejected before
	// any field parsing is attempted.
	oversized := make([]byte, MaxHandshakeLen+1)
	oversized[0] = byte(TagHandshakeRequest)

	_, err := Decode(oversized)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidFrame))
}

func TestFileChunkAcceptsFullFrameSizedData(t *testing.T) {
	// A chunk's data may occupy almost the entire MaxFrameLen budget; only
	// the fixed-size header fields count against it.
	data := make([]byte, MaxFrameLen-64)
	msg := FileChunk{TransferID: "t-1", ChunkIndex: 0, TotalChunks: 1, Data: data, IsLast: true}

	encoded, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestFrameRoundTripThroughReaderWriter(t *testing.T) {
	msg := HandshakeRequest{Filename: "a.bin", FileSize: 42, TransferID: "t-9"}
	encoded, err := Encode(msg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, encoded))

	payload, err := ReadFrame(&buf)
	require.NoError(t, err)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestReadFrameRejectsOversizedLengthBeforeAllocating(t *testing.T) {
	var header [4]byte
	// Declare a length far beyond MaxFrameLen without ever supplying the body;
	// ReadFrame must reject based on the header alone.
	header[0] = 0x7F
	header[1] = 0xFF
	header[2] = 0xFF
	header[3] = 0xFF

	_, err := ReadFrame(bytes.NewReader(header[:]))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidFrame))
}

func TestReadFrameEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReadFrameTruncatedBody(t *testing.T) {
	var header [4]byte
	header[3] = 10 // declares 10 bytes, supplies none
	_, err := ReadFrame(bytes.NewReader(header[:]))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidFrame))
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxFrameLen+1))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidFrame))
	assert.Zero(t, buf.Len())
}
