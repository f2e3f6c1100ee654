// Package codec implements the cipherstream wire format: a 4-byte
// big-endian length prefix (see frame.go) around a deterministic,
// length-delimited binary encoding of the tagged request/response
// messages defined by spec.md §4.1. The encoding is hand-rolled rather
// than JSON (which the teacher's pkg/p2p/protocols/protocols.go uses for
// its generic Message envelope) because spec.md mandates a bounded,
// round-trip-exact binary format for wire stability.
package codec

import (
	"bytes"
	"encoding/binary"
)

// Tag identifies the wire variant of a Message.
type Tag byte

const (
	TagHandshakeRequest  Tag = 1
	TagFileChunk         Tag = 2
	TagCancelTransfer    Tag = 3
	TagHandshakeResponse Tag = 17
	TagChunkResponse     Tag = 18
	TagTransferComplete  Tag = 19
)

func (t Tag) isHandshake() bool {
	return t == TagHandshakeRequest || t == TagHandshakeResponse
}

// Message is satisfied by every wire-level request/response value.
type Message interface {
	Tag() Tag
	encode(buf *bytes.Buffer)
}

// HandshakeRequest proposes a new file transfer to a receiver.
type HandshakeRequest struct {
	Filename   string
	FileSize   uint64
	TransferID string
}

func (HandshakeRequest) Tag() Tag { return TagHandshakeRequest }

func (m HandshakeRequest) encode(buf *bytes.Buffer) {
	writeString(buf, m.Filename)
	writeUint64(buf, m.FileSize)
	writeString(buf, m.TransferID)
}

// FileChunk carries one chunk of file data.
type FileChunk struct {
	TransferID  string
	ChunkIndex  uint64
	TotalChunks uint64
	Data        []byte
	IsLast      bool
}

func (FileChunk) Tag() Tag { return TagFileChunk }

func (m FileChunk) encode(buf *bytes.Buffer) {
	writeString(buf, m.TransferID)
	writeUint64(buf, m.ChunkIndex)
	writeUint64(buf, m.TotalChunks)
	writeBytes(buf, m.Data)
	writeBool(buf, m.IsLast)
}

// CancelTransfer requests that an in-flight transfer be aborted.
type CancelTransfer struct {
	TransferID string
}

func (CancelTransfer) Tag() Tag { return TagCancelTransfer }

func (m CancelTransfer) encode(buf *bytes.Buffer) {
	writeString(buf, m.TransferID)
}

// HandshakeResponse answers a HandshakeRequest.
type HandshakeResponse struct {
	Accepted   bool
	Reason     *string
	TransferID *string
}

func (HandshakeResponse) Tag() Tag { return TagHandshakeResponse }

func (m HandshakeResponse) encode(buf *bytes.Buffer) {
	writeBool(buf, m.Accepted)
	writeOptString(buf, m.Reason)
	writeOptString(buf, m.TransferID)
}

// ChunkResponse acknowledges (or rejects) one FileChunk.
type ChunkResponse struct {
	TransferID string
	ChunkIndex uint64
	Success    bool
	Error      *string
}

func (ChunkResponse) Tag() Tag { return TagChunkResponse }

func (m ChunkResponse) encode(buf *bytes.Buffer) {
	writeString(buf, m.TransferID)
	writeUint64(buf, m.ChunkIndex)
	writeBool(buf, m.Success)
	writeOptString(buf, m.Error)
}

// TransferComplete is the final, terminal message of a transfer.
type TransferComplete struct {
	TransferID string
	Success    bool
	Error      *string
}

func (TransferComplete) Tag() Tag { return TagTransferComplete }

func (m TransferComplete) encode(buf *bytes.Buffer) {
	writeString(buf, m.TransferID)
	writeBool(buf, m.Success)
	writeOptString(buf, m.Error)
}

// Encode serializes msg to its canonical byte representation (the frame
// payload; the 4-byte length prefix is added by WriteFrame separately).
// Encoding is deterministic: the same value always produces the same bytes.
func Encode(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(msg.Tag()))
	msg.encode(&buf)

	out := buf.Bytes()
	if len(out) > MaxFrameLen {
		return nil, invalidFrame("encoded message length %d exceeds maximum %d", len(out), MaxFrameLen)
	}
	if msg.Tag().isHandshake() && len(out) > MaxHandshakeLen {
		return nil, invalidFrame("encoded handshake length %d exceeds maximum %d", len(out), MaxHandshakeLen)
	}
	return out, nil
}

// Decode parses a frame payload (as returned by ReadFrame) into its Message.
func Decode(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return nil, malformedPayload("empty payload")
	}
	tag := Tag(payload[0])
	if tag.isHandshake() && len(payload) > MaxHandshakeLen {
		return nil, invalidFrame("handshake payload length %d exceeds maximum %d", len(payload), MaxHandshakeLen)
	}

	r := &reader{buf: payload[1:]}
	var msg Message
	var err error

	switch tag {
	case TagHandshakeRequest:
		msg, err = decodeHandshakeRequest(r)
	case TagFileChunk:
		msg, err = decodeFileChunk(r)
	case TagCancelTransfer:
		msg, err = decodeCancelTransfer(r)
	case TagHandshakeResponse:
		msg, err = decodeHandshakeResponse(r)
	case TagChunkResponse:
		msg, err = decodeChunkResponse(r)
	case TagTransferComplete:
		msg, err = decodeTransferComplete(r)
	default:
		return nil, unknownVariant("unrecognized tag %d", tag)
	}
	if err != nil {
		return nil, err
	}
	if !r.exhausted() {
		return nil, malformedPayload("trailing bytes after decoding tag %d", tag)
	}
	return msg, nil
}

func decodeHandshakeRequest(r *reader) (Message, error) {
	filename, err := r.readString()
	if err != nil {
		return nil, err
	}
	size, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	transferID, err := r.readString()
	if err != nil {
		return nil, err
	}
	return HandshakeRequest{Filename: filename, FileSize: size, TransferID: transferID}, nil
}

func decodeFileChunk(r *reader) (Message, error) {
	transferID, err := r.readString()
	if err != nil {
		return nil, err
	}
	idx, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	total, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	data, err := r.readBytes()
	if err != nil {
		return nil, err
	}
	isLast, err := r.readBool()
	if err != nil {
		return nil, err
	}
	return FileChunk{TransferID: transferID, ChunkIndex: idx, TotalChunks: total, Data: data, IsLast: isLast}, nil
}

func decodeCancelTransfer(r *reader) (Message, error) {
	transferID, err := r.readString()
	if err != nil {
		return nil, err
	}
	return CancelTransfer{TransferID: transferID}, nil
}

func decodeHandshakeResponse(r *reader) (Message, error) {
	accepted, err := r.readBool()
	if err != nil {
		return nil, err
	}
	reason, err := r.readOptString()
	if err != nil {
		return nil, err
	}
	transferID, err := r.readOptString()
	if err != nil {
		return nil, err
	}
	return HandshakeResponse{Accepted: accepted, Reason: reason, TransferID: transferID}, nil
}

func decodeChunkResponse(r *reader) (Message, error) {
	transferID, err := r.readString()
	if err != nil {
		return nil, err
	}
	idx, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	success, err := r.readBool()
	if err != nil {
		return nil, err
	}
	errStr, err := r.readOptString()
	if err != nil {
		return nil, err
	}
	return ChunkResponse{TransferID: transferID, ChunkIndex: idx, Success: success, Error: errStr}, nil
}

func decodeTransferComplete(r *reader) (Message, error) {
	transferID, err := r.readString()
	if err != nil {
		return nil, err
	}
	success, err := r.readBool()
	if err != nil {
		return nil, err
	}
	errStr, err := r.readOptString()
	if err != nil {
		return nil, err
	}
	return TransferComplete{TransferID: transferID, Success: success, Error: errStr}, nil
}

// --- low-level field codecs ---

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	buf.Write(length[:])
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeOptString(buf *bytes.Buffer, s *string) {
	if s == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeString(buf, *s)
}

// reader walks a payload slice, rejecting truncated or over-long fields.
type reader struct {
	buf []byte
}

func (r *reader) exhausted() bool { return len(r.buf) == 0 }

func (r *reader) readN(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, malformedPayload("expected %d bytes, have %d", n, len(r.buf))
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out, nil
}

func (r *reader) readUint64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) readBool() (bool, error) {
	b, err := r.readN(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, malformedPayload("invalid bool byte %d", b[0])
	}
}

func (r *reader) readBytes() ([]byte, error) {
	lb, err := r.readN(4)
	if err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lb)
	if uint64(length) > uint64(len(r.buf)) {
		return nil, malformedPayload("length-prefixed field declares %d bytes, %d remain", length, len(r.buf))
	}
	if length > MaxFrameLen {
		return nil, invalidFrame("embedded field length %d exceeds maximum %d", length, MaxFrameLen)
	}
	data, err := r.readN(int(length))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (r *reader) readString() (string, error) {
	b, err := r.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) readOptString() (*string, error) {
	b, err := r.readN(1)
	if err != nil {
		return nil, err
	}
	switch b[0] {
	case 0:
		return nil, nil
	case 1:
		s, err := r.readString()
		if err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, malformedPayload("invalid option byte %d", b[0])
	}
}
