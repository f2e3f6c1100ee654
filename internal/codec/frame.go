package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ProtocolID is the literal capability-negotiation string for this wire
// protocol, matching the teacher's convention of a versioned protocol.ID
// constant (e.g. FileTransferProtocol in pkg/p2p/protocols/protocols.go).
const ProtocolID = "/cipherstream/file-transfer/1.0.0"

const (
	// MaxFrameLen bounds any single frame, chunk payloads included.
	MaxFrameLen = 2 * 1024 * 1024
	// MaxHandshakeLen additionally bounds HandshakeRequest/HandshakeResponse frames.
	MaxHandshakeLen = 64 * 1024
)

const lengthPrefixSize = 4

// ReadFrame reads one length-prefixed frame from r, rejecting any declared
// length over MaxFrameLen before allocating the read buffer.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, invalidFrame("failed to read length prefix: %v", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameLen {
		return nil, invalidFrame("declared frame length %d exceeds maximum %d", length, MaxFrameLen)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, invalidFrame("truncated frame: declared %d bytes: %v", length, err)
	}
	return payload, nil
}

// WriteFrame writes payload as one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLen {
		return invalidFrame("payload length %d exceeds maximum %d", len(payload), MaxFrameLen)
	}

	var header [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("codec: write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("codec: write payload: %w", err)
	}
	return nil
}
