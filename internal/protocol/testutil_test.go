package protocol

// memorySource is an in-memory ChunkSource used by tests so they never
// touch disk.
type memorySource struct {
	data []byte
}

func (m *memorySource) Size() uint64 { return uint64(len(m.data)) }

func (m *memorySource) ReadChunkAt(index uint64, chunkSize int) ([]byte, error) {
	offset := index * uint64(chunkSize)
	if offset >= uint64(len(m.data)) {
		return nil, newErr(ErrIO, "chunk offset past end of file")
	}
	end := offset + uint64(chunkSize)
	if end > uint64(len(m.data)) {
		end = uint64(len(m.data))
	}
	return m.data[offset:end], nil
}

// memorySink is an in-memory ChunkSink used by tests.
type memorySink struct {
	buf       []byte
	finalized bool
	aborted   bool
	failWrite bool
}

func newMemorySink(size int) *memorySink {
	return &memorySink{buf: make([]byte, size)}
}

func (m *memorySink) WriteChunkAt(index uint64, chunkSize int, data []byte) error {
	if m.failWrite {
		return newErr(ErrIO, "forced write failure")
	}
	offset := int(index) * chunkSize
	if offset+len(data) > len(m.buf) {
		grown := make([]byte, offset+len(data))
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *memorySink) Finalize() error {
	m.finalized = true
	return nil
}

func (m *memorySink) Abort() error {
	m.aborted = true
	return nil
}
