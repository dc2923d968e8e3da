package protocol

// Buffer is a fixed-capacity frame buffer sized for the longest possible
// frame. Both the encoder and the state machines use it as scratch and
// output storage; it never grows, so the engine stays allocation-free after
// construction.
type Buffer struct {
	data [MaxFrameSize]byte
	n    int
}

// Append adds one byte.
func (b *Buffer) Append(c byte) error {
	if b.n >= len(b.data) {
		return Errorf(KindBufferOverflow, "frame exceeds %d bytes", len(b.data))
	}
	b.data[b.n] = c
	b.n++
	return nil
}

// AppendSlice adds p in full, or nothing on overflow.
func (b *Buffer) AppendSlice(p []byte) error {
	if b.n+len(p) > len(b.data) {
		return Errorf(KindBufferOverflow, "frame exceeds %d bytes", len(b.data))
	}
	copy(b.data[b.n:], p)
	b.n += len(p)
	return nil
}

// Bytes returns the filled portion. The slice aliases the buffer and is
// only valid until the next Append or Reset.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

// Len returns the number of bytes held.
func (b *Buffer) Len() int { return b.n }

// Reset empties the buffer.
func (b *Buffer) Reset() { b.n = 0 }
