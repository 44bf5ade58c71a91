// Package buffer implements the scatter-gather byte buffer the codec
// loop streams through: an ordered list of immutable byte slices that
// supports draining a prefix, appending new data, and moving the
// contents of one buffer into another without a full copy.
package buffer

import "sync"

// Buffer is an ordered sequence of byte slices. It is not safe for
// concurrent use; callers own exactly one goroutine's worth of stream
// at a time, matching the single-threaded-per-stream execution model
// the codec loop runs under.
type Buffer struct {
	chunks [][]byte
	length int
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Len returns the total number of bytes currently held.
func (b *Buffer) Len() int {
	return b.length
}

// Slices returns the buffer's chunks for read-only enumeration. The
// returned slices are only valid until the next mutating call
// (Append, Drain, MoveFrom, Reset) on this buffer.
func (b *Buffer) Slices() [][]byte {
	return b.chunks
}

// Append copies p into a new chunk at the end of the buffer.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	b.chunks = append(b.chunks, cp)
	b.length += len(p)
}

// AppendChunk appends a chunk the buffer takes ownership of without
// copying. Used by the codec loop to commit a filled working chunk.
func (b *Buffer) AppendChunk(p []byte) {
	if len(p) == 0 {
		return
	}
	b.chunks = append(b.chunks, p)
	b.length += len(p)
}

// Drain removes the first n bytes from the buffer, splitting a chunk
// if n falls inside it. It panics if n exceeds the buffer's length,
// since draining past the end of the buffer is a programmer error.
func (b *Buffer) Drain(n int) {
	if n == 0 {
		return
	}
	if n > b.length {
		panic("buffer: drain exceeds buffer length")
	}
	remaining := n
	i := 0
	for ; i < len(b.chunks); i++ {
		c := b.chunks[i]
		if remaining < len(c) {
			b.chunks[i] = c[remaining:]
			break
		}
		remaining -= len(c)
	}
	if i < len(b.chunks) {
		b.chunks = b.chunks[i:]
	} else {
		b.chunks = nil
	}
	b.length -= n
}

// Bytes materializes the buffer's contents as a single contiguous
// slice. Used at the edges (tests, fallback paths) where the caller
// needs one []byte; the codec loop itself never calls this.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, 0, b.length)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

// MoveFrom drains all bytes out of other and appends them to b,
// leaving other empty. No data is copied.
func (b *Buffer) MoveFrom(other *Buffer) {
	if other == nil || other.length == 0 {
		return
	}
	b.chunks = append(b.chunks, other.chunks...)
	b.length += other.length
	other.chunks = nil
	other.length = 0
}

// Reset empties the buffer so it can be reused.
func (b *Buffer) Reset() {
	b.chunks = nil
	b.length = 0
}

var pool = sync.Pool{New: func() any { return New() }}

// Get returns a Buffer from the shared pool, ready for use.
func Get() *Buffer {
	return pool.Get().(*Buffer)
}

// Put returns a Buffer to the shared pool. The buffer must not be used
// again by the caller afterward.
func Put(b *Buffer) {
	b.Reset()
	pool.Put(b)
}
