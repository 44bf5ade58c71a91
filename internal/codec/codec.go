// Package codec defines the streaming compress/decompress contract the
// compressor and decompressor filters drive, plus the concrete codecs
// (gzip, brotli, zstd, qatzip) that satisfy it by wrapping a native
// encoder/decoder.
package codec

import (
	"fmt"
	"io"
)

// Mode selects how a Compressor should flush its internal state on a
// given call. Flush produces a self-contained, resumable block; Finish
// emits the terminal block and makes the Compressor unusable.
type Mode int

const (
	// Flush produces a resumable compressed block but keeps the codec
	// streaming.
	Flush Mode = iota
	// Finish emits the terminal compressed block. No further bytes may
	// be pushed into the codec afterward.
	Finish
)

func (m Mode) String() string {
	if m == Finish {
		return "finish"
	}
	return "flush"
}

// Buffer is the minimal surface the codec loop needs from a
// scatter-gather byte buffer, satisfied by *buffer.Buffer. Declaring it
// here (rather than importing the buffer package's concrete type into
// every codec) keeps the contract narrow, matching how the core
// consumes the byte-buffer abstraction through a few operations only.
type Buffer interface {
	Len() int
	Slices() [][]byte
	Drain(n int)
	AppendChunk(p []byte)
}

// Compressor is a streaming compressor over a scatter-gather buffer.
// Concrete compressors set up their native encoder once, on the first
// Compress call. After a Compress call with mode Finish, every further
// Compress call returns an error.
type Compressor interface {
	// Compress consumes the bytes currently in buf, drains them, and
	// appends the compressed output back onto buf.
	Compress(buf Buffer, mode Mode) error
}

// Decompressor is a streaming decompressor. The concrete decompressors
// keep every compressed byte passed in so far, so each new chunk is
// passed exactly once; each call appends all output that the bytes seen
// so far decode to and that an earlier call has not already emitted.
type Decompressor interface {
	// Decompress reads bytes from a scratch view of input and appends
	// decompressed bytes to output. It does not mutate input.
	Decompress(input Buffer, output Buffer) error
}

// Factory builds a fresh Compressor instance, one per response, as
// required by the "fresh instance per response" invariant in the
// filter configuration.
type Factory func() (Compressor, error)

// DecompressorFactory builds a fresh Decompressor instance per request
// or response body that needs decompressing.
type DecompressorFactory func() (Decompressor, error)

// defaultChunkSize is the default size of the codec loop's working
// chunk, per the streaming codec contract.
const defaultChunkSize = 4096

// chunkSink is an io.Writer that batches writes into fixed-size chunks
// and commits each full chunk directly onto a destination Buffer,
// avoiding full materialization of the compressed/decompressed output.
type chunkSink struct {
	dst       Buffer
	chunkSize int
	pending   []byte
}

func newChunkSink(dst Buffer, chunkSize int) *chunkSink {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &chunkSink{dst: dst, chunkSize: chunkSize}
}

func (s *chunkSink) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		if s.pending == nil {
			s.pending = make([]byte, 0, s.chunkSize)
		}
		room := s.chunkSize - len(s.pending)
		n := len(p)
		if n > room {
			n = room
		}
		s.pending = append(s.pending, p[:n]...)
		p = p[n:]
		if len(s.pending) == s.chunkSize {
			s.commit()
		}
	}
	return total, nil
}

// commit flushes whatever is pending (even a partial chunk) onto dst.
func (s *chunkSink) commit() {
	if len(s.pending) == 0 {
		return
	}
	s.dst.AppendChunk(s.pending)
	s.pending = nil
}

// codecFailure wraps a native-library error raised mid-stream; per the
// error handling design, this kind of failure is fatal for the response
// and not retried within the core.
type codecFailure struct {
	op  string
	err error
}

func (e *codecFailure) Error() string { return fmt.Sprintf("codec: %s: %v", e.op, e.err) }
func (e *codecFailure) Unwrap() error { return e.err }

func wrapFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &codecFailure{op: op, err: err}
}

// drainAll copies every slice of buf into w, then drains buf. Shared by
// all concrete compressors' Compress implementations.
func drainAll(buf Buffer, w io.Writer) error {
	for _, s := range buf.Slices() {
		if _, err := w.Write(s); err != nil {
			return err
		}
	}
	buf.Drain(buf.Len())
	return nil
}
