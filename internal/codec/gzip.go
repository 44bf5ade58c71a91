package codec

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// GzipLevel mirrors the compressor_library.level enum from the
// declarative configuration surface.
type GzipLevel int

const (
	GzipLevelStandard GzipLevel = iota
	GzipLevelBest
	GzipLevelSpeed
)

// GzipStrategy mirrors compressor_library.strategy. The stdlib
// compress/gzip codec does not expose zlib's strategy tuning (no RLE,
// filtered or Huffman-only mode), so this is accepted for
// configuration-contract completeness but has no effect on the
// generated bytes; see DESIGN.md.
type GzipStrategy int

const (
	GzipStrategyStandard GzipStrategy = iota
	GzipStrategyRLE
	GzipStrategyFiltered
	GzipStrategyHuffman
)

// GzipParams configures the gzip codec factory.
type GzipParams struct {
	Level        GzipLevel
	Strategy     GzipStrategy
	WindowBits   int // [9..15]; validated only, compress/gzip always uses its own fixed window
	MemoryLevel  int // [1..9], default 5; validated only, not forwarded
}

// DefaultGzipParams returns the spec's documented defaults.
func DefaultGzipParams() GzipParams {
	return GzipParams{
		Level:       GzipLevelStandard,
		Strategy:    GzipStrategyStandard,
		WindowBits:  15,
		MemoryLevel: 5,
	}
}

// Validate enforces the codec's parameter contract. Out-of-range values
// are a programmer error: the caller gets a diagnosable panic rather
// than silent clamping, per the "no silent clamping" rule.
func (p GzipParams) Validate() {
	if p.WindowBits != 0 && (p.WindowBits < 9 || p.WindowBits > 15) {
		panic(fmt.Sprintf("codec: gzip window_bits %d out of range [9,15]", p.WindowBits))
	}
	ml := p.MemoryLevel
	if ml == 0 {
		ml = 5
	}
	if ml < 1 || ml > 9 {
		panic(fmt.Sprintf("codec: gzip memory_level %d out of range [1,9]", p.MemoryLevel))
	}
}

func (p GzipParams) compressionLevel() int {
	switch p.Level {
	case GzipLevelBest:
		return gzip.BestCompression
	case GzipLevelSpeed:
		return gzip.BestSpeed
	default:
		return gzip.DefaultCompression
	}
}

// NewGzipCompressorFactory returns a Factory producing codecs that
// satisfy the Compressor contract over compress/gzip.
func NewGzipCompressorFactory(p GzipParams) Factory {
	p.Validate()
	return func() (Compressor, error) {
		return &gzipCompressor{params: p}, nil
	}
}

type gzipCompressor struct {
	params   GzipParams
	sink     *chunkSink
	w        *gzip.Writer
	finished bool
}

func (c *gzipCompressor) init(dst Buffer) {
	if c.w != nil {
		return
	}
	c.sink = newChunkSink(dst, defaultChunkSize)
	w, err := gzip.NewWriterLevel(c.sink, c.params.compressionLevel())
	if err != nil {
		// compressionLevel() only ever returns library-valid constants,
		// so an error here means Validate missed a contract violation.
		panic(fmt.Sprintf("codec: gzip init: %v", err))
	}
	c.w = w
}

func (c *gzipCompressor) Compress(buf Buffer, mode Mode) error {
	if c.finished {
		return fmt.Errorf("codec: gzip compressor used after Finish")
	}
	c.init(buf)
	c.sink.dst = buf
	if err := drainAll(buf, c.w); err != nil {
		return wrapFailure("gzip compress", err)
	}
	if mode == Finish {
		if err := c.w.Close(); err != nil {
			return wrapFailure("gzip finish", err)
		}
		c.finished = true
	} else {
		if err := c.w.Flush(); err != nil {
			return wrapFailure("gzip flush", err)
		}
	}
	c.sink.commit()
	return nil
}

// GzipDecompressorParams configures the gzip decompressor. WindowBits
// is accepted for configuration symmetry with the compressor; the
// stdlib gzip.Reader auto-detects its window from the stream header.
type GzipDecompressorParams struct {
	WindowBits int
}

// NewGzipDecompressorFactory returns a DecompressorFactory for gzip.
func NewGzipDecompressorFactory(GzipDecompressorParams) DecompressorFactory {
	return func() (Decompressor, error) {
		return &gzipDecompressor{}, nil
	}
}

// gzipDecompressor decodes a gzip stream that may arrive across several
// Decompress calls. The stdlib gzip.Reader has no notion of "pause and
// resume when more bytes show up later", so rather than driving it off a
// blocking reader this keeps every byte seen so far and re-runs the
// decode from the start on each call, emitting only the bytes beyond
// what a previous call already committed to output. It is quadratic in
// the number of Decompress calls for a given stream, which is an
// acceptable trade for a decoder that never has to be resumed mid-frame.
type gzipDecompressor struct {
	accumulated []byte
	emitted     int
}

func (d *gzipDecompressor) Decompress(input Buffer, output Buffer) error {
	for _, s := range input.Slices() {
		d.accumulated = append(d.accumulated, s...)
	}

	r, err := gzip.NewReader(bytes.NewReader(d.accumulated))
	if err != nil {
		if isIncompleteStream(err) {
			return nil
		}
		return wrapFailure("gzip decompress init", err)
	}

	decoded, err := io.ReadAll(r)
	if err != nil && !isIncompleteStream(err) {
		return wrapFailure("gzip decompress", err)
	}

	if len(decoded) <= d.emitted {
		return nil
	}
	sink := newChunkSink(output, defaultChunkSize)
	sink.Write(decoded[d.emitted:])
	sink.commit()
	d.emitted = len(decoded)
	return nil
}

// isIncompleteStream reports whether err indicates the compressed stream
// simply hasn't finished arriving yet, as opposed to being corrupt.
func isIncompleteStream(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
