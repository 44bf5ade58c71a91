package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// BrotliParams configures the brotli codec factory.
type BrotliParams struct {
	Quality int // [0..11], default 5, matching Envoy's BROTLI default
	// WindowBits is accepted for configuration-surface parity with the
	// other codecs. andybalholm/brotli's writer picks its own window
	// size from the quality level and exposes no public knob to override
	// it, so this is validated but not forwarded; see DESIGN.md.
	WindowBits int
}

// DefaultBrotliParams returns the spec's documented defaults.
func DefaultBrotliParams() BrotliParams {
	return BrotliParams{Quality: 5, WindowBits: 22}
}

// Validate enforces the codec's parameter contract. Out-of-range values
// panic rather than clamp.
func (p BrotliParams) Validate() {
	if p.Quality < 0 || p.Quality > 11 {
		panic(fmt.Sprintf("codec: brotli quality %d out of range [0,11]", p.Quality))
	}
	if p.WindowBits != 0 && (p.WindowBits < 10 || p.WindowBits > 24) {
		panic(fmt.Sprintf("codec: brotli window_bits %d out of range [10,24]", p.WindowBits))
	}
}

// NewBrotliCompressorFactory returns a Factory producing codecs that
// satisfy the Compressor contract over andybalholm/brotli.
func NewBrotliCompressorFactory(p BrotliParams) Factory {
	p.Validate()
	return func() (Compressor, error) {
		return &brotliCompressor{params: p}, nil
	}
}

type brotliCompressor struct {
	params   BrotliParams
	sink     *chunkSink
	w        *brotli.Writer
	finished bool
}

func (c *brotliCompressor) init(dst Buffer) {
	if c.w != nil {
		return
	}
	c.sink = newChunkSink(dst, defaultChunkSize)
	c.w = brotli.NewWriterLevel(c.sink, c.params.Quality)
}

func (c *brotliCompressor) Compress(buf Buffer, mode Mode) error {
	if c.finished {
		return fmt.Errorf("codec: brotli compressor used after Finish")
	}
	c.init(buf)
	c.sink.dst = buf
	if err := drainAll(buf, c.w); err != nil {
		return wrapFailure("brotli compress", err)
	}
	if mode == Finish {
		if err := c.w.Close(); err != nil {
			return wrapFailure("brotli finish", err)
		}
		c.finished = true
	} else {
		if err := c.w.Flush(); err != nil {
			return wrapFailure("brotli flush", err)
		}
	}
	c.sink.commit()
	return nil
}

// BrotliDecompressorParams configures the brotli decompressor. It has no
// fields today; brotli.NewReader auto-detects everything it needs from
// the stream. Kept as a type for symmetry with the other codecs' factory
// signatures.
type BrotliDecompressorParams struct{}

// NewBrotliDecompressorFactory returns a DecompressorFactory for brotli.
func NewBrotliDecompressorFactory(BrotliDecompressorParams) DecompressorFactory {
	return func() (Decompressor, error) {
		return &brotliDecompressor{}, nil
	}
}

// brotliDecompressor re-decodes the whole stream seen so far on each
// call; see the comment on gzipDecompressor for why.
type brotliDecompressor struct {
	accumulated []byte
	emitted     int
}

func (d *brotliDecompressor) Decompress(input Buffer, output Buffer) error {
	for _, s := range input.Slices() {
		d.accumulated = append(d.accumulated, s...)
	}

	r := brotli.NewReader(bytes.NewReader(d.accumulated))
	decoded, err := io.ReadAll(r)
	if err != nil && !isIncompleteStream(err) {
		return wrapFailure("brotli decompress", err)
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
