package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// QatzipParams configures the qatzip codec factory. The real qatzip
// library offloads deflate to Intel QuickAssist hardware; no Go binding
// for that hardware path exists in the ecosystem, so this codec runs
// the same deflate algorithm in software via klauspost/compress/flate
// and accepts the hardware-specific knobs purely so configuration that
// targets real qatzip round-trips through this codec unchanged. See
// DESIGN.md for the full reasoning.
type QatzipParams struct {
	CompressionLevel   int // [1..9], forwarded to flate
	HardwareBufferSize int // accepted, not forwarded (no hardware path)
	InputSizeThreshold int // accepted, not forwarded
	StreamBufferSize   int // accepted, not forwarded
}

// DefaultQatzipParams returns the spec's documented defaults.
func DefaultQatzipParams() QatzipParams {
	return QatzipParams{
		CompressionLevel:   6,
		HardwareBufferSize: 64 * 1024,
		InputSizeThreshold: 1024,
		StreamBufferSize:   64 * 1024,
	}
}

// Validate enforces the codec's parameter contract.
func (p QatzipParams) Validate() {
	if p.CompressionLevel < 1 || p.CompressionLevel > 9 {
		panic(fmt.Sprintf("codec: qatzip compression_level %d out of range [1,9]", p.CompressionLevel))
	}
}

// NewQatzipCompressorFactory returns a Factory producing codecs that
// satisfy the Compressor contract over the software deflate stand-in.
func NewQatzipCompressorFactory(p QatzipParams) Factory {
	p.Validate()
	return func() (Compressor, error) {
		return &qatzipCompressor{params: p}, nil
	}
}

type qatzipCompressor struct {
	params   QatzipParams
	sink     *chunkSink
	w        *flate.Writer
	finished bool
}

func (c *qatzipCompressor) init(dst Buffer) error {
	if c.w != nil {
		return nil
	}
	c.sink = newChunkSink(dst, defaultChunkSize)
	w, err := flate.NewWriter(c.sink, c.params.CompressionLevel)
	if err != nil {
		return err
	}
	c.w = w
	return nil
}

func (c *qatzipCompressor) Compress(buf Buffer, mode Mode) error {
	if c.finished {
		return fmt.Errorf("codec: qatzip compressor used after Finish")
	}
	if err := c.init(buf); err != nil {
		return wrapFailure("qatzip init", err)
	}
	c.sink.dst = buf
	if err := drainAll(buf, c.w); err != nil {
		return wrapFailure("qatzip compress", err)
	}
	if mode == Finish {
		if err := c.w.Close(); err != nil {
			return wrapFailure("qatzip finish", err)
		}
		c.finished = true
	} else {
		if err := c.w.Flush(); err != nil {
			return wrapFailure("qatzip flush", err)
		}
	}
	c.sink.commit()
	return nil
}

// QatzipDecompressorParams configures the qatzip decompressor.
type QatzipDecompressorParams struct {
	StreamBufferSize int // accepted, not forwarded
}

// NewQatzipDecompressorFactory returns a DecompressorFactory for the
// deflate stand-in.
func NewQatzipDecompressorFactory(QatzipDecompressorParams) DecompressorFactory {
	return func() (Decompressor, error) {
		return &qatzipDecompressor{}, nil
	}
}

// qatzipDecompressor re-decodes the whole stream seen so far on each
// call; see the comment on gzipDecompressor for why.
type qatzipDecompressor struct {
	accumulated []byte
	emitted     int
}

func (d *qatzipDecompressor) Decompress(input Buffer, output Buffer) error {
	for _, s := range input.Slices() {
		d.accumulated = append(d.accumulated, s...)
	}

	r := flate.NewReader(bytes.NewReader(d.accumulated))
	defer r.Close()

	decoded, err := io.ReadAll(r)
	if err != nil && !isIncompleteStream(err) {
		return wrapFailure("qatzip decompress", err)
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
