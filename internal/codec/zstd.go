package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ZstdParams configures the zstd codec factory.
type ZstdParams struct {
	Level int // [1..22], mapped onto zstd's coarser EncoderLevel scale
}

// DefaultZstdParams returns the spec's documented defaults.
func DefaultZstdParams() ZstdParams {
	return ZstdParams{Level: 3}
}

// Validate enforces the codec's parameter contract.
func (p ZstdParams) Validate() {
	if p.Level < 1 || p.Level > 22 {
		panic(fmt.Sprintf("codec: zstd level %d out of range [1,22]", p.Level))
	}
}

func (p ZstdParams) encoderLevel() zstd.EncoderLevel {
	return zstd.EncoderLevelFromZstd(p.Level)
}

// NewZstdCompressorFactory returns a Factory producing codecs that
// satisfy the Compressor contract over klauspost/compress/zstd.
func NewZstdCompressorFactory(p ZstdParams) Factory {
	p.Validate()
	return func() (Compressor, error) {
		return &zstdCompressor{params: p}, nil
	}
}

type zstdCompressor struct {
	params   ZstdParams
	sink     *chunkSink
	w        *zstd.Encoder
	finished bool
}

func (c *zstdCompressor) init(dst Buffer) error {
	if c.w != nil {
		return nil
	}
	c.sink = newChunkSink(dst, defaultChunkSize)
	enc, err := zstd.NewWriter(c.sink, zstd.WithEncoderLevel(c.params.encoderLevel()))
	if err != nil {
		return err
	}
	c.w = enc
	return nil
}

func (c *zstdCompressor) Compress(buf Buffer, mode Mode) error {
	if c.finished {
		return fmt.Errorf("codec: zstd compressor used after Finish")
	}
	if err := c.init(buf); err != nil {
		return wrapFailure("zstd init", err)
	}
	c.sink.dst = buf
	if err := drainAll(buf, c.w); err != nil {
		return wrapFailure("zstd compress", err)
	}
	if mode == Finish {
		if err := c.w.Close(); err != nil {
			return wrapFailure("zstd finish", err)
		}
		c.finished = true
	} else {
		if err := c.w.Flush(); err != nil {
			return wrapFailure("zstd flush", err)
		}
	}
	c.sink.commit()
	return nil
}

// ZstdDecompressorParams configures the zstd decompressor. It has no
// fields today; kept for factory-signature symmetry with the other
// codecs.
type ZstdDecompressorParams struct{}

// NewZstdDecompressorFactory returns a DecompressorFactory for zstd.
func NewZstdDecompressorFactory(ZstdDecompressorParams) DecompressorFactory {
	return func() (Decompressor, error) {
		return &zstdDecompressor{}, nil
	}
}

// zstdDecompressor re-decodes the whole stream seen so far on each call;
// see the comment on gzipDecompressor for why.
type zstdDecompressor struct {
	accumulated []byte
	emitted     int
}

func (d *zstdDecompressor) Decompress(input Buffer, output Buffer) error {
	for _, s := range input.Slices() {
		d.accumulated = append(d.accumulated, s...)
	}

	dec, err := zstd.NewReader(bytes.NewReader(d.accumulated))
	if err != nil {
		if isIncompleteStream(err) {
			return nil
		}
		return wrapFailure("zstd decompress init", err)
	}
	defer dec.Close()

	decoded, err := io.ReadAll(dec)
	if err != nil && !isIncompleteStream(err) && err != io.ErrClosedPipe {
		return wrapFailure("zstd decompress", err)
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
