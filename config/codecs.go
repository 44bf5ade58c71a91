package config

import (
	"fmt"

	"github.com/wudi/encgate/internal/codec"
)

// CompressorFactory builds the codec.Factory named by c.Codec.Name,
// panicking if the codec's own parameters are out of range (per the
// codec package's "no silent clamping" contract) and returning an
// error only for a config-shape problem (unknown codec name).
func (c CodecConfig) CompressorFactory() (codec.Factory, error) {
	switch c.Name {
	case "gzip":
		p := codec.DefaultGzipParams()
		if g := c.Gzip; g != nil {
			p.Level = gzipLevelFromString(g.CompressionLevel)
			p.Strategy = gzipStrategyFromString(g.CompressionStrategy)
			if g.MemoryLevel != 0 {
				p.MemoryLevel = g.MemoryLevel
			}
			if g.WindowBits != 0 {
				p.WindowBits = g.WindowBits
			}
		}
		return codec.NewGzipCompressorFactory(p), nil
	case "brotli":
		p := codec.DefaultBrotliParams()
		if b := c.Brotli; b != nil {
			if b.Quality != 0 {
				p.Quality = b.Quality
			}
			if b.WindowBits != 0 {
				p.WindowBits = b.WindowBits
			}
		}
		return codec.NewBrotliCompressorFactory(p), nil
	case "zstd":
		p := codec.DefaultZstdParams()
		if z := c.Zstd; z != nil && z.Level != 0 {
			p.Level = z.Level
		}
		return codec.NewZstdCompressorFactory(p), nil
	case "qatzip":
		p := codec.DefaultQatzipParams()
		if q := c.Qatzip; q != nil {
			if q.CompressionLevel != 0 {
				p.CompressionLevel = q.CompressionLevel
			}
			if q.HardwareBufferSize != 0 {
				p.HardwareBufferSize = q.HardwareBufferSize
			}
			if q.InputSizeThreshold != 0 {
				p.InputSizeThreshold = q.InputSizeThreshold
			}
			if q.StreamBufferSize != 0 {
				p.StreamBufferSize = q.StreamBufferSize
			}
		}
		return codec.NewQatzipCompressorFactory(p), nil
	default:
		return nil, fmt.Errorf("config: unknown compressor_library.name %q", c.Name)
	}
}

// DecompressorFactory builds the codec.DecompressorFactory named by
// c.Name.
func (c CodecConfig) DecompressorFactory() (codec.DecompressorFactory, error) {
	switch c.Name {
	case "gzip":
		wb := 0
		if c.Gzip != nil {
			wb = c.Gzip.WindowBits
		}
		return codec.NewGzipDecompressorFactory(codec.GzipDecompressorParams{WindowBits: wb}), nil
	case "brotli":
		return codec.NewBrotliDecompressorFactory(codec.BrotliDecompressorParams{}), nil
	case "zstd":
		return codec.NewZstdDecompressorFactory(codec.ZstdDecompressorParams{}), nil
	case "qatzip":
		return codec.NewQatzipDecompressorFactory(codec.QatzipDecompressorParams{}), nil
	default:
		return nil, fmt.Errorf("config: unknown decompressor_library.name %q", c.Name)
	}
}

func gzipLevelFromString(s string) codec.GzipLevel {
	switch s {
	case "BEST":
		return codec.GzipLevelBest
	case "SPEED":
		return codec.GzipLevelSpeed
	default:
		return codec.GzipLevelStandard
	}
}

func gzipStrategyFromString(s string) codec.GzipStrategy {
	switch s {
	case "RLE":
		return codec.GzipStrategyRLE
	case "FILTERED":
		return codec.GzipStrategyFiltered
	case "HUFFMAN":
		return codec.GzipStrategyHuffman
	default:
		return codec.GzipStrategyStandard
	}
}
