// Package config holds the declarative, immutable-after-build
// configuration surface for the compressor and decompressor filters:
// per-route policy (minimum content length, eligible content types,
// ETag handling, codec selection) loaded from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/wudi/encgate/internal/byroute"
)

// Direction selects which body(ies) a decompressor filter acts on.
type Direction int

const (
	Response Direction = iota
	Request
	ResponseAndRequest
)

func (d Direction) String() string {
	switch d {
	case Request:
		return "request"
	case ResponseAndRequest:
		return "response_and_request"
	default:
		return "response"
	}
}

// UnmarshalYAML implements yaml.Unmarshaler so config files can spell
// direction as a string.
func (d *Direction) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "", "response":
		*d = Response
	case "request":
		*d = Request
	case "response_and_request":
		*d = ResponseAndRequest
	default:
		return fmt.Errorf("config: unknown decompression_direction %q", s)
	}
	return nil
}

// DefaultContentTypes is the canonical content-type eligibility set
// (the 18-entry revision fixed as policy; see DESIGN.md).
var DefaultContentTypes = []string{
	"text/html", "text/plain", "text/css",
	"application/javascript", "application/x-javascript",
	"text/javascript", "text/x-javascript", "text/ecmascript",
	"text/js", "text/jscript", "text/x-js",
	"application/ecmascript", "application/x-json",
	"application/xml", "application/json",
	"image/svg+xml", "text/xml", "application/xhtml+xml",
}

// CompressorConfig is one compressor filter's immutable policy.
type CompressorConfig struct {
	ContentEncoding      string   `yaml:"content_encoding"`
	MinContentLength     uint32   `yaml:"min_content_length"`
	ContentTypes         []string `yaml:"content_types"`
	DisableOnEtag        bool     `yaml:"disable_on_etag_header"`
	RemoveAcceptEncoding bool     `yaml:"remove_accept_encoding_header"`
	FeatureGateKey       string   `yaml:"runtime_enabled"`
	Codec                CodecConfig `yaml:"compressor_library"`
}

// DecompressorConfig is one decompressor filter's immutable policy.
type DecompressorConfig struct {
	ContentEncoding string      `yaml:"content_encoding_name"`
	Direction       Direction   `yaml:"decompression_direction"`
	FeatureGateKey  string      `yaml:"runtime_enabled"`
	MaxDecompressedSize int64  `yaml:"max_decompressed_size"`
	Codec           CodecConfig `yaml:"decompressor_library"`
}

// CodecConfig is a tagged union selecting one concrete codec and its
// parameters. Exactly one of the typed fields should be set, chosen by
// Name.
type CodecConfig struct {
	Name   string        `yaml:"name"`
	Gzip   *GzipConfig   `yaml:"gzip,omitempty"`
	Brotli *BrotliConfig `yaml:"brotli,omitempty"`
	Zstd   *ZstdConfig   `yaml:"zstd,omitempty"`
	Qatzip *QatzipConfig `yaml:"qatzip,omitempty"`
}

// GzipConfig mirrors the distilled spec's gzip parameter surface.
type GzipConfig struct {
	CompressionLevel    string `yaml:"compression_level"`
	CompressionStrategy string `yaml:"compression_strategy"`
	MemoryLevel         int    `yaml:"memory_level"`
	WindowBits          int    `yaml:"window_bits"`
}

// BrotliConfig mirrors the distilled spec's brotli parameter surface.
type BrotliConfig struct {
	Quality    int `yaml:"quality"`
	WindowBits int `yaml:"window_bits"`
}

// ZstdConfig configures the zstd codec.
type ZstdConfig struct {
	Level int `yaml:"level"`
}

// QatzipConfig mirrors the distilled spec's qatzip parameter surface;
// see DESIGN.md for which fields are actually forwarded.
type QatzipConfig struct {
	CompressionLevel   int `yaml:"compression_level"`
	HardwareBufferSize int `yaml:"hardware_buffer_size"`
	InputSizeThreshold int `yaml:"input_size_threshold"`
	StreamBufferSize   int `yaml:"stream_buffer_size"`
}

// RouteFilters bundles the compressor/decompressor configs attached to
// one route, resolved through byroute.Manager.
type RouteFilters struct {
	Compressors   []CompressorConfig
	Decompressors []DecompressorConfig
}

// Config is the top-level configuration document. Routes is resolved
// from Raw after parsing, into the per-route store every request
// consults to find its effective compressor/decompressor policy.
// Defaults holds listener-level filter configs, keyed by
// content_encoding, that every route's own entries are layered on top
// of via mergeCompressorConfig/mergeDecompressorConfig before Routes is
// populated.
type Config struct {
	Routes   *byroute.Manager[RouteFilters] `yaml:"-"`
	Raw      []RouteEntry                   `yaml:"routes"`
	Defaults RouteFilters                   `yaml:"defaults"`
}

// RouteEntry is one route's configuration as it appears in YAML.
type RouteEntry struct {
	ID            string              `yaml:"id"`
	Compressors   []CompressorConfig  `yaml:"compressors"`
	Decompressors []DecompressorConfig `yaml:"decompressors"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Routes = byroute.New[RouteFilters]()
	for _, r := range cfg.Raw {
		cfg.Routes.Add(r.ID, applyDefaults(cfg.Defaults, RouteFilters{
			Compressors:   r.Compressors,
			Decompressors: r.Decompressors,
		}))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults layers each route-level filter config over the
// listener-level default sharing its content_encoding, via
// mergeCompressorConfig/mergeDecompressorConfig; a route-level entry
// with no matching default is kept as-is.
func applyDefaults(defaults, route RouteFilters) RouteFilters {
	compressorDefaults := make(map[string]CompressorConfig, len(defaults.Compressors))
	for _, d := range defaults.Compressors {
		compressorDefaults[d.ContentEncoding] = d
	}
	merged := RouteFilters{
		Compressors:   make([]CompressorConfig, len(route.Compressors)),
		Decompressors: make([]DecompressorConfig, len(route.Decompressors)),
	}
	for i, cc := range route.Compressors {
		if d, ok := compressorDefaults[cc.ContentEncoding]; ok {
			cc = mergeCompressorConfig(d, cc)
		}
		merged.Compressors[i] = cc
	}

	decompressorDefaults := make(map[string]DecompressorConfig, len(defaults.Decompressors))
	for _, d := range defaults.Decompressors {
		decompressorDefaults[d.ContentEncoding] = d
	}
	for i, dc := range route.Decompressors {
		if d, ok := decompressorDefaults[dc.ContentEncoding]; ok {
			dc = mergeDecompressorConfig(d, dc)
		}
		merged.Decompressors[i] = dc
	}
	return merged
}
