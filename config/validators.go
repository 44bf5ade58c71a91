package config

import (
	"errors"
	"fmt"
)

// Validate checks every route's filter configs, returning a single
// joined error naming every violation found (not just the first), so a
// misconfigured deployment fails with a complete diagnosis.
func (c *Config) Validate() error {
	var errs []error
	if c.Routes == nil {
		return nil
	}
	c.Routes.Range(func(id string, rf RouteFilters) bool {
		for i, cc := range rf.Compressors {
			if err := cc.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("route %s: compressor[%d]: %w", id, i, err))
			}
		}
		for i, dc := range rf.Decompressors {
			if err := dc.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("route %s: decompressor[%d]: %w", id, i, err))
			}
		}
		return true
	})
	return errors.Join(errs...)
}

// Validate checks a CompressorConfig's own fields, independent of its
// codec parameters (those are validated by the codec package's
// Params.Validate, which panics by contract rather than returning an
// error — see internal/codec).
func (c CompressorConfig) Validate() error {
	if c.ContentEncoding == "" {
		return errors.New("content_encoding is required")
	}
	if c.Codec.Name == "" {
		return fmt.Errorf("%s: compressor_library.name is required", c.ContentEncoding)
	}
	return nil
}

// Validate checks a DecompressorConfig's own fields.
func (c DecompressorConfig) Validate() error {
	if c.ContentEncoding == "" {
		return errors.New("content_encoding_name is required")
	}
	if c.Codec.Name == "" {
		return fmt.Errorf("%s: decompressor_library.name is required", c.ContentEncoding)
	}
	if c.MaxDecompressedSize < 0 {
		return fmt.Errorf("%s: max_decompressed_size must not be negative", c.ContentEncoding)
	}
	return nil
}
