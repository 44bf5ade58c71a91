package config

// mergeCompressorConfig layers a route-level CompressorConfig over the
// listener-level default sharing its content_encoding: every non-zero
// overlay field wins, bools always take the overlay's value, and the
// nested codec config is merged field-by-field too. Unlike a
// reflection-driven generic merge, this only ever has to know about the
// two config shapes this package defines, so it is spelled out
// directly rather than walked generically.
func mergeCompressorConfig(base, overlay CompressorConfig) CompressorConfig {
	merged := base

	if overlay.ContentEncoding != "" {
		merged.ContentEncoding = overlay.ContentEncoding
	}
	if overlay.MinContentLength != 0 {
		merged.MinContentLength = overlay.MinContentLength
	}
	if len(overlay.ContentTypes) > 0 {
		merged.ContentTypes = overlay.ContentTypes
	}
	merged.DisableOnEtag = overlay.DisableOnEtag
	merged.RemoveAcceptEncoding = overlay.RemoveAcceptEncoding
	if overlay.FeatureGateKey != "" {
		merged.FeatureGateKey = overlay.FeatureGateKey
	}
	merged.Codec = mergeCodecConfig(base.Codec, overlay.Codec)

	return merged
}

// mergeDecompressorConfig is mergeCompressorConfig's counterpart for
// DecompressorConfig.
func mergeDecompressorConfig(base, overlay DecompressorConfig) DecompressorConfig {
	merged := base

	if overlay.ContentEncoding != "" {
		merged.ContentEncoding = overlay.ContentEncoding
	}
	if overlay.Direction != 0 {
		merged.Direction = overlay.Direction
	}
	if overlay.FeatureGateKey != "" {
		merged.FeatureGateKey = overlay.FeatureGateKey
	}
	if overlay.MaxDecompressedSize != 0 {
		merged.MaxDecompressedSize = overlay.MaxDecompressedSize
	}
	merged.Codec = mergeCodecConfig(base.Codec, overlay.Codec)

	return merged
}

// mergeCodecConfig merges the tagged-union codec config nested in both
// CompressorConfig and DecompressorConfig: a non-empty Name or a
// non-nil per-codec params pointer from overlay wins outright, since
// these are themselves already fully-specified units (no field-level
// merge within a GzipConfig/BrotliConfig/etc. is meaningful once the
// codec is named).
func mergeCodecConfig(base, overlay CodecConfig) CodecConfig {
	merged := base

	if overlay.Name != "" {
		merged.Name = overlay.Name
	}
	if overlay.Gzip != nil {
		merged.Gzip = overlay.Gzip
	}
	if overlay.Brotli != nil {
		merged.Brotli = overlay.Brotli
	}
	if overlay.Zstd != nil {
		merged.Zstd = overlay.Zstd
	}
	if overlay.Qatzip != nil {
		merged.Qatzip = overlay.Qatzip
	}

	return merged
}
