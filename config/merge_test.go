package config

import "testing"

func TestMergeCompressorScalarOverride(t *testing.T) {
	base := CompressorConfig{ContentEncoding: "gzip", MinContentLength: 30}
	overlay := CompressorConfig{MinContentLength: 100}

	merged := mergeCompressorConfig(base, overlay)
	if merged.ContentEncoding != "gzip" {
		t.Fatalf("ContentEncoding = %q, want gzip (unset in overlay)", merged.ContentEncoding)
	}
	if merged.MinContentLength != 100 {
		t.Fatalf("MinContentLength = %d, want 100 (overlay wins)", merged.MinContentLength)
	}
}

func TestMergeCompressorBoolAlwaysOverrides(t *testing.T) {
	base := CompressorConfig{DisableOnEtag: true}
	overlay := CompressorConfig{DisableOnEtag: false}

	merged := mergeCompressorConfig(base, overlay)
	if merged.DisableOnEtag != false {
		t.Fatal("bool fields should always take the overlay's value")
	}
}

func TestMergeCompressorSliceOverride(t *testing.T) {
	base := CompressorConfig{ContentTypes: []string{"text/html"}}
	overlay := CompressorConfig{}

	merged := mergeCompressorConfig(base, overlay)
	if len(merged.ContentTypes) != 1 || merged.ContentTypes[0] != "text/html" {
		t.Fatalf("empty overlay slice should not clear base, got %v", merged.ContentTypes)
	}

	overlay2 := CompressorConfig{ContentTypes: []string{"application/json"}}
	merged2 := mergeCompressorConfig(base, overlay2)
	if len(merged2.ContentTypes) != 1 || merged2.ContentTypes[0] != "application/json" {
		t.Fatalf("non-empty overlay slice should override, got %v", merged2.ContentTypes)
	}
}

func TestMergeCompressorNestedCodec(t *testing.T) {
	base := CompressorConfig{Codec: CodecConfig{Name: "gzip", Gzip: &GzipConfig{MemoryLevel: 5}}}
	overlay := CompressorConfig{Codec: CodecConfig{Name: "gzip"}}

	merged := mergeCompressorConfig(base, overlay)
	if merged.Codec.Name != "gzip" {
		t.Fatalf("Codec.Name = %q, want gzip", merged.Codec.Name)
	}
	if merged.Codec.Gzip == nil || merged.Codec.Gzip.MemoryLevel != 5 {
		t.Fatalf("Codec.Gzip = %+v, want base's Gzip params kept (overlay left it nil)", merged.Codec.Gzip)
	}
}

func TestMergeCompressorCodecOverlayWins(t *testing.T) {
	base := CompressorConfig{Codec: CodecConfig{Name: "gzip", Gzip: &GzipConfig{MemoryLevel: 5}}}
	overlay := CompressorConfig{Codec: CodecConfig{Name: "gzip", Gzip: &GzipConfig{MemoryLevel: 9}}}

	merged := mergeCompressorConfig(base, overlay)
	if merged.Codec.Gzip == nil || merged.Codec.Gzip.MemoryLevel != 9 {
		t.Fatalf("Codec.Gzip = %+v, want overlay's non-nil Gzip params to win", merged.Codec.Gzip)
	}
}

func TestMergeDecompressorScalarOverride(t *testing.T) {
	base := DecompressorConfig{ContentEncoding: "gzip", MaxDecompressedSize: 1 << 20}
	overlay := DecompressorConfig{MaxDecompressedSize: 1 << 22}

	merged := mergeDecompressorConfig(base, overlay)
	if merged.ContentEncoding != "gzip" {
		t.Fatalf("ContentEncoding = %q, want gzip (unset in overlay)", merged.ContentEncoding)
	}
	if merged.MaxDecompressedSize != 1<<22 {
		t.Fatalf("MaxDecompressedSize = %d, want overlay's value", merged.MaxDecompressedSize)
	}
}

func TestMergeDecompressorDirectionOverride(t *testing.T) {
	base := DecompressorConfig{Direction: Response}
	overlay := DecompressorConfig{Direction: ResponseAndRequest}

	merged := mergeDecompressorConfig(base, overlay)
	if merged.Direction != ResponseAndRequest {
		t.Fatalf("Direction = %v, want ResponseAndRequest", merged.Direction)
	}
}
