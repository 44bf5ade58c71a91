package config

import "testing"

func TestCompressorFactoryAllKnownCodecs(t *testing.T) {
	for _, name := range []string{"gzip", "brotli", "zstd", "qatzip"} {
		cc := CodecConfig{Name: name}
		f, err := cc.CompressorFactory()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if f == nil {
			t.Fatalf("%s: expected a non-nil factory", name)
		}
		c, err := f()
		if err != nil {
			t.Fatalf("%s: factory() error: %v", name, err)
		}
		if c == nil {
			t.Fatalf("%s: expected a non-nil compressor", name)
		}
	}
}

func TestDecompressorFactoryAllKnownCodecs(t *testing.T) {
	for _, name := range []string{"gzip", "brotli", "zstd", "qatzip"} {
		cc := CodecConfig{Name: name}
		f, err := cc.DecompressorFactory()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		d, err := f()
		if err != nil {
			t.Fatalf("%s: factory() error: %v", name, err)
		}
		if d == nil {
			t.Fatalf("%s: expected a non-nil decompressor", name)
		}
	}
}

func TestCompressorFactoryUnknownCodec(t *testing.T) {
	cc := CodecConfig{Name: "bogus"}
	if _, err := cc.CompressorFactory(); err == nil {
		t.Fatal("expected an error for an unknown codec name")
	}
}

func TestCompressorFactoryAppliesGzipOverrides(t *testing.T) {
	cc := CodecConfig{Name: "gzip", Gzip: &GzipConfig{
		CompressionLevel: "BEST",
		MemoryLevel:      9,
		WindowBits:       9,
	}}
	if _, err := cc.CompressorFactory(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompressorFactoryRejectsOutOfRangeGzipParams(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an out-of-range gzip param")
		}
	}()
	cc := CodecConfig{Name: "gzip", Gzip: &GzipConfig{WindowBits: 99}}
	cc.CompressorFactory()
}
