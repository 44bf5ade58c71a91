package compressor

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wudi/encgate/config"
	"github.com/wudi/encgate/internal/featuregate"
	"github.com/wudi/encgate/internal/middleware"
)

func newGzipConfig(encoding string, minLen uint32) config.CompressorConfig {
	return config.CompressorConfig{
		ContentEncoding:  encoding,
		MinContentLength: minLen,
		Codec:            config.CodecConfig{Name: "gzip"},
	}
}

func mustMiddleware(t *testing.T, cfg config.CompressorConfig) func(http.Handler) http.Handler {
	t.Helper()
	mw, err := New(cfg, featuregate.StaticGate(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return mw
}

// S1 — basic gzip.
func TestS1BasicGzip(t *testing.T) {
	cfg := newGzipConfig("gzip", 30)
	mw := mustMiddleware(t, cfg)

	body := bytes.Repeat([]byte{'a'}, 256)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "256")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "deflate, gzip")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}
	if got := rr.Header().Get("Vary"); got != "Accept-Encoding" {
		t.Fatalf("Vary = %q, want Accept-Encoding", got)
	}
	if got := rr.Header().Get("Content-Length"); got != "" {
		t.Fatalf("Content-Length = %q, want absent", got)
	}
	gr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	got, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("read gunzipped body: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("gunzip(body) mismatch: got %d bytes, want %d", len(got), len(body))
	}
}

// S5 — no-transform blocks compression but Vary is not added.
func TestS5NoTransformBlocksCompression(t *testing.T) {
	cfg := newGzipConfig("gzip", 30)
	mw := mustMiddleware(t, cfg)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Cache-Control", "no-transform")
		w.Header().Set("Content-Length", "256")
		w.WriteHeader(http.StatusOK)
		w.Write(bytes.Repeat([]byte{'b'}, 256))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "" {
		t.Fatalf("Content-Encoding = %q, want absent", got)
	}
	if got := rr.Header().Get("Vary"); got != "" {
		t.Fatalf("Vary = %q, want absent", got)
	}
}

// Commit gate: Content-Length below min_content_length without chunked
// Transfer-Encoding must not commit.
func TestCommitGateContentTooSmall(t *testing.T) {
	cfg := newGzipConfig("gzip", 1024)
	mw := mustMiddleware(t, cfg)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "10")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("0123456789"))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "" {
		t.Fatalf("Content-Encoding = %q, want absent", got)
	}
	// Still content-type-eligible, so Vary is injected despite not
	// committing (distinguishes this case from no-transform /
	// content-type-ineligible, which suppress Vary).
	if got := rr.Header().Get("Vary"); got != "Accept-Encoding" {
		t.Fatalf("Vary = %q, want Accept-Encoding even though not committed", got)
	}
}

// Commit gate: chunked Transfer-Encoding allows compression even when
// size is unknown.
func TestCommitGateChunkedAllowsUnknownSize(t *testing.T) {
	cfg := newGzipConfig("gzip", 1024)
	mw := mustMiddleware(t, cfg)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Transfer-Encoding", "chunked")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("short"))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}
}

// Commit gate + header rewrite: strong ETag stripped, weak ETag kept.
func TestCommitGateETagHandling(t *testing.T) {
	cases := []struct {
		name     string
		etag     string
		wantKept bool
	}{
		{"strong etag stripped", `"abc123"`, false},
		{"weak etag preserved", `W/"abc123"`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newGzipConfig("gzip", 30)
			mw := mustMiddleware(t, cfg)

			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.Header().Set("Content-Length", "256")
				w.Header().Set("ETag", tc.etag)
				w.WriteHeader(http.StatusOK)
				w.Write(bytes.Repeat([]byte{'c'}, 256))
			}))

			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			got := rr.Header().Get("ETag")
			if tc.wantKept && got != tc.etag {
				t.Fatalf("ETag = %q, want kept as %q", got, tc.etag)
			}
			if !tc.wantKept && got != "" {
				t.Fatalf("ETag = %q, want stripped", got)
			}
		})
	}
}

// disable_on_etag: presence of any ETag blocks compression outright.
func TestCommitGateDisableOnEtag(t *testing.T) {
	cfg := newGzipConfig("gzip", 30)
	cfg.DisableOnEtag = true
	mw := mustMiddleware(t, cfg)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "256")
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
		w.Write(bytes.Repeat([]byte{'d'}, 256))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "" {
		t.Fatalf("Content-Encoding = %q, want absent", got)
	}
}

// Commit gate: Content-Type not in the eligible set blocks compression.
func TestCommitGateContentTypeIneligible(t *testing.T) {
	cfg := newGzipConfig("gzip", 30)
	mw := mustMiddleware(t, cfg)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", "256")
		w.WriteHeader(http.StatusOK)
		w.Write(bytes.Repeat([]byte{'e'}, 256))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "" {
		t.Fatalf("Content-Encoding = %q, want absent", got)
	}
	if got := rr.Header().Get("Vary"); got != "" {
		t.Fatalf("Vary = %q, want absent for a content-type-ineligible response", got)
	}
}

// Commit gate: an already-set Content-Encoding is semantic pass-through.
func TestCommitGateAlreadyEncoded(t *testing.T) {
	cfg := newGzipConfig("gzip", 30)
	mw := mustMiddleware(t, cfg)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "256")
		w.Header().Set("Content-Encoding", "identity")
		w.WriteHeader(http.StatusOK)
		w.Write(bytes.Repeat([]byte{'f'}, 256))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "identity" {
		t.Fatalf("Content-Encoding = %q, want untouched identity", got)
	}
}

// S2 — a single br filter is chosen over identity by q-value.
func TestS2BrotliChosenOverIdentity(t *testing.T) {
	cfg := config.CompressorConfig{
		ContentEncoding:  "br",
		MinContentLength: 30,
		Codec:            config.CodecConfig{Name: "brotli"},
	}
	mw := mustMiddleware(t, cfg)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "256")
		w.WriteHeader(http.StatusOK)
		w.Write(bytes.Repeat([]byte{'g'}, 256))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "identity;q=0.5, br;q=1.0")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "br" {
		t.Fatalf("Content-Encoding = %q, want br", got)
	}
}

// S3 — overshadowed: two compressor filters on the same stream, the
// higher-q encoding commits and the other is overshadowed.
func TestS3Overshadowed(t *testing.T) {
	cfg1 := newGzipConfig("test1", 30)
	cfg2 := newGzipConfig("test2", 30)
	mw1 := mustMiddleware(t, cfg1)
	mw2 := mustMiddleware(t, cfg2)

	handler := middleware.NewChain(mw1, mw2).Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "256")
		w.WriteHeader(http.StatusOK)
		w.Write(bytes.Repeat([]byte{'h'}, 256))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "test1;q=.5, test2;q=0.75")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// test2 has the higher q and is registered second but wins the
	// negotiation, so it is the one that ends up compressing.
	if got := rr.Header().Get("Content-Encoding"); got != "test2" {
		t.Fatalf("Content-Encoding = %q, want test2", got)
	}
}

// S4 — wildcard: the first-registered encoding wins.
func TestS4Wildcard(t *testing.T) {
	cfg1 := newGzipConfig("test1", 30)
	cfg2 := newGzipConfig("test2", 30)
	mw1 := mustMiddleware(t, cfg1)
	mw2 := mustMiddleware(t, cfg2)

	handler := middleware.NewChain(mw1, mw2).Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "256")
		w.WriteHeader(http.StatusOK)
		w.Write(bytes.Repeat([]byte{'i'}, 256))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "*")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "test1" {
		t.Fatalf("Content-Encoding = %q, want test1 (first by registration)", got)
	}
}
