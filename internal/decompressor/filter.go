// Package decompressor implements the decompressor filter state
// machine: direction-selective decompression of request and/or
// response bodies, Accept-Encoding injection for response-side
// decompression, and Content-Encoding token stripping.
package decompressor

import (
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/wudi/encgate/config"
	"github.com/wudi/encgate/internal/buffer"
	"github.com/wudi/encgate/internal/codec"
	encerrors "github.com/wudi/encgate/internal/errors"
	"github.com/wudi/encgate/internal/featuregate"
	"github.com/wudi/encgate/internal/logging"
	"github.com/wudi/encgate/internal/middleware"
)

// defaultMaxDecompressedSize is the zip-bomb guard ceiling applied when
// a config doesn't set its own (50 MB, matching the teacher's
// decompress.go default).
const defaultMaxDecompressedSize int64 = 50 << 20

type filter struct {
	cfg     config.DecompressorConfig
	gate    featuregate.Gate
	factory codec.DecompressorFactory
	stats   *stats
}

// New builds a decompressor middleware from cfg.
func New(cfg config.DecompressorConfig, gate featuregate.Gate) (middleware.Middleware, error) {
	factory, err := cfg.Codec.DecompressorFactory()
	if err != nil {
		return nil, err
	}
	if cfg.MaxDecompressedSize <= 0 {
		cfg.MaxDecompressedSize = defaultMaxDecompressedSize
	}

	f := &filter{
		cfg:     cfg,
		gate:    gate,
		factory: factory,
		stats:   newStats(cfg.ContentEncoding),
	}
	return f.middleware, nil
}

func (f *filter) requestActive() bool {
	return f.cfg.Direction == config.Request || f.cfg.Direction == config.ResponseAndRequest
}

func (f *filter) responseActive() bool {
	return f.cfg.Direction == config.Response || f.cfg.Direction == config.ResponseAndRequest
}

func (f *filter) enabled() bool {
	return f.gate == nil || f.gate.Enabled(f.cfg.FeatureGateKey)
}

func (f *filter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.responseActive() {
			injectAcceptEncoding(r.Header, f.cfg.ContentEncoding)
		}

		if f.requestActive() && f.enabled() && !hasNoTransformToken(r.Header.Get("Cache-Control")) {
			if matchesFirstToken(r.Header.Get("Content-Encoding"), f.cfg.ContentEncoding) {
				dec, err := f.factory()
				if err != nil {
					logging.Debug("decompressor: request codec factory failed", zap.Error(err))
					f.stats.NotDecompressed("request")
				} else {
					r.Body = newDecompressingBody(r.Body, dec, f.cfg.MaxDecompressedSize)
					stripContentEncodingToken(r.Header)
					r.Header.Del("Content-Length")
					r.ContentLength = -1
					f.stats.Decompressed("request")
				}
			}
		}

		if !f.responseActive() {
			next.ServeHTTP(w, r)
			return
		}

		dw := &decompressingWriter{
			ResponseWriter: w,
			filter:         f,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(dw, r)
		dw.finalize()
	})
}

// injectAcceptEncoding prepends contentEncoding to the request's
// Accept-Encoding header, or moves it to the front if already present,
// so the upstream handler may return a body in that encoding for this
// filter to unwind.
func injectAcceptEncoding(h http.Header, contentEncoding string) {
	existing := h.Get("Accept-Encoding")
	if existing == "" {
		h.Set("Accept-Encoding", contentEncoding)
		return
	}
	tokens := strings.Split(existing, ",")
	out := make([]string, 0, len(tokens)+1)
	out = append(out, contentEncoding)
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" || strings.EqualFold(tok, contentEncoding) {
			continue
		}
		out = append(out, tok)
	}
	h.Set("Accept-Encoding", strings.Join(out, ", "))
}

func hasNoTransformToken(cacheControl string) bool {
	for _, tok := range strings.Split(cacheControl, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), "no-transform") {
			return true
		}
	}
	return false
}

// matchesFirstToken reports whether the first comma-separated,
// trimmed token of contentEncoding equals want, case-insensitively.
func matchesFirstToken(contentEncoding, want string) bool {
	if contentEncoding == "" {
		return false
	}
	first := contentEncoding
	if i := strings.IndexByte(contentEncoding, ','); i >= 0 {
		first = contentEncoding[:i]
	}
	return strings.EqualFold(strings.TrimSpace(first), want)
}

// stripContentEncodingToken removes the first comma-separated token of
// the Content-Encoding header (the caller has already verified via
// matchesFirstToken that it matches this filter's encoding), setting
// the header to the trimmed remainder or deleting it outright if
// nothing remains.
func stripContentEncodingToken(h http.Header) {
	ce := h.Get("Content-Encoding")
	parts := strings.SplitN(ce, ",", 2)
	if len(parts) != 2 {
		h.Del("Content-Encoding")
		return
	}
	remainder := strings.TrimSpace(parts[1])
	if remainder == "" {
		h.Del("Content-Encoding")
	} else {
		h.Set("Content-Encoding", remainder)
	}
}

// decompressingBody wraps a request body, decompressing it on the fly
// and enforcing the zip-bomb guard (maxSize).
type decompressingBody struct {
	src     io.ReadCloser
	dec     codec.Decompressor
	maxSize int64
	total   int64
	out     *buffer.Buffer
	eof     bool
	chunk   []byte
}

func newDecompressingBody(src io.ReadCloser, dec codec.Decompressor, maxSize int64) *decompressingBody {
	return &decompressingBody{
		src:     src,
		dec:     dec,
		maxSize: maxSize,
		out:     buffer.New(),
		chunk:   make([]byte, 32*1024),
	}
}

func (b *decompressingBody) Read(p []byte) (int, error) {
	for b.out.Len() == 0 {
		if b.eof {
			return 0, io.EOF
		}
		n, err := b.src.Read(b.chunk)
		if n > 0 {
			in := buffer.Get()
			in.Append(b.chunk[:n])
			decErr := b.dec.Decompress(in, b.out)
			buffer.Put(in)
			if decErr != nil {
				return 0, encerrors.Wrap(decErr, http.StatusBadRequest, "decompression failed")
			}
		}
		if err == io.EOF {
			b.eof = true
		} else if err != nil {
			return 0, err
		}
	}

	out := b.out.Bytes()
	n := copy(p, out)
	b.out.Drain(n)
	b.total += int64(n)
	if b.total > b.maxSize {
		return n, encerrors.ErrRequestEntityTooLarge
	}
	return n, nil
}

func (b *decompressingBody) Close() error {
	return b.src.Close()
}

// decompressingWriter wraps the response writer, decompressing a
// response body whose Content-Encoding matches this filter's, in place.
type decompressingWriter struct {
	http.ResponseWriter
	filter *filter

	headerWritten bool
	active        bool
	statusCode    int
	dec           codec.Decompressor
	total         int64
	tooLarge      bool
}

func (dw *decompressingWriter) WriteHeader(code int) {
	if dw.headerWritten {
		return
	}
	dw.headerWritten = true
	dw.statusCode = code

	h := dw.ResponseWriter.Header()
	if dw.filter.enabled() && !hasNoTransformToken(h.Get("Cache-Control")) &&
		matchesFirstToken(h.Get("Content-Encoding"), dw.filter.cfg.ContentEncoding) {
		dec, err := dw.filter.factory()
		if err != nil {
			logging.Debug("decompressor: response codec factory failed", zap.Error(err))
			dw.filter.stats.NotDecompressed("response")
		} else {
			dw.dec = dec
			dw.active = true
			stripContentEncodingToken(h)
			h.Del("Content-Length")
			dw.filter.stats.Decompressed("response")
		}
	}
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *decompressingWriter) Write(p []byte) (int, error) {
	if !dw.headerWritten {
		dw.WriteHeader(http.StatusOK)
	}
	if !dw.active {
		return dw.ResponseWriter.Write(p)
	}
	if dw.tooLarge {
		return len(p), nil
	}

	in := buffer.Get()
	defer buffer.Put(in)
	in.Append(p)

	out := buffer.Get()
	defer buffer.Put(out)
	if err := dw.dec.Decompress(in, out); err != nil {
		logging.Debug("decompressor: response decompress failed", zap.Error(err))
		return 0, encerrors.Wrap(err, http.StatusBadGateway, "decompression failed")
	}
	if out.Len() > 0 {
		n := out.Len()
		dw.total += int64(n)
		if dw.total > dw.filter.cfg.MaxDecompressedSize {
			dw.tooLarge = true
			logging.Warn("decompressor: response exceeded max decompressed size",
				zap.Int64("limit", dw.filter.cfg.MaxDecompressedSize))
			out.Drain(n)
			return len(p), nil
		}
		for _, s := range out.Slices() {
			dw.ResponseWriter.Write(s)
		}
		out.Drain(n)
	}
	return len(p), nil
}

func (dw *decompressingWriter) finalize() {
	if !dw.headerWritten {
		dw.WriteHeader(dw.statusCode)
	}
}

func (dw *decompressingWriter) Flush() {
	if f, ok := dw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
