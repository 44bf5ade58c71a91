// Package compressor implements the compressor filter state machine:
// given a per-route CompressorConfig, it negotiates whether a response
// should be compressed, streams the body through a pluggable codec, and
// rewrites the headers a committed response requires (ETag, Vary,
// Content-Length, Content-Encoding). Transfer-Encoding is inspected by
// the commit gates but never rewritten.
package compressor

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wudi/encgate/config"
	"github.com/wudi/encgate/internal/buffer"
	"github.com/wudi/encgate/internal/codec"
	"github.com/wudi/encgate/internal/featuregate"
	"github.com/wudi/encgate/internal/logging"
	"github.com/wudi/encgate/internal/middleware"
	"github.com/wudi/encgate/internal/negotiate"
	"github.com/wudi/encgate/internal/stream"
)

// compressionTokens is the set of Transfer-Encoding/Content-Encoding
// tokens that a response being gated for commit must not already carry
// (gate 7 of §4.G).
var compressionTokens = map[string]bool{
	"gzip": true, "br": true, "deflate": true,
}

type filter struct {
	cfg          config.CompressorConfig
	gate         featuregate.Gate
	factory      codec.Factory
	contentTypes map[string]bool
	stats        *stats
}

// New builds a compressor middleware from cfg. gate resolves
// cfg.FeatureGateKey; pass featuregate.StaticGate(true) for "always
// on" when no gating is configured.
func New(cfg config.CompressorConfig, gate featuregate.Gate) (middleware.Middleware, error) {
	factory, err := cfg.Codec.CompressorFactory()
	if err != nil {
		return nil, err
	}

	types := cfg.ContentTypes
	if len(types) == 0 {
		types = config.DefaultContentTypes
	}
	ctSet := make(map[string]bool, len(types))
	for _, t := range types {
		ctSet[strings.ToLower(t)] = true
	}

	f := &filter{
		cfg:          cfg,
		gate:         gate,
		factory:      factory,
		contentTypes: ctSet,
		stats:        newStats(cfg.ContentEncoding),
	}

	minLen := cfg.MinContentLength
	if minLen == 0 {
		minLen = 30
	}
	f.cfg.MinContentLength = minLen

	return f.middleware, nil
}

func (f *filter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAE := r.Header["Accept-Encoding"]
		snapshot := r.Header.Get("Accept-Encoding")

		ctx, reg := stream.FromContext(r.Context())
		reg.Register(stream.Entry{
			ContentEncoding: f.cfg.ContentEncoding,
			ContentTypes:    f.contentTypes,
		})
		r = r.WithContext(ctx)

		skip := false
		if f.gate != nil && !f.gate.Enabled(f.cfg.FeatureGateKey) {
			skip = true
			f.stats.NotCompressed()
		} else if f.cfg.RemoveAcceptEncoding {
			r.Header.Del("Accept-Encoding")
		}

		cw := &compressingWriter{
			ResponseWriter:    w,
			filter:            f,
			reg:               reg,
			acceptEncoding:    snapshot,
			hasAcceptEncoding: hasAE,
			skip:              skip,
			statusCode:        http.StatusOK,
		}

		next.ServeHTTP(cw, r)
		cw.finalize()
	})
}

// compressingWriter wraps the response writer to intercept header and
// body writes, implementing §4.G's Start -> AcceptedForResponse ->
// Committed -> Draining -> Done state machine (and the Start ->
// Skipped -> Done path).
type compressingWriter struct {
	http.ResponseWriter
	filter *filter
	reg    *stream.Registry

	acceptEncoding    string
	hasAcceptEncoding bool

	skip          bool
	headerWritten bool
	committed     bool
	finished      bool
	statusCode    int
	codec         codec.Compressor
}

func (cw *compressingWriter) WriteHeader(code int) {
	if cw.headerWritten {
		return
	}
	cw.headerWritten = true
	cw.statusCode = code

	if cw.skip {
		cw.ResponseWriter.WriteHeader(code)
		return
	}

	committed, varyEligible := cw.evaluateCommit()
	if committed {
		cw.sanitizeHeaders()
		c, err := cw.filter.factory()
		if err != nil {
			logging.Debug("compressor: codec factory failed", zap.String("content_encoding", cw.filter.cfg.ContentEncoding), zap.Error(err))
			cw.skip = true
			cw.filter.stats.NotCompressed()
		} else {
			cw.codec = c
			cw.committed = true
			cw.filter.stats.Compressed()
		}
	} else {
		cw.skip = true
		cw.filter.stats.NotCompressed()
		// Vary still indexes the cache on Accept-Encoding even though
		// this response was not compressed, unless the refusal was
		// solely due to no-transform or content-type ineligibility
		// (§4.G: "Always insert Vary ... except when the commit is
		// refused solely because of no-transform or because the
		// response is content-type-ineligible").
		if varyEligible {
			injectVary(cw.ResponseWriter.Header())
		}
	}

	cw.ResponseWriter.WriteHeader(code)
}

func (cw *compressingWriter) Write(p []byte) (int, error) {
	if !cw.headerWritten {
		cw.WriteHeader(http.StatusOK)
	}
	if !cw.committed {
		return cw.ResponseWriter.Write(p)
	}

	cw.filter.stats.AddUncompressedBytes(len(p))

	buf := buffer.Get()
	defer buffer.Put(buf)
	buf.Append(p)
	if err := cw.codec.Compress(buf, codec.Flush); err != nil {
		logging.Debug("compressor: compress failed", zap.String("content_encoding", cw.filter.cfg.ContentEncoding), zap.Error(err))
		return 0, err
	}
	cw.drain(buf)
	return len(p), nil
}

// finalize emits the terminal Finish block. net/http's Handler model
// has no per-write end_stream flag, so unlike a filter chain with an
// explicit encodeData(..., end_stream) hook, every response here
// reaches its Finish flush the way the distilled spec's encodeTrailers
// does: after the body has been fully written, with no preceding
// end_stream-carrying data call.
func (cw *compressingWriter) finalize() {
	if !cw.headerWritten {
		cw.WriteHeader(cw.statusCode)
	}
	if !cw.committed || cw.finished {
		return
	}
	cw.finished = true
	buf := buffer.Get()
	defer buffer.Put(buf)
	if err := cw.codec.Compress(buf, codec.Finish); err != nil {
		logging.Debug("compressor: finish failed", zap.String("content_encoding", cw.filter.cfg.ContentEncoding), zap.Error(err))
		return
	}
	cw.drain(buf)
}

func (cw *compressingWriter) drain(buf *buffer.Buffer) {
	n := buf.Len()
	if n == 0 {
		return
	}
	for _, s := range buf.Slices() {
		cw.ResponseWriter.Write(s)
	}
	buf.Drain(n)
	cw.filter.stats.AddCompressedBytes(n)
}

// Flush implements http.Flusher so downstream middleware/handlers that
// flush partial writes still produce self-contained compressed blocks.
func (cw *compressingWriter) Flush() {
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// evaluateCommit runs the eight commit gates from §4.G against the
// headers set so far on the underlying ResponseWriter. It also reports
// varyEligible: whether Vary: Accept-Encoding should be injected when
// the response is not committed (true unless the sole disqualifier is
// no-transform or content-type ineligibility).
func (cw *compressingWriter) evaluateCommit() (committed, varyEligible bool) {
	f := cw.filter
	h := cw.ResponseWriter.Header()

	contentType := trimSemicolon(h.Get("Content-Type"))
	eligibleType := contentType == "" || len(f.contentTypes) == 0 || f.contentTypes[strings.ToLower(contentType)]
	noTransform := hasCacheControlToken(h.Get("Cache-Control"), "no-transform")
	varyEligible = eligibleType && !noTransform

	if !cw.hasAcceptEncoding {
		f.stats.NoAcceptHeader()
		return false, varyEligible
	}

	allowed := cw.allowedEntries(contentType)
	cached, ok := cw.reg.Decision()
	if !ok {
		// Negotiation winner is independent of which filter calls it;
		// using "" as the sentinel this-encoding yields a raw
		// classification (NotValid/Identity/Wildcard/Overshadowed) that
		// every chained filter derives its own stat from.
		winner, rawStat := negotiate.Decide(cw.acceptEncoding, allowed, "")
		cached = stream.CachedDecision{Encoding: winner, Stat: rawStat}
		cw.reg.SetDecision(cached)
	}

	stat := deriveStat(cached, f.cfg.ContentEncoding)
	f.stats.RecordHeaderStat(stat)

	negotiationOK := stat == negotiate.Used ||
		(stat == negotiate.Wildcard && strings.EqualFold(cached.Encoding, f.cfg.ContentEncoding))
	if !negotiationOK {
		return false, varyEligible
	}

	if h.Get("Content-Encoding") != "" {
		return false, varyEligible
	}

	if noTransform {
		return false, varyEligible
	}

	if !eligibleType {
		return false, varyEligible
	}

	if f.cfg.DisableOnEtag && h.Get("ETag") != "" {
		f.stats.NotCompressedEtag()
		return false, varyEligible
	}

	if transferEncodingBlocks(h.Get("Transfer-Encoding"), f.cfg.ContentEncoding) {
		return false, varyEligible
	}

	if !sizeEligible(h, f.cfg.MinContentLength) {
		f.stats.ContentLengthTooSmall()
		return false, varyEligible
	}

	return true, varyEligible
}

// allowedEntries builds the registration-ordered, content-type-filtered
// allowed map per §4.F step 1, using every registered filter's own
// content-type set (not just the calling filter's).
func (cw *compressingWriter) allowedEntries(contentType string) []negotiate.AllowedEntry {
	entries := cw.reg.Entries()
	allowed := make([]negotiate.AllowedEntry, 0, len(entries))
	for i, e := range entries {
		if contentType != "" && len(e.ContentTypes) > 0 && !e.ContentTypes[strings.ToLower(contentType)] {
			continue
		}
		allowed = append(allowed, negotiate.AllowedEntry{Name: e.ContentEncoding, Index: i})
	}
	return allowed
}

// deriveStat maps the stream-wide cached decision onto this filter's
// own HeaderStat, per the commentary in evaluateCommit.
func deriveStat(cached stream.CachedDecision, thisEncoding string) negotiate.HeaderStat {
	switch cached.Stat {
	case negotiate.NotValid, negotiate.Identity, negotiate.Wildcard:
		return cached.Stat
	default: // the raw call's Overshadowed stands for "some concrete winner"
		if strings.EqualFold(cached.Encoding, thisEncoding) {
			return negotiate.Used
		}
		return negotiate.Overshadowed
	}
}

// sanitizeHeaders applies the header rewrites required on commit:
// ETag stripping (unless weak), Vary injection, Content-Length
// removal, and Content-Encoding assignment.
func (cw *compressingWriter) sanitizeHeaders() {
	h := cw.ResponseWriter.Header()

	if et := h.Get("ETag"); et != "" && !isWeakETag(et) {
		h.Del("ETag")
	}

	injectVary(h)

	h.Del("Content-Length")
	h.Set("Content-Encoding", cw.filter.cfg.ContentEncoding)
}

func isWeakETag(etag string) bool {
	return strings.HasPrefix(etag, "W/") || strings.HasPrefix(etag, "w/")
}

// injectVary adds Accept-Encoding to Vary, de-duplicated
// case-insensitively on token, per §4.G.
func injectVary(h http.Header) {
	existing := h.Get("Vary")
	if existing == "" {
		h.Set("Vary", "Accept-Encoding")
		return
	}
	for _, tok := range strings.Split(existing, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), "Accept-Encoding") {
			return
		}
	}
	h.Set("Vary", existing+", Accept-Encoding")
}

func trimSemicolon(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

func hasCacheControlToken(cacheControl, token string) bool {
	for _, tok := range strings.Split(cacheControl, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), token) {
			return true
		}
	}
	return false
}

// transferEncodingBlocks reports whether Transfer-Encoding already
// carries gzip, br, deflate, or thisEncoding as a token (gate 7).
func transferEncodingBlocks(transferEncoding, thisEncoding string) bool {
	if transferEncoding == "" {
		return false
	}
	for _, tok := range strings.Split(transferEncoding, ",") {
		tok = strings.TrimSpace(strings.ToLower(tok))
		if compressionTokens[tok] || tok == strings.ToLower(thisEncoding) {
			return true
		}
	}
	return false
}

// sizeEligible implements gate 8: a declared Content-Length at or above
// minLen, or an unknown size signaled via chunked Transfer-Encoding.
func sizeEligible(h http.Header, minLen uint32) bool {
	if hasTransferEncodingToken(h.Get("Transfer-Encoding"), "chunked") {
		return true
	}
	cl := h.Get("Content-Length")
	if cl == "" {
		return false
	}
	n, err := strconv.ParseUint(cl, 10, 64)
	if err != nil {
		return false
	}
	return n >= uint64(minLen)
}

func hasTransferEncodingToken(transferEncoding, token string) bool {
	for _, tok := range strings.Split(transferEncoding, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), token) {
			return true
		}
	}
	return false
}
