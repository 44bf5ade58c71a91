// Package stream carries the per-HTTP-stream state that a chain of
// compressor filters on the same request shares: the ordered set of
// registered compressor configs and the negotiation decision computed
// once and reused by every later filter in the chain. In the source
// system this lived in a stream-scoped key/value store under the keys
// "compressors" and "encoding_decision"; here it is one value installed
// into the request's context.
package stream

import (
	"context"
	"strings"

	"github.com/wudi/encgate/internal/negotiate"
)

type contextKey struct{}

// Entry is one compressor filter's registration in the stream's
// registry.
type Entry struct {
	ContentEncoding string
	ContentTypes    map[string]bool // empty/nil means "no restriction"
}

// CachedDecision is the negotiation verdict computed once per stream
// and consulted by every chained compressor filter.
type CachedDecision struct {
	Encoding string
	Stat     negotiate.HeaderStat
}

// Registry is the per-stream state: the ordered, deduplicated list of
// registered compressor configs, and the cached decision once computed.
// Registry is not safe for concurrent use; per §5 of the design, all
// access for one stream happens on that stream's single goroutine.
type Registry struct {
	entries  []Entry
	seen     map[string]bool
	decision *CachedDecision
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]bool)}
}

// Register adds a compressor config to the registry. A later
// registration of a content-encoding already present (case-insensitive)
// is ignored, per the dedup policy: the first attachment wins.
func (r *Registry) Register(e Entry) {
	key := strings.ToLower(e.ContentEncoding)
	if r.seen[key] {
		return
	}
	r.seen[key] = true
	r.entries = append(r.entries, e)
}

// Entries returns the registered compressor configs in registration
// order.
func (r *Registry) Entries() []Entry {
	return r.entries
}

// Decision returns the cached decision, if one has been computed yet.
func (r *Registry) Decision() (CachedDecision, bool) {
	if r.decision == nil {
		return CachedDecision{}, false
	}
	return *r.decision, true
}

// SetDecision caches the negotiation verdict for the rest of the
// stream's compressor filters to consult. Only the first caller's
// value sticks, matching "the engine runs at most once per stream".
func (r *Registry) SetDecision(d CachedDecision) {
	if r.decision != nil {
		return
	}
	r.decision = &d
}

// NewContext returns a copy of ctx carrying reg.
func NewContext(ctx context.Context, reg *Registry) context.Context {
	return context.WithValue(ctx, contextKey{}, reg)
}

// FromContext returns the Registry installed by NewContext, creating
// and installing a fresh one in the returned context if none is
// present yet. The returned Registry is never nil.
func FromContext(ctx context.Context) (context.Context, *Registry) {
	if reg, ok := ctx.Value(contextKey{}).(*Registry); ok {
		return ctx, reg
	}
	reg := NewRegistry()
	return NewContext(ctx, reg), reg
}
