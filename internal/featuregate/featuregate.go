// Package featuregate implements the feature-gate predicate the
// compressor and decompressor filters consult before committing to
// compress or decompress a stream. A gate is keyed by a string name and
// answers a single question: is this filter enabled for this request.
package featuregate

import "github.com/cespare/xxhash/v2"

// Gate decides whether a filter is enabled.
type Gate interface {
	Enabled(key string) bool
}

// StaticGate is always on or always off, independent of key.
type StaticGate bool

// Enabled implements Gate.
func (g StaticGate) Enabled(string) bool {
	return bool(g)
}

// PercentageGate enables a filter for a stable, deterministic
// percentage of keys: hashing the key to a uint64 and comparing against
// a threshold means the same key always resolves the same way, so a
// client's requests don't flap in and out of compression across calls.
type PercentageGate struct {
	// Percent is the fraction of keys that are enabled, in [0, 100].
	Percent int
}

// Enabled implements Gate.
func (g PercentageGate) Enabled(key string) bool {
	if g.Percent <= 0 {
		return false
	}
	if g.Percent >= 100 {
		return true
	}
	bucket := xxhash.Sum64String(key) % 100
	return bucket < uint64(g.Percent)
}
