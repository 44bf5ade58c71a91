// Package negotiate implements the Accept-Encoding negotiation algorithm
// shared by every compressor filter attached to one HTTP request: given
// the client's Accept-Encoding header and the set of encodings
// registered on the stream, it picks a single winner and computes, for
// the calling filter, whether its own encoding was the one chosen.
package negotiate

import (
	"strconv"
	"strings"
)

// HeaderStat classifies how the Accept-Encoding header resolved for one
// compressor filter's encoding.
type HeaderStat int

const (
	// NotValid means no usable preference was found (empty or fully
	// blacklisted Accept-Encoding), or the winning preference had q=0.
	NotValid HeaderStat = iota
	// Identity means the client's winning preference was identity.
	Identity
	// Wildcard means a "*" preference won and resolved to some
	// registered encoding (possibly this filter's, possibly not).
	Wildcard
	// Overshadowed means another registered encoding outranked this one.
	Overshadowed
	// Used means this filter's encoding won the negotiation.
	Used
)

func (s HeaderStat) String() string {
	switch s {
	case Identity:
		return "identity"
	case Wildcard:
		return "wildcard"
	case Overshadowed:
		return "overshadowed"
	case Used:
		return "used"
	default:
		return "not_valid"
	}
}

// Preference is one parsed Accept-Encoding element.
type Preference struct {
	Name string
	Q    float64
}

// ParseAcceptEncoding splits an Accept-Encoding header value into its
// preferences. A token with a malformed q parameter is dropped
// entirely; a token with q=0 is kept (callers use it to blacklist a
// name from the allowed set).
func ParseAcceptEncoding(header string) []Preference {
	if header == "" {
		return nil
	}
	var prefs []Preference
	for _, tok := range strings.Split(header, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		parts := strings.Split(tok, ";")
		name := strings.TrimSpace(parts[0])
		if name == "" {
			continue
		}
		q := 1.0
		malformed := false
		for _, param := range parts[1:] {
			param = strings.TrimSpace(param)
			eq := strings.IndexByte(param, '=')
			if eq < 0 {
				continue
			}
			key := strings.TrimSpace(param[:eq])
			if !strings.EqualFold(key, "q") {
				continue
			}
			val := strings.TrimSpace(param[eq+1:])
			parsed, err := strconv.ParseFloat(val, 64)
			if err != nil {
				malformed = true
				break
			}
			q = parsed
		}
		if malformed {
			continue
		}
		prefs = append(prefs, Preference{Name: name, Q: q})
	}
	return prefs
}

// AllowedEntry is one registered encoding available to the negotiation,
// keyed by registration order (lower index registered earlier).
type AllowedEntry struct {
	Name  string
	Index int
}

// Decide runs the negotiation algorithm for one filter's encoding
// (thisEncoding) given the client's Accept-Encoding header and the set
// of encodings allowed for this response (already filtered by
// Content-Type eligibility by the caller). allowed must be in
// registration order.
func Decide(acceptEncoding string, allowed []AllowedEntry, thisEncoding string) (winner string, stat HeaderStat) {
	allowedMap := make(map[string]AllowedEntry, len(allowed))
	for _, a := range allowed {
		key := strings.ToLower(a.Name)
		if _, ok := allowedMap[key]; !ok {
			allowedMap[key] = a
		}
	}

	prefs := ParseAcceptEncoding(acceptEncoding)

	for _, p := range prefs {
		if p.Q == 0 {
			delete(allowedMap, strings.ToLower(p.Name))
		}
	}

	if len(prefs) == 0 {
		return "identity", NotValid
	}

	winnerName := "identity"
	winnerQ := 0.0
	for _, p := range prefs {
		if p.Q <= winnerQ {
			continue
		}
		entry, inAllowed := allowedMap[strings.ToLower(p.Name)]
		if inAllowed || strings.EqualFold(p.Name, "identity") || p.Name == "*" {
			winnerName = p.Name
			if inAllowed {
				winnerName = entry.Name
			}
			winnerQ = p.Q
		}
	}

	if winnerQ == 0 {
		return "identity", NotValid
	}
	if strings.EqualFold(winnerName, "identity") {
		return "identity", Identity
	}
	if winnerName == "*" {
		if len(allowedMap) > 0 {
			return firstByIndex(allowedMap), Wildcard
		}
		return "identity", NotValid
	}
	if strings.EqualFold(winnerName, thisEncoding) {
		return winnerName, Used
	}
	if len(allowedMap) > 0 {
		return winnerName, Overshadowed
	}
	return "identity", NotValid
}

func firstByIndex(allowed map[string]AllowedEntry) string {
	var name string
	best := -1
	for _, a := range allowed {
		if best == -1 || a.Index < best {
			best = a.Index
			name = a.Name
		}
	}
	return name
}
