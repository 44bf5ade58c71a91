package compressor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wudi/encgate/internal/negotiate"
)

// The counter names below are the exact names from the distilled
// spec's §4.D stats sink, each vectorized by content_encoding so one
// set of metrics covers every compressor filter in the process.
var (
	compressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "compressed_total",
		Help:      "Responses whose body was compressed.",
	}, []string{"content_encoding"})

	notCompressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "not_compressed_total",
		Help:      "Responses that were eligible but not compressed.",
	}, []string{"content_encoding"})

	noAcceptHeaderTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "no_accept_header_total",
		Help:      "Requests with no Accept-Encoding header.",
	}, []string{"content_encoding"})

	headerIdentityTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "header_identity_total",
		Help:      "Negotiations that resolved to identity.",
	}, []string{"content_encoding"})

	headerWildcardTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "header_wildcard_total",
		Help:      "Negotiations resolved via a wildcard preference.",
	}, []string{"content_encoding"})

	headerNotValidTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "header_not_valid_total",
		Help:      "Accept-Encoding headers with no usable preference.",
	}, []string{"content_encoding"})

	headerUsedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "header_compressor_used_total",
		Help:      "Negotiations in which this filter's encoding won.",
	}, []string{"content_encoding"})

	headerOvershadowedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "header_compressor_overshadowed_total",
		Help:      "Negotiations in which another filter's encoding won.",
	}, []string{"content_encoding"})

	// headerGzipTotal is the legacy counter incremented alongside
	// header_compressor_used whenever the winning encoding is "gzip".
	headerGzipTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "header_gzip_total",
		Help:      "Legacy counter: negotiations won by gzip specifically.",
	}, []string{"content_encoding"})

	totalUncompressedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "total_uncompressed_bytes",
		Help:      "Sum of body bytes before compression.",
	}, []string{"content_encoding"})

	totalCompressedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "total_compressed_bytes",
		Help:      "Sum of body bytes after compression.",
	}, []string{"content_encoding"})

	contentLengthTooSmallTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "content_length_too_small_total",
		Help:      "Responses skipped for being under min_content_length.",
	}, []string{"content_encoding"})

	notCompressedEtagTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "compressor",
		Name:      "not_compressed_etag_total",
		Help:      "Responses skipped due to disable_on_etag_header.",
	}, []string{"content_encoding"})
)

// stats is the opaque counter sink named by the distilled spec's filter
// configuration tuple, bound to one filter's content_encoding label.
type stats struct {
	contentEncoding string
}

func newStats(contentEncoding string) *stats {
	return &stats{contentEncoding: contentEncoding}
}

func (s *stats) Compressed()      { compressedTotal.WithLabelValues(s.contentEncoding).Inc() }
func (s *stats) NotCompressed()   { notCompressedTotal.WithLabelValues(s.contentEncoding).Inc() }
func (s *stats) NoAcceptHeader()  { noAcceptHeaderTotal.WithLabelValues(s.contentEncoding).Inc() }
func (s *stats) NotCompressedEtag() {
	notCompressedEtagTotal.WithLabelValues(s.contentEncoding).Inc()
}
func (s *stats) ContentLengthTooSmall() {
	contentLengthTooSmallTotal.WithLabelValues(s.contentEncoding).Inc()
}

func (s *stats) AddUncompressedBytes(n int) {
	totalUncompressedBytes.WithLabelValues(s.contentEncoding).Add(float64(n))
}

func (s *stats) AddCompressedBytes(n int) {
	totalCompressedBytes.WithLabelValues(s.contentEncoding).Add(float64(n))
}

// RecordHeaderStat increments the counter matching stat, plus the
// legacy header_gzip counter when this filter's encoding is gzip and
// the negotiation resolved to Used.
func (s *stats) RecordHeaderStat(stat negotiate.HeaderStat) {
	switch stat {
	case negotiate.Identity:
		headerIdentityTotal.WithLabelValues(s.contentEncoding).Inc()
	case negotiate.Wildcard:
		headerWildcardTotal.WithLabelValues(s.contentEncoding).Inc()
	case negotiate.Used:
		headerUsedTotal.WithLabelValues(s.contentEncoding).Inc()
		if s.contentEncoding == "gzip" {
			headerGzipTotal.WithLabelValues(s.contentEncoding).Inc()
		}
	case negotiate.Overshadowed:
		headerOvershadowedTotal.WithLabelValues(s.contentEncoding).Inc()
	default:
		headerNotValidTotal.WithLabelValues(s.contentEncoding).Inc()
	}
}
