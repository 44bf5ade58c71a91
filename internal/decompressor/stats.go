package decompressor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decompressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "decompressor",
		Name:      "decompressed_total",
		Help:      "Bodies successfully decompressed.",
	}, []string{"content_encoding", "direction"})

	notDecompressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encgate",
		Subsystem: "decompressor",
		Name:      "not_decompressed_total",
		Help:      "Bodies whose decompressor could not be created. Skipped bodies and bodies that fail to decode are not counted.",
	}, []string{"content_encoding", "direction"})
)

// stats is the opaque counter sink for one decompressor filter.
type stats struct {
	contentEncoding string
}

func newStats(contentEncoding string) *stats {
	return &stats{contentEncoding: contentEncoding}
}

func (s *stats) Decompressed(direction string) {
	decompressedTotal.WithLabelValues(s.contentEncoding, direction).Inc()
}

func (s *stats) NotDecompressed(direction string) {
	notDecompressedTotal.WithLabelValues(s.contentEncoding, direction).Inc()
}
