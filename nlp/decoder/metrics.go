package decoder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var (
	tracer = otel.Tracer("t2t.decoder")

	sentencesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "t2t_decoder_sentences_total",
		Help: "Sentences decoded",
	})

	decodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "t2t_decoder_sentence_duration_seconds",
		Help:    "Time to decode one sentence",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	cubePopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "t2t_decoder_cube_pops_total",
		Help: "Hypotheses popped from cube pruning agendas",
	})

	// organizerOutcomes counts insertions by recombination status
	organizerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t2t_decoder_organizer_insertions_total",
		Help: "Hypothesis insertions by outcome",
	}, []string{"status"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t2t_decoder_fallbacks_total",
		Help: "Nodes decoded without grammar rules",
	}, []string{"kind"})

	// rulesApplied counts the rules of best derivations
	rulesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t2t_decoder_rules_applied_total",
		Help: "Rules used by best translations",
	}, []string{"composed", "lexical"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t2t_decoder_cache_lookups_total",
		Help: "Translation cache lookups by result",
	}, []string{"result"})
)
