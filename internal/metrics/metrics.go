package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	IOSCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribd_ios_cache_hits_total",
			Help: "Interned object store hits (payload already cached).",
		},
		[]string{"context"},
	)

	IOSCacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribd_ios_cache_misses_total",
			Help: "Interned object store misses (payload newly cached).",
		},
		[]string{"context"},
	)

	IOSCachedObjects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ribd_ios_cached_objects",
			Help: "Distinct cached objects currently held per context.",
		},
		[]string{"context"},
	)

	RIBEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribd_rib_entries_total",
			Help: "RIB entries added or withdrawn.",
		},
		[]string{"vrf", "afi", "type", "op"},
	)

	RIBSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribd_rib_selections_total",
			Help: "Best-route selections run.",
		},
		[]string{"vrf", "afi"},
	)

	MetaQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ribd_metaqueue_depth",
			Help: "Pending nodes per meta-queue sub-queue.",
		},
		[]string{"subq"},
	)

	MetaQueueDrainDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ribd_metaqueue_drain_duration_seconds",
			Help:    "Meta-queue drain pass latency.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
		[]string{},
	)

	CommunityParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribd_community_parse_errors_total",
			Help: "Community attribute parse failures by stage.",
		},
		[]string{"stage", "reason"},
	)

	KafkaMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribd_kafka_messages_total",
			Help: "Total route events consumed from Kafka.",
		},
		[]string{"topic", "afi", "action"},
	)

	DBWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ribd_db_write_duration_seconds",
			Help:    "DB write latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"op"},
	)
)

func Register() {
	prometheus.MustRegister(
		IOSCacheHitsTotal,
		IOSCacheMissesTotal,
		IOSCachedObjects,
		RIBEntriesTotal,
		RIBSelectionsTotal,
		MetaQueueDepth,
		MetaQueueDrainDuration,
		CommunityParseErrorsTotal,
		KafkaMessagesTotal,
		DBWriteDuration,
	)
}
