package registry

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenizer_loads_total",
			Help: "Tokenizer constructions by family and result",
		},
		[]string{"family", "result"},
	)

	loadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokenizer_load_duration_seconds",
			Help:    "Time spent classifying and constructing a tokenizer",
			Buckets: []float64{.005, .025, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"family"},
	)

	loadQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tokenizer_load_queue_depth",
		Help: "Scheduled tokenizer loads waiting for a worker",
	})

	loadsInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tokenizer_loads_inflight",
		Help: "Tokenizer constructions currently running on load workers",
	})
)

func init() {
	prometheus.MustRegister(loadsTotal, loadDuration, loadQueueDepth, loadsInflight)
}

func observeLoad(family string, seconds float64, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	if family == "" {
		family = "unknown"
	}
	loadsTotal.WithLabelValues(family, result).Inc()
	loadDuration.WithLabelValues(family).Observe(seconds)
}
