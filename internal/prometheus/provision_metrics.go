package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImageSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "image_selections_total",
		Namespace: Namespace,
		Help:      "Base image selections by image family and result",
	}, []string{"family", "result"})

	BootstrapSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "bootstrap_steps_total",
		Namespace: Namespace,
		Help:      "First boot bootstrap steps by step and result",
	}, []string{"step", "result"})

	ReadinessWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:      "readiness_wait_duration_seconds",
		Namespace: Namespace,
		Subsystem: ProvisionSubsystem,
		Help:      "Time spent polling until a readiness check passed or timed out",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})
)

func ImageSelection(family string, err error) {
	ImageSelections.WithLabelValues(family, resultLabel(err)).Inc()
}

func BootstrapStep(step string, err error) {
	BootstrapSteps.WithLabelValues(step, resultLabel(err)).Inc()
}

func ReadinessWaitObserver() ObserveFunc {
	pt := prometheus.NewTimer(ReadinessWait)
	return pt.ObserveDuration
}
