package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunInstance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:      "run_instance_duration_seconds",
		Namespace: Namespace,
		Subsystem: AWSSubsystem,
		Help:      "Duration of launching an instance until it is running",
	})

	TerminateInstances = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:      "terminate_instances_duration_seconds",
		Namespace: Namespace,
		Subsystem: AWSSubsystem,
		Help:      "Duration of terminating instances",
	})

	LaunchedInstances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "launched_instances",
		Namespace: Namespace,
		Subsystem: AWSSubsystem,
		Help:      "Number of launched instances",
	}, []string{"result"})

	TagWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "tag_writes",
		Namespace: Namespace,
		Subsystem: AWSSubsystem,
		Help:      "Number of instance tag writes",
	}, []string{"key", "result"})
)

func RunInstanceObserver() ObserveFunc {
	pt := prometheus.NewTimer(RunInstance)
	return pt.ObserveDuration
}

func TerminateInstancesObserver() ObserveFunc {
	pt := prometheus.NewTimer(TerminateInstances)
	return pt.ObserveDuration
}

func InstanceLaunched(err error) {
	LaunchedInstances.WithLabelValues(resultLabel(err)).Inc()
}

func TagWritten(key string, err error) {
	TagWrites.WithLabelValues(key, resultLabel(err)).Inc()
}
