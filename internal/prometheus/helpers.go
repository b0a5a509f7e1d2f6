package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ObserveFunc func() time.Duration

const (
	Namespace = "cgcloud"

	AWSSubsystem       = "aws"
	ProvisionSubsystem = "provision"
)

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// WriteTextfile dumps the default registry in the text exposition format,
// suitable for the node exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
