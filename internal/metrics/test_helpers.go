package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// CounterValue returns the current value of a CounterVec child.
// It is used by tests across packages to assert on instrumentation.
func CounterValue(metric *prometheus.CounterVec, labels ...string) (float64, error) {
	pb := &dto.Metric{}
	if err := metric.WithLabelValues(labels...).Write(pb); err != nil {
		return 0, err
	}
	return pb.GetCounter().GetValue(), nil
}

// GaugeValue returns the current value of a GaugeVec child.
func GaugeValue(metric *prometheus.GaugeVec, labels ...string) (float64, error) {
	pb := &dto.Metric{}
	if err := metric.WithLabelValues(labels...).Write(pb); err != nil {
		return 0, err
	}
	return pb.GetGauge().GetValue(), nil
}

// HistogramCount returns the number of observations of a HistogramVec child.
func HistogramCount(metric *prometheus.HistogramVec, labels ...string) (uint64, error) {
	pb := &dto.Metric{}
	if err := metric.WithLabelValues(labels...).(prometheus.Metric).Write(pb); err != nil {
		return 0, err
	}
	return pb.GetHistogram().GetSampleCount(), nil
}
