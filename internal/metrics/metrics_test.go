package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func getGaugeVecValue(gv *prometheus.GaugeVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := gv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func getHistogramCount(hv *prometheus.HistogramVec, labels ...string) uint64 {
	m := &dto.Metric{}
	if c, ok := hv.WithLabelValues(labels...).(prometheus.Metric); ok {
		if err := c.Write(m); err != nil {
			return 0
		}
		return m.GetHistogram().GetSampleCount()
	}
	return 0
}

func TestRecordCycle(t *testing.T) {
	before := getCounterValue(CyclesTotal, "manual", "error")
	RecordCycle("manual", 2*time.Second, errors.New("disk full"))
	RecordCycle("manual", time.Second, nil)

	if got := getCounterValue(CyclesTotal, "manual", "error"); got != before+1 {
		t.Errorf("error cycles = %f, want %f", got, before+1)
	}
	if got := getCounterValue(CyclesTotal, "manual", "ok"); got < 1 {
		t.Errorf("ok cycles = %f, want >= 1", got)
	}
	if got := getHistogramCount(CycleDurationSeconds, "manual"); got < 2 {
		t.Errorf("cycle duration samples = %d, want >= 2", got)
	}
}

func TestSetServiceStatus_OneHot(t *testing.T) {
	SetServiceStatus("10.0.0.1:22", "UP")
	SetServiceStatus("10.0.0.1:22", "DOWN")

	if v := getGaugeVecValue(ServiceStatus, "10.0.0.1:22", "DOWN"); v != 1 {
		t.Errorf("DOWN gauge = %f, want 1", v)
	}
	if v := getGaugeVecValue(ServiceStatus, "10.0.0.1:22", "UP"); v != 0 {
		t.Errorf("UP gauge = %f, want 0", v)
	}
	if v := getGaugeVecValue(ServiceStatus, "10.0.0.1:22", "DEGRADED"); v != 0 {
		t.Errorf("DEGRADED gauge = %f, want 0", v)
	}
}

func TestRecordAlertAndProbe(t *testing.T) {
	before := getCounterValue(AlertsTotal, "shipper", "")
	RecordAlert("shipper", "")
	if got := getCounterValue(AlertsTotal, "shipper", ""); got != before+1 {
		t.Errorf("alerts = %f, want %f", got, before+1)
	}
	RecordProbe("tcp", "DOWN", 10*time.Millisecond)
	if got := getHistogramCount(ProbeDurationSeconds, "tcp", "DOWN"); got < 1 {
		t.Errorf("probe samples = %d, want >= 1", got)
	}
}
