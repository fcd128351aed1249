package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// sensorCollector implements prometheus.Collector over the platform's
// sensor states. Sensors without a value yet are skipped.
type sensorCollector struct {
	platform Platform

	value     *prometheus.Desc
	lastReset *prometheus.Desc
}

func newSensorCollector(p Platform) *sensorCollector {
	labels := []string{"unique_id", "device", "name", "unit"}
	return &sensorCollector{
		platform: p,
		value: prometheus.NewDesc(
			"glowmeter_sensor_value",
			"Latest value of a sensor",
			labels,
			nil,
		),
		lastReset: prometheus.NewDesc(
			"glowmeter_sensor_last_reset_timestamp_seconds",
			"Start of the period a total sensor accumulates from",
			labels,
			nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *sensorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.value
	ch <- c.lastReset
}

// Collect implements prometheus.Collector
func (c *sensorCollector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range c.platform.States() {
		if st.Value == nil {
			continue
		}
		labels := []string{st.UniqueID, st.Device.ID, st.Name, st.Unit}
		ch <- prometheus.MustNewConstMetric(c.value, prometheus.GaugeValue, *st.Value, labels...)
		if !st.LastReset.IsZero() {
			ch <- prometheus.MustNewConstMetric(c.lastReset, prometheus.GaugeValue, float64(st.LastReset.Unix()), labels...)
		}
	}
}

func (s *Server) metricsHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		newSensorCollector(s.platform),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(s.collectors...)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		// responses are already gzipped by the outer handler
		DisableCompression: true,
	})
}
