// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Name:      "record_mutations_total",
		Help:      "Record mutations by collection, operation and result.",
	}, []string{"collection", "op", "result"})

	fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Name:      "remote_fetches_total",
		Help:      "Remote fetches by URL and outcome.",
	}, []string{"url", "outcome"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Name:      "logins_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	overlay = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roster",
		Name:      "overlay_active",
		Help:      "1 while a collection is showing a remote overlay.",
	}, []string{"collection"})
)

// Mutation counts one create, update or delete attempt.
func Mutation(collection, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	mutations.WithLabelValues(collection, op, result).Inc()
}

// Fetch counts one remote fetch.
func Fetch(url, outcome string) {
	fetches.WithLabelValues(url, outcome).Inc()
}

// Login counts one login attempt.
func Login(ok bool) {
	if ok {
		logins.WithLabelValues("ok").Inc()
		return
	}
	logins.WithLabelValues("rejected").Inc()
}

// Overlay records whether collection is in overlay mode.
func Overlay(collection string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	overlay.WithLabelValues(collection).Set(v)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
