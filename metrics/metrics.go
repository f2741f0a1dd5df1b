// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics holds the Prometheus collectors for the election service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielhkuo/clubvote/models"
)

const namespace = "clubvote"

type Metrics struct {
	ballotsCast      prometheus.Counter
	ballotRejections *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	tallyDuration    prometheus.Histogram
	tallySubscribers prometheus.Gauge
	infraFailures    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ballotsCast: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ballots_cast_total",
			Help:      "number of ballots committed",
		}),
		ballotRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ballot_rejections_total",
			Help:      "number of ballot submissions rejected, by reason",
		}, []string{"reason"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "election_transitions_total",
			Help:      "number of election state transitions, by source and target state",
		}, []string{"from", "to"}),
		tallyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tally_duration_seconds",
			Help:      "time taken to compute an election tally",
			Buckets:   prometheus.DefBuckets,
		}),
		tallySubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tally_subscribers",
			Help:      "number of live tally subscriptions",
		}),
		infraFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "infrastructure_failures_total",
			Help:      "number of store failures, by operation",
		}, []string{"op"}),
	}
}

func (m *Metrics) BallotCast() {
	if m == nil {
		return
	}
	m.ballotsCast.Inc()
}

// BallotRejected counts a failed submission by rejection kind, or by
// "infrastructure" for store failures
func (m *Metrics) BallotRejected(err error) {
	if m == nil || err == nil {
		return
	}
	reason := "infrastructure"
	if r, ok := models.AsRejection(err); ok {
		reason = string(r.Kind)
	}
	m.ballotRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) Transition(from, to models.Status) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) ObserveTally(start time.Time) {
	if m == nil {
		return
	}
	m.tallyDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.tallySubscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.tallySubscribers.Dec()
}

// InfraFailure counts err when it is an InfrastructureFailure
func (m *Metrics) InfraFailure(err error) {
	if m == nil {
		return
	}
	var f *models.InfrastructureFailure
	if errors.As(err, &f) {
		m.infraFailures.WithLabelValues(f.Op).Inc()
	}
}
