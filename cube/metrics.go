package cube

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recomputeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "volcube",
		Name:      "recompute_total",
		Help:      "Full cube recomputes started.",
	})

	recomputeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "volcube",
		Name:      "recompute_failures_total",
		Help:      "Cube recomputes that ended in an error.",
	})

	knotCalibrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "volcube",
		Name:      "knot_calibrations_total",
		Help:      "Knot calibrations by stage and outcome.",
	}, []string{"stage", "outcome"})

	knotFitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "volcube",
		Name:      "knot_fit_seconds",
		Help:      "Wall time of one knot calibration.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~400ms
	}, []string{"stage"})

	expandedKnots = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "volcube",
		Name:      "expanded_knots_total",
		Help:      "Knots synthesized by ATM-led grid expansion.",
	})
)
