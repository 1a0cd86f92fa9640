package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
)

var (
	reorderTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkpage",
		Subsystem: "reorder",
		Name:      "requests_total",
		Help:      "Total number of link reorder requests broken down by result.",
	}, []string{"result"})

	profileCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkpage",
		Subsystem: "profile_cache",
		Name:      "requests_total",
		Help:      "Total number of profile cache lookups broken down by hit/miss.",
	}, []string{"result"})

	profileCacheInvalidate = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkpage",
		Subsystem: "profile_cache",
		Name:      "invalidate_total",
		Help:      "Total number of profile cache invalidations broken down by reason and outcome.",
	}, []string{"reason", "outcome"})
)

func recordReorder(err error) {
	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
	}
	reorderTotal.WithLabelValues(result).Inc()
}

func recordCacheRequest(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	profileCacheRequests.WithLabelValues(result).Inc()
}

func recordCacheInvalidate(reason string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	profileCacheInvalidate.WithLabelValues(reason, outcome).Inc()
}
