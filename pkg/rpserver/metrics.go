// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package rpserver

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	autherrors "github.com/stacklok/rpauth/pkg/errors"
)

const metricsNamespace = "rpauth"

type metrics struct {
	loginsTotal      prometheus.Counter
	callbacksTotal   *prometheus.CounterVec
	callbackDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		loginsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Authorization redirects issued.",
		}),
		callbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "callbacks_total",
			Help:      "Completed callbacks by result.",
		}, []string{"result"}),
		callbackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "callback_duration_seconds",
			Help:      "Time spent handling a callback, including provider round trips.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.loginsTotal, m.callbacksTotal, m.callbackDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// resultLabel is "success" or the error kind; unknown errors are "error".
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if kind := autherrors.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
