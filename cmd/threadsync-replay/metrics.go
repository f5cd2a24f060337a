// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// logMetrics writes one record per collected series: counters and
// gauges by value, histograms by sample count and sum.
func logMetrics(logger *slog.Logger, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, pair := range metric.GetLabel() {
				labels = append(labels, pair.GetName()+"="+pair.GetValue())
			}
			attributes := []any{"metric", family.GetName(), "labels", strings.Join(labels, ",")}
			switch {
			case metric.GetCounter() != nil:
				attributes = append(attributes, "value", metric.GetCounter().GetValue())
			case metric.GetGauge() != nil:
				attributes = append(attributes, "value", metric.GetGauge().GetValue())
			case metric.GetHistogram() != nil:
				attributes = append(attributes,
					"count", metric.GetHistogram().GetSampleCount(),
					"sum", metric.GetHistogram().GetSampleSum(),
				)
			}
			logger.Info("engine metric", attributes...)
		}
	}
	return nil
}
