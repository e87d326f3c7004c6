// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Node operation metrics
	nodeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appstack_node_operations_total",
			Help: "Total number of node operations by kind, operation, change and status",
		},
		[]string{"kind", "operation", "change", "status"},
	)

	nodeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appstack_node_operation_duration_seconds",
			Help:    "Node operation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"kind", "operation"},
	)

	nodesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "appstack_nodes_in_flight",
			Help: "Current number of nodes being applied or destroyed",
		},
	)

	// Whole-run metrics
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appstack_runs_total",
			Help: "Total number of up and destroy runs by result",
		},
		[]string{"operation", "result"},
	)

	throttleWaitSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appstack_throttle_wait_seconds_total",
			Help: "Total time nodes spent waiting on the start throttle",
		},
	)
)

// WriteMetrics writes the default registry to path in the node-exporter
// textfile collector format.
func WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func recordStep(op Operation, s StepResult) {
	nodeOperationsTotal.WithLabelValues(string(s.Kind), string(op), string(s.Change), string(s.Status)).Inc()
	if s.Status != StatusSkipped {
		nodeOperationDuration.WithLabelValues(string(s.Kind), string(op)).Observe(s.Duration.Seconds())
	}
}

func recordRun(op Operation, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	runsTotal.WithLabelValues(string(op), result).Inc()
}
