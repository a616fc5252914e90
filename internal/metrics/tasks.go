// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(taskPollsTotal, taskTransitionsTotal, tasksActive) }

var (
	taskPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weaver_task_polls_total",
			Help: "Status requests issued by task monitors, by group and result.",
		},
		[]string{"group", "result"}, // result="ok"|"error"
	)

	taskTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weaver_task_transitions_total",
			Help: "Task status transitions observed by task monitors.",
		},
		[]string{"group", "status"},
	)

	tasksActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "weaver_tasks_active",
			Help: "Tasks currently pending or running, per monitor group.",
		},
		[]string{"group"},
	)
)

// IncPoll counts one status request.
func IncPoll(group, result string) {
	taskPollsTotal.WithLabelValues(norm(group), norm(result)).Inc()
}

// IncTransition counts a task entering the given status.
func IncTransition(group, status string) {
	taskTransitionsTotal.WithLabelValues(norm(group), norm(status)).Inc()
}

// SetActiveTasks records the number of active tasks of a group.
func SetActiveTasks(group string, n int) {
	tasksActive.WithLabelValues(norm(group)).Set(float64(n))
}
