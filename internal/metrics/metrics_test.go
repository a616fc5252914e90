// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskCounters(t *testing.T) {
	before := testutil.ToFloat64(taskPollsTotal.WithLabelValues("install", "ok"))
	IncPoll(" Install ", "OK")
	assert.Equal(t, before+1, testutil.ToFloat64(taskPollsTotal.WithLabelValues("install", "ok")))

	SetActiveTasks("documents", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(tasksActive.WithLabelValues("documents")))
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(taskTransitionsTotal)
	IncTransition("install", "completed")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "weaver_task_transitions_total"))

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
