package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLLMRequest(t *testing.T) {
	m := New()

	m.RecordLLMRequest("claude-sonnet-4-20250514", true, 2*time.Second)
	m.RecordLLMRequest("claude-sonnet-4-20250514", true, time.Second)
	m.RecordLLMRequest("claude-sonnet-4-20250514", false, 500*time.Millisecond)

	success := testutil.ToFloat64(m.llmRequestsTotal.WithLabelValues("claude-sonnet-4-20250514", "success"))
	failure := testutil.ToFloat64(m.llmRequestsTotal.WithLabelValues("claude-sonnet-4-20250514", "error"))
	assert.Equal(t, 2.0, success)
	assert.Equal(t, 1.0, failure)
}

func TestRecordLLMTokens(t *testing.T) {
	m := New()

	m.RecordLLMTokens("gpt-4o", 1200, 300)
	m.RecordLLMTokens("gpt-4o", 800, 200)

	prompt := testutil.ToFloat64(m.llmTokensTotal.WithLabelValues("gpt-4o", "prompt"))
	completion := testutil.ToFloat64(m.llmTokensTotal.WithLabelValues("gpt-4o", "completion"))
	assert.Equal(t, 2000.0, prompt)
	assert.Equal(t, 500.0, completion)
}

func TestRecordToolExecution(t *testing.T) {
	m := New()

	m.RecordToolExecution("run_command", true, 3*time.Second)
	m.RecordToolExecution("run_command", false, 30*time.Second)
	m.RecordToolExecution("read_file", true, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolTotal.WithLabelValues("run_command", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolTotal.WithLabelValues("run_command", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolTotal.WithLabelValues("read_file", "success")))
}

func TestRecordOrchestratorPassAndTaskRun(t *testing.T) {
	m := New()

	m.RecordOrchestratorPass("planning", "ok")
	m.RecordOrchestratorPass("reviewing", "approved")
	m.RecordOrchestratorPass("reviewing", "rejected")
	m.RecordTaskRun("complete")
	m.RecordTaskRun("failed")
	m.RecordTaskRun("failed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.passesTotal.WithLabelValues("planning", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passesTotal.WithLabelValues("reviewing", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passesTotal.WithLabelValues("reviewing", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.taskRunsTotal.WithLabelValues("complete")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.taskRunsTotal.WithLabelValues("failed")))
}

func TestRecordRetrievalQuery(t *testing.T) {
	m := New()

	m.RecordRetrievalQuery("hybrid", 40*time.Millisecond)
	m.RecordRetrievalQuery("keyword", 5*time.Millisecond)
	m.RecordRetrievalQuery("hybrid", 60*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.retrievalTotal.WithLabelValues("hybrid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retrievalTotal.WithLabelValues("keyword")))
}

func TestSnapshotRendersRecordedSeries(t *testing.T) {
	m := New()
	m.RecordLLMRequest("claude-sonnet-4-20250514", true, time.Second)
	m.RecordToolExecution("write_file", true, 20*time.Millisecond)
	m.RecordTaskRun("complete")

	snapshot, err := m.Snapshot()
	require.NoError(t, err)

	assert.Contains(t, snapshot, "llm_requests_total")
	assert.Contains(t, snapshot, `model="claude-sonnet-4-20250514"`)
	assert.Contains(t, snapshot, "tool_executions_total")
	assert.Contains(t, snapshot, `task_runs_total{status="complete"} 1`)
}

func TestHandlerServesOwnRegistryOnly(t *testing.T) {
	m := New()
	m.RecordTaskRun("complete")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "task_runs_total")
	// Default-registry series like go_goroutines must not leak in.
	assert.False(t, strings.Contains(body, "go_goroutines"), "handler should serve only this instance's registry")
}

func TestIndependentInstances(t *testing.T) {
	// Two instances must not collide on registration.
	a := New()
	b := New()
	a.RecordTaskRun("complete")
	b.RecordTaskRun("failed")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.taskRunsTotal.WithLabelValues("complete")))
	assert.Equal(t, 0.0, testutil.ToFloat64(a.taskRunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.taskRunsTotal.WithLabelValues("failed")))
}
