package persistence

import (
	"context"
	"sync"
	"time"

	"codepilot/pkg/logx"
	"codepilot/pkg/orchestrator"
)

// RunRecorder adapts a Store to the orchestrator's run-history hooks and the
// role loop's execution recorder. StartRun binds the active run id so tool
// executions made by the role agents land on the right task_runs row;
// FinishRun unbinds it. Recording failures are logged, never fatal.
type RunRecorder struct {
	store  *Store
	logger *logx.Logger

	mu    sync.Mutex
	runID int64
}

func NewRunRecorder(store *Store) *RunRecorder {
	return &RunRecorder{
		store:  store,
		logger: logx.NewLogger("runstore"),
	}
}

// StartRun inserts the task_runs row and binds its id as the active run.
func (r *RunRecorder) StartRun(ctx context.Context, task string) (int64, error) {
	id, err := r.store.StartRun(ctx, task)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.runID = id
	r.mu.Unlock()
	return id, nil
}

// RecordPass stores one orchestrator pass.
func (r *RunRecorder) RecordPass(ctx context.Context, runID int64, seq int, state, outcome string, duration time.Duration) error {
	return r.store.RecordPass(ctx, runID, seq, state, outcome, duration)
}

// FinishRun writes the final outcome and unbinds the active run.
func (r *RunRecorder) FinishRun(ctx context.Context, runID int64, result *orchestrator.TaskResult) error {
	r.mu.Lock()
	if r.runID == runID {
		r.runID = 0
	}
	r.mu.Unlock()
	return r.store.FinishRun(ctx, runID, result.Status, result.Success, result.Iterations, result.Plan, result.Error)
}

// RecordLLMRequest satisfies the role loop recorder; request counts live in
// Prometheus, not the run store.
func (r *RunRecorder) RecordLLMRequest(string, bool, time.Duration) {}

// RecordLLMTokens satisfies the role loop recorder; token counts live in
// Prometheus, not the run store.
func (r *RunRecorder) RecordLLMTokens(string, int, int) {}

// RecordToolExecution stores the tool call against the active run. Calls made
// outside a run are dropped.
func (r *RunRecorder) RecordToolExecution(tool string, success bool, duration time.Duration) {
	r.mu.Lock()
	runID := r.runID
	r.mu.Unlock()
	if runID == 0 {
		return
	}
	if err := r.store.RecordToolExecution(context.Background(), runID, tool, success, duration); err != nil {
		r.logger.Warn("failed to record tool execution: %v", err)
	}
}
