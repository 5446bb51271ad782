package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"codepilot/pkg/orchestrator"
)

type fakePlanner struct {
	plan  string
	err   error
	calls int
}

func (f *fakePlanner) Run(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.plan, nil
}

type fakeImplementer struct {
	changes   map[string]string
	err       error
	feedbacks []string
}

func (f *fakeImplementer) Run(_ context.Context, _, _, reviewFeedback string) (map[string]string, error) {
	f.feedbacks = append(f.feedbacks, reviewFeedback)
	if f.err != nil {
		return nil, f.err
	}
	return f.changes, nil
}

type verdict struct {
	approved bool
	feedback string
}

type fakeReviewer struct {
	verdicts []verdict
	err      error
	calls    int
}

func (f *fakeReviewer) Run(_ context.Context, _ map[string]string, _, _ string) (bool, string, error) {
	idx := f.calls
	f.calls++
	if f.err != nil {
		return false, "", f.err
	}
	if idx >= len(f.verdicts) {
		idx = len(f.verdicts) - 1
	}
	v := f.verdicts[idx]
	return v.approved, v.feedback, nil
}

type passRecord struct {
	seq     int
	state   string
	outcome string
}

type fakeRecorder struct {
	task     string
	startErr error
	passes   []passRecord
	finished *orchestrator.TaskResult
}

func (f *fakeRecorder) StartRun(_ context.Context, task string) (int64, error) {
	if f.startErr != nil {
		return 0, f.startErr
	}
	f.task = task
	return 42, nil
}

func (f *fakeRecorder) RecordPass(_ context.Context, runID int64, seq int, state, outcome string, _ time.Duration) error {
	if runID != 42 {
		return errors.New("wrong run id")
	}
	f.passes = append(f.passes, passRecord{seq: seq, state: state, outcome: outcome})
	return nil
}

func (f *fakeRecorder) FinishRun(_ context.Context, runID int64, result *orchestrator.TaskResult) error {
	if runID != 42 {
		return errors.New("wrong run id")
	}
	f.finished = result
	return nil
}

type fakeMetrics struct {
	passes []string
	runs   []string
}

func (f *fakeMetrics) RecordOrchestratorPass(state, outcome string) {
	f.passes = append(f.passes, state+"/"+outcome)
}

func (f *fakeMetrics) RecordTaskRun(status string) {
	f.runs = append(f.runs, status)
}

func newOrchestrator(t *testing.T, cfg orchestrator.Config) *orchestrator.Orchestrator {
	t.Helper()
	o, err := orchestrator.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestRunApprovedFirstPass(t *testing.T) {
	planner := &fakePlanner{plan: "1. Write main.go"}
	impl := &fakeImplementer{changes: map[string]string{"main.go": "package main"}}
	reviewer := &fakeReviewer{verdicts: []verdict{{approved: true, feedback: "Solid.\nDECISION: APPROVE"}}}

	o := newOrchestrator(t, orchestrator.Config{Planner: planner, Implementer: impl, Reviewer: reviewer})
	result, err := o.Run(context.Background(), "add main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != "complete" || !result.Success {
		t.Errorf("expected complete/success, got %s/%v", result.Status, result.Success)
	}
	if result.Iterations != 3 {
		t.Errorf("expected 3 passes (plan, code, review), got %d", result.Iterations)
	}
	if result.Plan != "1. Write main.go" {
		t.Errorf("plan not carried: %q", result.Plan)
	}
	if result.CodeChanges["main.go"] != "package main" {
		t.Errorf("code changes not carried: %v", result.CodeChanges)
	}
	if !strings.Contains(result.ReviewFeedback, "DECISION: APPROVE") {
		t.Errorf("review feedback not carried: %q", result.ReviewFeedback)
	}
	if result.Error != "" {
		t.Errorf("unexpected error message: %q", result.Error)
	}
}

func TestRunFailsWhenCapExceeded(t *testing.T) {
	planner := &fakePlanner{plan: "plan"}
	impl := &fakeImplementer{changes: map[string]string{"a.go": "x"}}
	reviewer := &fakeReviewer{verdicts: []verdict{{approved: false, feedback: "DECISION: REJECT"}}}

	// Default cap is 5 passes total.
	o := newOrchestrator(t, orchestrator.Config{Planner: planner, Implementer: impl, Reviewer: reviewer})
	result, err := o.Run(context.Background(), "task")
	if err != nil {
		t.Fatalf("cap exhaustion is a domain outcome, not an error: %v", err)
	}

	if result.Status != "failed" || result.Success {
		t.Errorf("expected failed, got %s/%v", result.Status, result.Success)
	}
	if result.Error != "Max iterations (5) exceeded" {
		t.Errorf("unexpected error message: %q", result.Error)
	}
	if result.Iterations != 5 {
		t.Errorf("expected 5 passes, got %d", result.Iterations)
	}
	if planner.calls != 1 {
		t.Errorf("planner should run once, ran %d times", planner.calls)
	}
	if len(impl.feedbacks) != 2 {
		t.Errorf("implementer should run twice (initial + rework), ran %d times", len(impl.feedbacks))
	}
	if reviewer.calls != 2 {
		t.Errorf("reviewer should run twice, ran %d times", reviewer.calls)
	}
}

func TestRunCarriesFreshFeedbackIntoRework(t *testing.T) {
	planner := &fakePlanner{plan: "plan"}
	impl := &fakeImplementer{changes: map[string]string{"a.go": "x"}}
	reviewer := &fakeReviewer{verdicts: []verdict{
		{approved: false, feedback: "first bug"},
		{approved: false, feedback: "second bug"},
		{approved: true, feedback: "DECISION: APPROVE"},
	}}

	o := newOrchestrator(t, orchestrator.Config{
		Planner: planner, Implementer: impl, Reviewer: reviewer, MaxIterations: 10,
	})
	result, err := o.Run(context.Background(), "task")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != "complete" {
		t.Fatalf("expected complete, got %s (%s)", result.Status, result.Error)
	}
	if result.Iterations != 7 {
		t.Errorf("expected 7 passes, got %d", result.Iterations)
	}

	want := []string{"", "first bug", "second bug"}
	if len(impl.feedbacks) != len(want) {
		t.Fatalf("expected %d coding passes, got %v", len(want), impl.feedbacks)
	}
	for i, fb := range want {
		if impl.feedbacks[i] != fb {
			t.Errorf("coding pass %d: feedback = %q, want %q", i+1, impl.feedbacks[i], fb)
		}
	}
}

func TestRunPlannerErrorFailsTask(t *testing.T) {
	backendErr := errors.New("api unreachable")
	planner := &fakePlanner{err: backendErr}
	impl := &fakeImplementer{}
	reviewer := &fakeReviewer{verdicts: []verdict{{approved: true}}}

	o := newOrchestrator(t, orchestrator.Config{Planner: planner, Implementer: impl, Reviewer: reviewer})
	result, err := o.Run(context.Background(), "task")
	if err == nil {
		t.Fatal("expected role failure to surface as error")
	}
	if !errors.Is(err, backendErr) {
		t.Errorf("expected wrapped backend error, got %v", err)
	}
	if !strings.Contains(err.Error(), "planning failed") {
		t.Errorf("expected planning context in error, got %v", err)
	}

	if result.Status != "failed" || result.Success {
		t.Errorf("expected failed result, got %s/%v", result.Status, result.Success)
	}
	if !strings.Contains(result.Error, "planning failed") {
		t.Errorf("result error not populated: %q", result.Error)
	}
	if result.Iterations != 1 {
		t.Errorf("expected 1 pass, got %d", result.Iterations)
	}
	if len(impl.feedbacks) != 0 {
		t.Error("implementer should never run after planning failure")
	}
}

func TestRunReviewerErrorFailsTask(t *testing.T) {
	planner := &fakePlanner{plan: "plan"}
	impl := &fakeImplementer{changes: map[string]string{"a.go": "x"}}
	reviewer := &fakeReviewer{err: errors.New("rate limited")}

	o := newOrchestrator(t, orchestrator.Config{Planner: planner, Implementer: impl, Reviewer: reviewer})
	result, err := o.Run(context.Background(), "task")
	if err == nil || !strings.Contains(err.Error(), "reviewing failed") {
		t.Fatalf("expected reviewing failure, got %v", err)
	}
	if result.Iterations != 3 {
		t.Errorf("expected 3 passes, got %d", result.Iterations)
	}
	if result.Status != "failed" {
		t.Errorf("expected failed, got %s", result.Status)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	rec := &fakeRecorder{}
	planner := &fakePlanner{plan: "plan"}
	impl := &fakeImplementer{changes: map[string]string{"a.go": "x"}}
	reviewer := &fakeReviewer{verdicts: []verdict{{approved: true, feedback: "DECISION: APPROVE"}}}

	o := newOrchestrator(t, orchestrator.Config{
		Planner: planner, Implementer: impl, Reviewer: reviewer, Recorder: rec,
	})
	if _, err := o.Run(context.Background(), "add feature"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.task != "add feature" {
		t.Errorf("run not started with task, got %q", rec.task)
	}

	want := []passRecord{
		{seq: 1, state: "planning", outcome: "ok"},
		{seq: 2, state: "coding", outcome: "ok"},
		{seq: 3, state: "reviewing", outcome: "approved"},
	}
	if len(rec.passes) != len(want) {
		t.Fatalf("expected %d pass records, got %v", len(want), rec.passes)
	}
	for i, w := range want {
		if rec.passes[i] != w {
			t.Errorf("pass %d = %+v, want %+v", i, rec.passes[i], w)
		}
	}

	if rec.finished == nil || rec.finished.Status != "complete" {
		t.Errorf("run not finished with result: %+v", rec.finished)
	}
}

func TestRunSurvivesRecorderFailure(t *testing.T) {
	rec := &fakeRecorder{startErr: errors.New("disk full")}
	planner := &fakePlanner{plan: "plan"}
	impl := &fakeImplementer{changes: map[string]string{"a.go": "x"}}
	reviewer := &fakeReviewer{verdicts: []verdict{{approved: true}}}

	o := newOrchestrator(t, orchestrator.Config{
		Planner: planner, Implementer: impl, Reviewer: reviewer, Recorder: rec,
	})
	result, err := o.Run(context.Background(), "task")
	if err != nil {
		t.Fatalf("recorder failure must not fail the task: %v", err)
	}
	if result.Status != "complete" {
		t.Errorf("expected complete, got %s", result.Status)
	}
	if len(rec.passes) != 0 {
		t.Errorf("no passes should be recorded after start failure, got %v", rec.passes)
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	m := &fakeMetrics{}
	planner := &fakePlanner{plan: "plan"}
	impl := &fakeImplementer{changes: map[string]string{"a.go": "x"}}
	reviewer := &fakeReviewer{verdicts: []verdict{{approved: false, feedback: "no"}}}

	o := newOrchestrator(t, orchestrator.Config{
		Planner: planner, Implementer: impl, Reviewer: reviewer, MaxIterations: 3, Metrics: m,
	})
	result, err := o.Run(context.Background(), "task")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "failed" {
		t.Fatalf("expected failed at cap, got %s", result.Status)
	}

	wantPasses := []string{"planning/ok", "coding/ok", "reviewing/rejected"}
	if len(m.passes) != len(wantPasses) {
		t.Fatalf("expected %d pass metrics, got %v", len(wantPasses), m.passes)
	}
	for i, w := range wantPasses {
		if m.passes[i] != w {
			t.Errorf("pass metric %d = %q, want %q", i, m.passes[i], w)
		}
	}
	if len(m.runs) != 1 || m.runs[0] != "failed" {
		t.Errorf("expected one failed run metric, got %v", m.runs)
	}
}

func TestNewRequiresRoles(t *testing.T) {
	if _, err := orchestrator.New(orchestrator.Config{}); err == nil {
		t.Fatal("expected error for missing roles")
	}
	if _, err := orchestrator.New(orchestrator.Config{Planner: &fakePlanner{}}); err == nil {
		t.Fatal("expected error for missing implementer and reviewer")
	}
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from, to orchestrator.State
		want     bool
	}{
		{orchestrator.StatePlanning, orchestrator.StateCoding, true},
		{orchestrator.StatePlanning, orchestrator.StateReviewing, false},
		{orchestrator.StateCoding, orchestrator.StateReviewing, true},
		{orchestrator.StateCoding, orchestrator.StateComplete, false},
		{orchestrator.StateReviewing, orchestrator.StateComplete, true},
		{orchestrator.StateReviewing, orchestrator.StateCoding, true},
		{orchestrator.StateComplete, orchestrator.StateCoding, false},
		{orchestrator.StateComplete, orchestrator.StateFailed, true}, // any state may fail
		{orchestrator.StateFailed, orchestrator.StatePlanning, false},
	}
	for _, tt := range tests {
		if got := orchestrator.IsValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStateIsTerminal(t *testing.T) {
	for _, s := range []orchestrator.State{orchestrator.StatePlanning, orchestrator.StateCoding, orchestrator.StateReviewing} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []orchestrator.State{orchestrator.StateComplete, orchestrator.StateFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
