// Package orchestrator sequences the planner, implementer, and reviewer
// role agents through an explicit state machine. One Orchestrator owns one
// task run at a time; nothing is shared between runs except the injected
// collaborators.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codepilot/pkg/logx"
)

// DefaultMaxIterations bounds the total number of state-handler passes per
// run. A rework pass consumes budget like any other.
const DefaultMaxIterations = 5

// Planner produces an implementation plan for a task.
type Planner interface {
	Run(ctx context.Context, task string) (string, error)
}

// Implementer turns a plan into code changes (path -> content). On rework
// passes reviewFeedback carries the rejection reasons; "" on first attempt.
type Implementer interface {
	Run(ctx context.Context, plan, task, reviewFeedback string) (map[string]string, error)
}

// Reviewer decides whether the code changes implement the plan.
type Reviewer interface {
	Run(ctx context.Context, codeChanges map[string]string, plan, task string) (approved bool, feedback string, err error)
}

// RunRecorder persists run history. Satisfied by *persistence.RunRecorder;
// recording failures are logged, never fatal to the task.
type RunRecorder interface {
	StartRun(ctx context.Context, task string) (runID int64, err error)
	RecordPass(ctx context.Context, runID int64, seq int, state, outcome string, duration time.Duration) error
	FinishRun(ctx context.Context, runID int64, result *TaskResult) error
}

// PassMetrics counts orchestrator activity. Satisfied by *metrics.Metrics.
type PassMetrics interface {
	RecordOrchestratorPass(state, outcome string)
	RecordTaskRun(status string)
}

// TaskContext is the clipboard the roles write to and read from during one
// run. ReviewFeedback always holds the most recent review; a rework Coding
// pass never sees feedback from two rejections ago.
type TaskContext struct {
	Task           string
	Plan           string
	CodeChanges    map[string]string
	ReviewFeedback string
	ErrorMessage   string
	Iterations     int
}

// TaskResult is the structured outcome of a run. Failure is reported here,
// never silently converted to success.
type TaskResult struct {
	Status         string            `json:"status"`
	Success        bool              `json:"success"`
	Task           string            `json:"task"`
	Plan           string            `json:"plan,omitempty"`
	CodeChanges    map[string]string `json:"code_changes,omitempty"`
	ReviewFeedback string            `json:"review_feedback,omitempty"`
	Error          string            `json:"error,omitempty"`
	Iterations     int               `json:"iterations"`
}

// Config wires an Orchestrator. The three role agents are required;
// Recorder and Metrics are optional.
type Config struct {
	Planner       Planner
	Implementer   Implementer
	Reviewer      Reviewer
	MaxIterations int
	Logger        *logx.Logger
	Recorder      RunRecorder
	Metrics       PassMetrics
}

// Orchestrator drives one task through plan -> code -> review until the
// reviewer approves, a role fails, or the iteration cap runs out.
type Orchestrator struct {
	planner       Planner
	implementer   Implementer
	reviewer      Reviewer
	maxIterations int
	logger        *logx.Logger
	recorder      RunRecorder
	metrics       PassMetrics
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Planner == nil || cfg.Implementer == nil || cfg.Reviewer == nil {
		return nil, errors.New("orchestrator requires planner, implementer, and reviewer agents")
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logx.NewLogger("orchestrator")
	}
	return &Orchestrator{
		planner:       cfg.Planner,
		implementer:   cfg.Implementer,
		reviewer:      cfg.Reviewer,
		maxIterations: maxIterations,
		logger:        logger,
		recorder:      cfg.Recorder,
		metrics:       cfg.Metrics,
	}, nil
}

// Run executes the workflow for one task. The iteration cap bounds the
// total number of state-handler passes, checked before each pass and
// incremented after. The returned result is never nil; the error is non-nil
// only when a role failed hard (inference backend error), in which case the
// result reports the same failure.
func (o *Orchestrator) Run(ctx context.Context, task string) (*TaskResult, error) {
	taskCtx := &TaskContext{Task: task}
	state := StatePlanning

	o.logger.Info("Starting task: %s", task)

	recorder := o.recorder
	var runID int64
	if recorder != nil {
		id, err := recorder.StartRun(ctx, task)
		if err != nil {
			o.logger.Warn("run store unavailable, continuing without history: %v", err)
			recorder = nil
		} else {
			runID = id
		}
	}

	var runErr error
	for !state.IsTerminal() {
		if taskCtx.Iterations >= o.maxIterations {
			taskCtx.ErrorMessage = fmt.Sprintf("Max iterations (%d) exceeded", o.maxIterations)
			o.logger.Warn("⚠️  %s", taskCtx.ErrorMessage)
			state = o.transition(state, StateFailed)
			break
		}

		passState := state
		passStart := time.Now()

		var next State
		var err error
		switch state {
		case StatePlanning:
			next, err = o.executePlanning(ctx, taskCtx)
		case StateCoding:
			next, err = o.executeCoding(ctx, taskCtx)
		case StateReviewing:
			next, err = o.executeReviewing(ctx, taskCtx)
		default:
			err = fmt.Errorf("no handler for state %s", state)
		}
		taskCtx.Iterations++

		outcome := passOutcome(passState, next, err)
		if err != nil {
			taskCtx.ErrorMessage = err.Error()
			runErr = err
			next = StateFailed
		}

		o.recordPass(ctx, recorder, runID, taskCtx.Iterations, passState, outcome, time.Since(passStart))
		state = o.transition(passState, next)
	}

	result := buildResult(taskCtx, state)
	if o.metrics != nil {
		o.metrics.RecordTaskRun(result.Status)
	}
	if recorder != nil {
		if err := recorder.FinishRun(ctx, runID, result); err != nil {
			o.logger.Warn("failed to finish run record: %v", err)
		}
	}

	o.logger.Info("Task finished: status=%s iterations=%d", result.Status, result.Iterations)
	return result, runErr
}

// transition validates the move against the canonical table. An invalid
// transition is a programming error in a handler; the run fails rather than
// entering an undefined state.
func (o *Orchestrator) transition(from, to State) State {
	if !IsValidTransition(from, to) {
		o.logger.Error("invalid state transition %s → %s, failing task", from, to)
		return StateFailed
	}
	o.logger.Info("🔄 State machine transition: %s → %s", from, to)
	return to
}

func (o *Orchestrator) executePlanning(ctx context.Context, tc *TaskContext) (State, error) {
	o.logger.Info("State: PLANNING")

	plan, err := o.planner.Run(ctx, tc.Task)
	if err != nil {
		return StateFailed, fmt.Errorf("planning failed: %w", err)
	}
	tc.Plan = plan

	o.logger.Info("Plan created. Transitioning to CODING")
	return StateCoding, nil
}

func (o *Orchestrator) executeCoding(ctx context.Context, tc *TaskContext) (State, error) {
	o.logger.Info("State: CODING")
	if tc.ReviewFeedback != "" {
		o.logger.Info("Passing plan + reviewer feedback to implementer")
	} else {
		o.logger.Info("Passing plan to implementer")
	}

	changes, err := o.implementer.Run(ctx, tc.Plan, tc.Task, tc.ReviewFeedback)
	if err != nil {
		return StateFailed, fmt.Errorf("coding failed: %w", err)
	}
	tc.CodeChanges = changes

	o.logger.Info("Code written (%d files). Transitioning to REVIEWING", len(changes))
	return StateReviewing, nil
}

func (o *Orchestrator) executeReviewing(ctx context.Context, tc *TaskContext) (State, error) {
	o.logger.Info("State: REVIEWING")

	approved, feedback, err := o.reviewer.Run(ctx, tc.CodeChanges, tc.Plan, tc.Task)
	if err != nil {
		return StateFailed, fmt.Errorf("reviewing failed: %w", err)
	}
	tc.ReviewFeedback = feedback

	if approved {
		o.logger.Info("✅ Code APPROVED. Transitioning to COMPLETE")
		return StateComplete, nil
	}
	o.logger.Info("❌ Code REJECTED. Transitioning back to CODING")
	return StateCoding, nil
}

// passOutcome labels a pass for metrics and run history.
func passOutcome(state, next State, err error) string {
	switch {
	case err != nil:
		return "error"
	case state == StateReviewing && next == StateComplete:
		return "approved"
	case state == StateReviewing && next == StateCoding:
		return "rejected"
	default:
		return "ok"
	}
}

func (o *Orchestrator) recordPass(ctx context.Context, recorder RunRecorder, runID int64, seq int, state State, outcome string, duration time.Duration) {
	if o.metrics != nil {
		o.metrics.RecordOrchestratorPass(string(state), outcome)
	}
	if recorder == nil {
		return
	}
	if err := recorder.RecordPass(ctx, runID, seq, string(state), outcome, duration); err != nil {
		o.logger.Warn("failed to record pass %d: %v", seq, err)
	}
}

func buildResult(tc *TaskContext, state State) *TaskResult {
	return &TaskResult{
		Status:         string(state),
		Success:        state == StateComplete,
		Task:           tc.Task,
		Plan:           tc.Plan,
		CodeChanges:    tc.CodeChanges,
		ReviewFeedback: tc.ReviewFeedback,
		Error:          tc.ErrorMessage,
		Iterations:     tc.Iterations,
	}
}
