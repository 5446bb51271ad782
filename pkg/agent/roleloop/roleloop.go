// Package roleloop implements the bounded tool-calling loop shared by all
// role agents. A role supplies a system directive, an allow-listed tool
// provider, and a turn cap; the loop drives the model until it stops with
// text or the cap runs out. Parsing the final text into role output is the
// caller's job.
package roleloop

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"codepilot/pkg/agent/llm"
	"codepilot/pkg/contextmgr"
	"codepilot/pkg/logx"
	"codepilot/pkg/tools"
)

// DefaultMaxTurns bounds loops whose config does not set a cap.
const DefaultMaxTurns = 10

// Recorder counts inference and tool activity. Satisfied by *metrics.Metrics;
// a nil recorder disables instrumentation.
type Recorder interface {
	RecordLLMRequest(model string, success bool, duration time.Duration)
	RecordLLMTokens(model string, promptTokens, completionTokens int)
	RecordToolExecution(tool string, success bool, duration time.Duration)
}

type multiRecorder []Recorder

func (m multiRecorder) RecordLLMRequest(model string, success bool, duration time.Duration) {
	for _, r := range m {
		r.RecordLLMRequest(model, success, duration)
	}
}

func (m multiRecorder) RecordLLMTokens(model string, promptTokens, completionTokens int) {
	for _, r := range m {
		r.RecordLLMTokens(model, promptTokens, completionTokens)
	}
}

func (m multiRecorder) RecordToolExecution(tool string, success bool, duration time.Duration) {
	for _, r := range m {
		r.RecordToolExecution(tool, success, duration)
	}
}

// MultiRecorder fans recordings out to every non-nil recorder. Returns nil
// when nothing is left to record to.
func MultiRecorder(recs ...Recorder) Recorder {
	var active multiRecorder
	for _, r := range recs {
		if r != nil {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil
	}
	if len(active) == 1 {
		return active[0]
	}
	return active
}

// Config carries the per-role parameters for one loop invocation.
type Config struct {
	// Role tags log lines and error messages ("planner", "implementer", ...).
	Role string

	// SystemPrompt is the fixed role directive.
	SystemPrompt string

	// Tools is the role-filtered provider. Required.
	Tools *tools.Provider

	// MaxTurns caps inference calls for this invocation. <= 0 means
	// DefaultMaxTurns.
	MaxTurns int

	// MaxTokens overrides the default completion budget when > 0.
	MaxTokens int

	// Temperature overrides the default sampling temperature when > 0.
	Temperature float32

	// ToolChoice forwards a provider tool-choice mode ("auto", "any", "none").
	ToolChoice string

	// TrackWrites records successful write_file calls as path -> content.
	// Only the implementer wants this.
	TrackWrites bool

	// Metrics receives per-call instrumentation. Optional.
	Metrics Recorder
}

// Result is what a completed loop invocation produced.
type Result struct {
	// FinalText is the assistant text the role parser consumes. When the
	// cap was exhausted this is the last non-empty assistant text seen.
	FinalText string

	// FileWrites maps workspace-relative paths to the content the agent
	// wrote there. Nil unless TrackWrites was set.
	FileWrites map[string]string

	// Turns is the number of inference calls made.
	Turns int

	// CapExhausted reports that the loop hit MaxTurns without a stop
	// signal. The caller decides whether that is best-effort or failure.
	CapExhausted bool
}

// Loop runs role agents against one LLM client.
type Loop struct {
	client llm.LLMClient
	logger *logx.Logger
}

func New(client llm.LLMClient, logger *logx.Logger) *Loop {
	if logger == nil {
		logger = logx.NewLogger("roleloop")
	}
	return &Loop{client: client, logger: logger}
}

// Run drives the model from seed until it stops with text or the turn cap
// is reached. The transcript starts fresh on every call; nothing survives
// between invocations. Every tool call in an assistant turn is answered by
// exactly one tool result before the next inference call. Inference errors
// abort the loop; tool errors become error-text results and the loop
// continues.
func (l *Loop) Run(ctx context.Context, cfg Config, seed string) (*Result, error) {
	if cfg.Tools == nil {
		return nil, fmt.Errorf("roleloop: %s config has no tool provider", cfg.Role)
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	model := l.client.GetModelName()
	transcript := contextmgr.NewTranscript(model)
	transcript.AddSystemMessage(cfg.SystemPrompt)
	transcript.AddUserMessage(seed)

	toolDefs := cfg.Tools.Definitions()

	result := &Result{}
	if cfg.TrackWrites {
		result.FileWrites = make(map[string]string)
	}

	var lastText string

	for turn := 0; turn < maxTurns; turn++ {
		req := llm.NewCompletionRequest(transcript.Messages())
		req.Tools = toolDefs
		if cfg.MaxTokens > 0 {
			req.MaxTokens = cfg.MaxTokens
		}
		if cfg.Temperature > 0 {
			req.Temperature = cfg.Temperature
		}
		if cfg.ToolChoice != "" {
			req.ToolChoice = cfg.ToolChoice
		}

		l.logger.Info("🔄 Starting LLM call to model '%s' with %d messages, %d max tokens, %d tools (turn %d/%d)",
			model, transcript.MessageCount(), req.MaxTokens, len(toolDefs), turn+1, maxTurns)

		promptTokens := transcript.CountTokens()
		start := time.Now()
		resp, err := l.client.Complete(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			l.logger.Error("❌ LLM call failed after %.3gs: %v", elapsed.Seconds(), err)
			if cfg.Metrics != nil {
				cfg.Metrics.RecordLLMRequest(model, false, elapsed)
			}
			return nil, fmt.Errorf("%s inference failed on turn %d: %w", cfg.Role, turn+1, err)
		}

		l.logger.Info("✅ LLM call completed in %.3gs, response length: %d chars, tool calls: %d",
			elapsed.Seconds(), len(resp.Content), len(resp.ToolCalls))

		if err := transcript.AddAssistantTurn(resp.Content, resp.ToolCalls); err != nil {
			return nil, fmt.Errorf("%s transcript rejected assistant turn: %w", cfg.Role, err)
		}
		if cfg.Metrics != nil {
			cfg.Metrics.RecordLLMRequest(model, true, elapsed)
			cfg.Metrics.RecordLLMTokens(model, promptTokens, transcript.CountTokens()-promptTokens)
		}

		if resp.Content != "" {
			lastText = resp.Content
		}
		result.Turns = turn + 1

		if len(resp.ToolCalls) == 0 {
			result.FinalText = lastText
			return result, nil
		}

		// Execute ALL tool calls (API requirement: every tool call must be
		// answered by a tool result before the next inference call).
		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			results = append(results, l.execute(ctx, cfg, result, call))
		}

		if err := transcript.AddToolResults(results); err != nil {
			return nil, fmt.Errorf("%s transcript rejected tool results: %w", cfg.Role, err)
		}
	}

	l.logger.Warn("⚠️  Maximum loop turns (%d) reached for %s", maxTurns, cfg.Role)
	result.FinalText = lastText
	result.CapExhausted = true
	return result, nil
}

// execute dispatches one tool call and converts the outcome into the tool
// result that answers it. Failures of any kind come back as error text.
func (l *Loop) execute(ctx context.Context, cfg Config, result *Result, call llm.ToolCall) llm.ToolResult {
	l.logger.Info("Executing tool: %s", call.Name)

	args := call.Parameters
	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	execRes := cfg.Tools.Exec(ctx, call.Name, args)
	elapsed := time.Since(start)

	if cfg.Metrics != nil {
		cfg.Metrics.RecordToolExecution(call.Name, !execRes.IsError, elapsed)
	}

	if execRes.IsError {
		l.logger.Warn("Tool %s failed in %.3gs: %s", call.Name, elapsed.Seconds(), firstChars(execRes.Content, 200))
	} else {
		l.logger.Debug("Tool %s completed in %.3gs", call.Name, elapsed.Seconds())
	}

	if cfg.TrackWrites && call.Name == tools.ToolWriteFile && !execRes.IsError {
		if path, ok := args["path"].(string); ok && path != "" {
			content, _ := args["content"].(string)
			result.FileWrites[filepath.Clean(path)] = content
		}
	}

	return llm.ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
		Content:    execRes.Content,
		IsError:    execRes.IsError,
	}
}

func firstChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
