// Package contextmgr manages the conversation transcript for a single
// role-agent loop invocation: an append-only sequence of turns with
// tool-call bookkeeping and token accounting.
package contextmgr

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"codepilot/pkg/agent/llm"
	"codepilot/pkg/config"
	"codepilot/pkg/utils"
)

// Transcript is the ordered turn history handed to the inference provider on
// every call. It is owned by exactly one loop invocation and never shared or
// persisted across invocations. Turns are append-only.
//
// Invariant: every tool call emitted in an assistant turn is answered by
// exactly one tool result before the next assistant turn is added.
type Transcript struct {
	messages []llm.CompletionMessage
	counter  *utils.TokenCounter
	pending  map[string]string // tool call ID -> tool name awaiting a result
	model    string
}

// NewTranscript creates an empty transcript for the given model. Token
// counts fall back to a character estimate if the tokenizer cannot load.
func NewTranscript(model string) *Transcript {
	counter, err := utils.NewTokenCounter(model)
	if err != nil {
		counter = nil
	}
	return &Transcript{
		messages: make([]llm.CompletionMessage, 0),
		counter:  counter,
		pending:  make(map[string]string),
		model:    model,
	}
}

// AddSystemMessage appends the role directive.
func (t *Transcript) AddSystemMessage(content string) {
	t.messages = append(t.messages, llm.NewSystemMessage(content))
}

// AddUserMessage appends a plain user turn.
func (t *Transcript) AddUserMessage(content string) {
	t.messages = append(t.messages, llm.NewUserMessage(content))
}

// AddAssistantTurn appends the assistant response and registers its tool
// calls as pending. Adding a new assistant turn while earlier calls are
// still unanswered is a loop bug and is rejected.
func (t *Transcript) AddAssistantTurn(content string, toolCalls []llm.ToolCall) error {
	if len(t.pending) > 0 {
		return fmt.Errorf("cannot add assistant turn: %d tool calls still awaiting results", len(t.pending))
	}

	seen := make(map[string]bool, len(toolCalls))
	for i := range toolCalls {
		if seen[toolCalls[i].ID] {
			return fmt.Errorf("duplicate tool call ID %q in assistant turn", toolCalls[i].ID)
		}
		seen[toolCalls[i].ID] = true
	}

	for i := range toolCalls {
		t.pending[toolCalls[i].ID] = toolCalls[i].Name
	}
	t.messages = append(t.messages, llm.NewAssistantMessage(content, toolCalls))
	return nil
}

// AddToolResults appends the user turn answering the preceding assistant
// tool calls. Every result must match a pending call; every pending call
// must be answered.
func (t *Transcript) AddToolResults(results []llm.ToolResult) error {
	answered := make(map[string]bool, len(results))
	for i := range results {
		id := results[i].ToolCallID
		if _, ok := t.pending[id]; !ok {
			return fmt.Errorf("tool result for unknown call ID %q", id)
		}
		if answered[id] {
			return fmt.Errorf("duplicate tool result for call ID %q", id)
		}
		answered[id] = true
	}

	if len(answered) != len(t.pending) {
		unanswered := make([]string, 0, len(t.pending))
		for id := range t.pending {
			if !answered[id] {
				unanswered = append(unanswered, id)
			}
		}
		sort.Strings(unanswered)
		return fmt.Errorf("tool calls left unanswered: %s", strings.Join(unanswered, ", "))
	}

	t.pending = make(map[string]string)
	t.messages = append(t.messages, llm.NewToolResultsMessage(results))
	return nil
}

// PendingToolCalls returns how many tool calls are awaiting results.
func (t *Transcript) PendingToolCalls() int {
	return len(t.pending)
}

// Messages returns a copy of the transcript for the next inference call.
func (t *Transcript) Messages() []llm.CompletionMessage {
	result := make([]llm.CompletionMessage, len(t.messages))
	copy(result, t.messages)
	return result
}

// MessageCount returns the number of turns in the transcript.
func (t *Transcript) MessageCount() int {
	return len(t.messages)
}

// CountTokens returns the token footprint of the transcript: text content,
// tool call arguments and tool result payloads.
func (t *Transcript) CountTokens() int {
	total := 0
	for i := range t.messages {
		msg := &t.messages[i]
		total += t.count(msg.Content)

		for j := range msg.ToolCalls {
			tc := &msg.ToolCalls[j]
			total += t.count(tc.Name)
			if args, err := json.Marshal(tc.Parameters); err == nil {
				total += t.count(string(args))
			}
		}

		for j := range msg.ToolResults {
			total += t.count(msg.ToolResults[j].Content)
		}
	}
	return total
}

// RemainingTokens reports how much of the model's context window is left
// after the current transcript.
func (t *Transcript) RemainingTokens() int {
	info, _ := config.GetModelInfo(t.model)
	remaining := info.MaxContextTokens - t.CountTokens()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Summary returns a one-line description of the transcript state.
func (t *Transcript) Summary() string {
	if len(t.messages) == 0 {
		return "Empty transcript"
	}

	roleCounts := make(map[llm.CompletionRole]int)
	for i := range t.messages {
		roleCounts[t.messages[i].Role]++
	}

	breakdown := make([]string, 0, len(roleCounts))
	for _, role := range []llm.CompletionRole{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant} {
		if n, ok := roleCounts[role]; ok {
			breakdown = append(breakdown, fmt.Sprintf("%s: %d", role, n))
		}
	}

	return fmt.Sprintf("%d messages (%d tokens) - %s",
		len(t.messages), t.CountTokens(), strings.Join(breakdown, ", "))
}

func (t *Transcript) count(text string) int {
	if t.counter != nil {
		return t.counter.CountTokens(text)
	}
	return len(text) / 4
}
