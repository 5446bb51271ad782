package llm

import (
	"testing"
)

// TestCompletionRole tests role constant values.
func TestCompletionRole(t *testing.T) {
	tests := []struct {
		name     string
		role     CompletionRole
		expected string
	}{
		{"system role", RoleSystem, "system"},
		{"user role", RoleUser, "user"},
		{"assistant role", RoleAssistant, "assistant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.role) != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, string(tt.role))
			}
		})
	}
}

// TestConstants tests LLM constant values.
func TestConstants(t *testing.T) {
	if TemperatureDefault != 0.3 {
		t.Errorf("expected TemperatureDefault=0.3, got %f", TemperatureDefault)
	}
	if TemperatureDeterministic != 0.2 {
		t.Errorf("expected TemperatureDeterministic=0.2, got %f", TemperatureDeterministic)
	}
	if StopEndTurn != "end_turn" || StopToolUse != "tool_use" || StopMaxTokens != "max_tokens" {
		t.Error("stop reason constants changed; provider clients normalize to these strings")
	}
}

// TestNewCompletionRequest tests completion request creation with defaults.
func TestNewCompletionRequest(t *testing.T) {
	messages := []CompletionMessage{
		{Role: RoleUser, Content: "test"},
	}

	req := NewCompletionRequest(messages)

	if len(req.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(req.Messages))
	}
	if req.MaxTokens != 4096 {
		t.Errorf("expected MaxTokens=4096, got %d", req.MaxTokens)
	}
	if req.Temperature != TemperatureDefault {
		t.Errorf("expected Temperature=%f, got %f", TemperatureDefault, req.Temperature)
	}
}

// TestNewSystemMessage tests system message creation.
func TestNewSystemMessage(t *testing.T) {
	content := "You are a helpful assistant"
	msg := NewSystemMessage(content)

	if msg.Role != RoleSystem {
		t.Errorf("expected role %q, got %q", RoleSystem, msg.Role)
	}
	if msg.Content != content {
		t.Errorf("expected content %q, got %q", content, msg.Content)
	}
}

// TestNewUserMessage tests user message creation.
func TestNewUserMessage(t *testing.T) {
	content := "Hello, world!"
	msg := NewUserMessage(content)

	if msg.Role != RoleUser {
		t.Errorf("expected role %q, got %q", RoleUser, msg.Role)
	}
	if msg.Content != content {
		t.Errorf("expected content %q, got %q", content, msg.Content)
	}
}

// TestNewAssistantMessage preserves tool calls on the assistant turn.
func TestNewAssistantMessage(t *testing.T) {
	calls := []ToolCall{
		{ID: "call_1", Name: "read_file", Parameters: map[string]any{"path": "main.go"}},
		{ID: "call_2", Name: "list_files", Parameters: map[string]any{}},
	}

	msg := NewAssistantMessage("let me look", calls)

	if msg.Role != RoleAssistant {
		t.Errorf("expected role %q, got %q", RoleAssistant, msg.Role)
	}
	if msg.Content != "let me look" {
		t.Errorf("unexpected content %q", msg.Content)
	}
	if len(msg.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(msg.ToolCalls))
	}
	if msg.ToolCalls[0].ID != "call_1" || msg.ToolCalls[1].Name != "list_files" {
		t.Error("tool calls not preserved in order")
	}
}

// TestNewToolResultsMessage wraps results in a user-role message.
func TestNewToolResultsMessage(t *testing.T) {
	results := []ToolResult{
		{ToolCallID: "call_1", Name: "read_file", Content: "package main", IsError: false},
		{ToolCallID: "call_2", Name: "run_command", Content: "exit 1", IsError: true},
	}

	msg := NewToolResultsMessage(results)

	if msg.Role != RoleUser {
		t.Errorf("expected role %q, got %q", RoleUser, msg.Role)
	}
	if msg.Content != "" {
		t.Errorf("tool results message should carry no plain content, got %q", msg.Content)
	}
	if len(msg.ToolResults) != 2 {
		t.Fatalf("expected 2 results, got %d", len(msg.ToolResults))
	}
	if !msg.ToolResults[1].IsError {
		t.Error("error flag not preserved")
	}
}
