package openaiofficial

import (
	"errors"
	"testing"

	"github.com/openai/openai-go"

	"codepilot/pkg/agent/llm"
	"codepilot/pkg/agent/llmerrors"
	"codepilot/pkg/tools"
)

// TestNewOfficialClient tests client creation with default model.
func TestNewOfficialClient(t *testing.T) {
	client := NewOfficialClient("test-api-key")

	if client == nil {
		t.Fatal("expected client, got nil")
	}

	// Verify it implements the interface
	var _ llm.LLMClient = client
}

// TestNewOfficialClientWithModel tests client creation with custom model.
func TestNewOfficialClientWithModel(t *testing.T) {
	client := NewOfficialClientWithModel("test-api-key", "gpt-4o")

	if client == nil {
		t.Fatal("expected client, got nil")
	}

	modelName := client.GetModelName()
	if modelName != "gpt-4o" {
		t.Errorf("expected model %q, got %q", "gpt-4o", modelName)
	}
}

// TestConvertMessagesToOpenAI tests message conversion.
func TestConvertMessagesToOpenAI(t *testing.T) {
	t.Run("empty messages", func(t *testing.T) {
		_, err := convertMessagesToOpenAI(nil)
		if err == nil {
			t.Fatal("expected error for empty messages")
		}
	})

	t.Run("system and user", func(t *testing.T) {
		result, err := convertMessagesToOpenAI([]llm.CompletionMessage{
			{Role: llm.RoleSystem, Content: "You are helpful"},
			{Role: llm.RoleUser, Content: "Hello"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(result))
		}
		if result[0].OfSystem == nil {
			t.Error("expected system message first")
		}
		if result[1].OfUser == nil {
			t.Error("expected user message second")
		}
	})

	t.Run("tool results become tool messages", func(t *testing.T) {
		result, err := convertMessagesToOpenAI([]llm.CompletionMessage{
			{
				Role: llm.RoleUser,
				ToolResults: []llm.ToolResult{
					{ToolCallID: "call_1", Content: "exit 0"},
					{ToolCallID: "call_2", Content: "package main"},
				},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(result))
		}
		for i := range result {
			if result[i].OfTool == nil {
				t.Errorf("expected tool message at %d", i)
			}
		}
	})

	t.Run("tool results with content add a user message", func(t *testing.T) {
		result, err := convertMessagesToOpenAI([]llm.CompletionMessage{
			{
				Role:    llm.RoleUser,
				Content: "Here you go",
				ToolResults: []llm.ToolResult{
					{ToolCallID: "call_1", Content: "exit 0"},
				},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(result))
		}
		if result[0].OfTool == nil {
			t.Error("expected tool message first")
		}
		if result[1].OfUser == nil {
			t.Error("expected user message second")
		}
	})

	t.Run("assistant with tool calls", func(t *testing.T) {
		result, err := convertMessagesToOpenAI([]llm.CompletionMessage{
			{Role: llm.RoleUser, Content: "What's in main.go?"},
			{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{
					{ID: "call_1", Name: "read_file", Parameters: map[string]any{"path": "main.go"}},
				},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(result))
		}
		assistant := result[1].OfAssistant
		if assistant == nil {
			t.Fatal("expected assistant message")
		}
		if len(assistant.ToolCalls) != 1 {
			t.Fatalf("expected 1 tool call, got %d", len(assistant.ToolCalls))
		}
		if assistant.ToolCalls[0].ID != "call_1" {
			t.Errorf("expected ID call_1, got %q", assistant.ToolCalls[0].ID)
		}
		if assistant.ToolCalls[0].Function.Name != "read_file" {
			t.Errorf("expected name read_file, got %q", assistant.ToolCalls[0].Function.Name)
		}
		if assistant.ToolCalls[0].Function.Arguments != `{"path":"main.go"}` {
			t.Errorf("unexpected arguments %q", assistant.ToolCalls[0].Function.Arguments)
		}
	})
}

// TestConvertToolsToOpenAI tests tool definition conversion.
func TestConvertToolsToOpenAI(t *testing.T) {
	toolDefs := []tools.ToolDefinition{
		{
			Name:        "shell",
			Description: "Run a shell command",
			InputSchema: tools.InputSchema{
				Type: "object",
				Properties: map[string]tools.Property{
					"command": {Type: "string", Description: "The command"},
				},
				Required: []string{"command"},
			},
		},
	}

	result := convertToolsToOpenAI(toolDefs)

	if len(result) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result))
	}

	fn := result[0].Function
	if fn.Name != "shell" {
		t.Errorf("expected name shell, got %q", fn.Name)
	}
	if fn.Parameters["type"] != "object" {
		t.Errorf("expected object schema, got %v", fn.Parameters["type"])
	}
	if _, ok := fn.Parameters["properties"]; !ok {
		t.Error("expected properties in schema")
	}
	if _, ok := fn.Parameters["required"]; !ok {
		t.Error("expected required in schema")
	}
}

// TestConvertToolCallsFromOpenAI tests response tool call conversion.
func TestConvertToolCallsFromOpenAI(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := convertToolCallsFromOpenAI(nil); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("arguments parsed", func(t *testing.T) {
		calls := []openai.ChatCompletionMessageToolCall{
			{
				ID: "call_abc",
				Function: openai.ChatCompletionMessageToolCallFunction{
					Name:      "read_file",
					Arguments: `{"path":"main.go"}`,
				},
			},
		}

		result := convertToolCallsFromOpenAI(calls)
		if len(result) != 1 {
			t.Fatalf("expected 1 call, got %d", len(result))
		}
		if result[0].ID != "call_abc" {
			t.Errorf("expected ID call_abc, got %q", result[0].ID)
		}
		if result[0].Name != "read_file" {
			t.Errorf("expected name read_file, got %q", result[0].Name)
		}
		if result[0].Parameters["path"] != "main.go" {
			t.Errorf("expected path parameter, got %v", result[0].Parameters)
		}
	})

	t.Run("malformed arguments keep empty map", func(t *testing.T) {
		calls := []openai.ChatCompletionMessageToolCall{
			{
				ID: "call_bad",
				Function: openai.ChatCompletionMessageToolCallFunction{
					Name:      "read_file",
					Arguments: `{not json`,
				},
			},
		}

		result := convertToolCallsFromOpenAI(calls)
		if len(result) != 1 {
			t.Fatalf("expected 1 call, got %d", len(result))
		}
		if result[0].Parameters == nil {
			t.Error("expected empty map, got nil")
		}
		if len(result[0].Parameters) != 0 {
			t.Errorf("expected empty parameters, got %v", result[0].Parameters)
		}
	})
}

// TestMapFinishReason tests finish reason mapping.
func TestMapFinishReason(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"stop", llm.StopEndTurn},
		{"", llm.StopEndTurn},
		{"length", llm.StopMaxTokens},
		{"tool_calls", llm.StopToolUse},
		{"content_filter", "content_filter"},
	}

	for _, tt := range tests {
		if got := mapFinishReason(tt.reason); got != tt.want {
			t.Errorf("mapFinishReason(%q) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

// TestSupportsTemperature tests the reasoning model check.
func TestSupportsTemperature(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-4o", true},
		{"gpt-4o-mini", true},
		{"gpt-5", false},
		{"o3-mini", false},
		{"o3", false},
		{"o4-mini", false},
		{"o1-preview", false},
	}

	for _, tt := range tests {
		if got := supportsTemperature(tt.model); got != tt.want {
			t.Errorf("supportsTemperature(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

// TestClassifyError tests error taxonomy mapping.
func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType llmerrors.ErrorType
	}{
		{"bad key", errors.New("401 Unauthorized: invalid_api_key"), llmerrors.ErrorTypeAuth},
		{"rate limit", errors.New("429 Too Many Requests: rate_limit_exceeded"), llmerrors.ErrorTypeRateLimit},
		{"quota", errors.New("insufficient_quota: check billing"), llmerrors.ErrorTypeRateLimit},
		{"too long", errors.New("context_length_exceeded"), llmerrors.ErrorTypeBadPrompt},
		{"server error", errors.New("500 Internal Server Error"), llmerrors.ErrorTypeTransient},
		{"mystery", errors.New("something odd"), llmerrors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if llmerrors.TypeOf(got) != tt.wantType {
				t.Errorf("expected type %v, got %v (%v)", tt.wantType, llmerrors.TypeOf(got), got)
			}
		})
	}

	if classifyError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}
