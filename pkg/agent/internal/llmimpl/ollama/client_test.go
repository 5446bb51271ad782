package ollama

import (
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codepilot/pkg/agent/llm"
	"codepilot/pkg/agent/llmerrors"
	"codepilot/pkg/tools"
)

// makeToolCallArgs creates a ToolCallFunctionArguments from a map for testing.
func makeToolCallArgs(m map[string]any) api.ToolCallFunctionArguments {
	args := api.NewToolCallFunctionArguments()
	for k, v := range m {
		args.Set(k, v)
	}
	return args
}

func TestNewOllamaClientWithModel(t *testing.T) {
	tests := []struct {
		name    string
		hostURL string
		model   string
	}{
		{
			name:    "valid host and model",
			hostURL: "http://localhost:11434",
			model:   "phi4:latest",
		},
		{
			name:    "custom host",
			hostURL: "http://192.168.1.100:11434",
			model:   "llama3.1:8b",
		},
		{
			name:    "invalid URL falls back to default",
			hostURL: "not-a-valid-url",
			model:   "mistral:7b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewOllamaClientWithModel(tt.hostURL, tt.model)
			require.NotNil(t, client)
			assert.Equal(t, tt.model, client.GetModelName())
		})
	}
}

func TestConvertMessagesToOllama(t *testing.T) {
	tests := []struct {
		name     string
		messages []llm.CompletionMessage
		wantLen  int
		wantErr  bool
	}{
		{
			name:     "empty messages returns error",
			messages: []llm.CompletionMessage{},
			wantErr:  true,
		},
		{
			name: "single user message",
			messages: []llm.CompletionMessage{
				{Role: llm.RoleUser, Content: "Hello"},
			},
			wantLen: 1,
		},
		{
			name: "system and user messages",
			messages: []llm.CompletionMessage{
				{Role: llm.RoleSystem, Content: "You are helpful"},
				{Role: llm.RoleUser, Content: "Hello"},
			},
			wantLen: 2,
		},
		{
			name: "message with tool calls",
			messages: []llm.CompletionMessage{
				{Role: llm.RoleUser, Content: "What's in main.go?"},
				{
					Role:    llm.RoleAssistant,
					Content: "",
					ToolCalls: []llm.ToolCall{
						{
							ID:         "call_1",
							Name:       "read_file",
							Parameters: map[string]any{"path": "main.go"},
						},
					},
				},
			},
			wantLen: 2,
		},
		{
			name: "message with tool results",
			messages: []llm.CompletionMessage{
				{
					Role: llm.RoleUser,
					ToolResults: []llm.ToolResult{
						{
							ToolCallID: "call_1",
							Content:    "package main",
							IsError:    false,
						},
					},
				},
			},
			wantLen: 1, // Tool results become separate "tool" role messages
		},
		{
			name: "tool results with additional content",
			messages: []llm.CompletionMessage{
				{
					Role:    llm.RoleUser,
					Content: "Here's the result",
					ToolResults: []llm.ToolResult{
						{
							ToolCallID: "call_1",
							Content:    "package main",
						},
					},
				},
			},
			wantLen: 2, // One "tool" message + one user message with content
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := convertMessagesToOllama(tt.messages)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, result, tt.wantLen)
		})
	}
}

func TestConvertMessagesToOllama_RoleMapping(t *testing.T) {
	messages := []llm.CompletionMessage{
		{Role: llm.RoleSystem, Content: "System prompt"},
		{Role: llm.RoleUser, Content: "User message"},
		{Role: llm.RoleAssistant, Content: "Assistant response"},
	}

	result, err := convertMessagesToOllama(messages)
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, "system", result[0].Role)
	assert.Equal(t, "user", result[1].Role)
	assert.Equal(t, "assistant", result[2].Role)
}

func TestConvertMessagesToOllama_ToolResultShape(t *testing.T) {
	messages := []llm.CompletionMessage{
		{
			Role: llm.RoleUser,
			ToolResults: []llm.ToolResult{
				{ToolCallID: "call_9", Content: "exit 0"},
			},
		},
	}

	result, err := convertMessagesToOllama(messages)
	require.NoError(t, err)
	require.Len(t, result, 1)

	assert.Equal(t, "tool", result[0].Role)
	assert.Equal(t, "call_9", result[0].ToolCallID)
	assert.Equal(t, "exit 0", result[0].Content)
}

func TestConvertToolsToOllama(t *testing.T) {
	toolDefs := []tools.ToolDefinition{
		{
			Name:        "grep_search",
			Description: "Search file contents for a pattern",
			InputSchema: tools.InputSchema{
				Type: "object",
				Properties: map[string]tools.Property{
					"pattern": {
						Type:        "string",
						Description: "Pattern to search for",
					},
					"mode": {
						Type:        "string",
						Description: "Match mode",
						Enum:        []string{"literal", "regex"},
					},
				},
				Required: []string{"pattern"},
			},
		},
	}

	result := convertToolsToOllama(toolDefs)
	require.Len(t, result, 1)

	tool := result[0]
	assert.Equal(t, "function", tool.Type)
	assert.Equal(t, "grep_search", tool.Function.Name)
	assert.Equal(t, "Search file contents for a pattern", tool.Function.Description)
	assert.Equal(t, "object", tool.Function.Parameters.Type)
	// Check properties exist using Get method
	_, hasPattern := tool.Function.Parameters.Properties.Get("pattern")
	_, hasMode := tool.Function.Parameters.Properties.Get("mode")
	assert.True(t, hasPattern, "should have pattern property")
	assert.True(t, hasMode, "should have mode property")
	assert.Equal(t, []string{"pattern"}, tool.Function.Parameters.Required)

	// Check enum conversion
	modeProp, _ := tool.Function.Parameters.Properties.Get("mode")
	assert.Len(t, modeProp.Enum, 2)
}

func TestConvertArgumentsRoundTrip(t *testing.T) {
	params := map[string]any{"path": "main.go", "timeout_secs": float64(30)}

	args := convertArgumentsToOllama(params)
	calls := convertToolCallsFromOllama([]api.ToolCall{
		{ID: "call_1", Function: api.ToolCallFunction{Name: "read_file", Arguments: args}},
	})

	require.Len(t, calls, 1)
	assert.Equal(t, params, calls[0].Parameters)
}

func TestConvertToolCallsFromOllama(t *testing.T) {
	tests := []struct {
		name  string
		calls []api.ToolCall
		want  []llm.ToolCall
	}{
		{
			name:  "empty calls",
			calls: []api.ToolCall{},
			want:  []llm.ToolCall{},
		},
		{
			name: "single call with ID",
			calls: []api.ToolCall{
				{
					ID: "call_abc123",
					Function: api.ToolCallFunction{
						Name:      "read_file",
						Arguments: makeToolCallArgs(map[string]any{"path": "main.go"}),
					},
				},
			},
			want: []llm.ToolCall{
				{
					ID:         "call_abc123",
					Name:       "read_file",
					Parameters: map[string]any{"path": "main.go"},
				},
			},
		},
		{
			name: "call without ID gets generated",
			calls: []api.ToolCall{
				{
					Function: api.ToolCallFunction{
						Name:      "search_codebase",
						Arguments: makeToolCallArgs(map[string]any{"query": "test"}),
					},
				},
			},
			want: []llm.ToolCall{
				{
					ID:         "call_0",
					Name:       "search_codebase",
					Parameters: map[string]any{"query": "test"},
				},
			},
		},
		{
			name: "multiple calls",
			calls: []api.ToolCall{
				{
					ID: "call_1",
					Function: api.ToolCallFunction{
						Name:      "tool_a",
						Arguments: makeToolCallArgs(map[string]any{"a": float64(1)}),
					},
				},
				{
					ID: "call_2",
					Function: api.ToolCallFunction{
						Name:      "tool_b",
						Arguments: makeToolCallArgs(map[string]any{"b": float64(2)}),
					},
				},
			},
			want: []llm.ToolCall{
				{ID: "call_1", Name: "tool_a", Parameters: map[string]any{"a": float64(1)}},
				{ID: "call_2", Name: "tool_b", Parameters: map[string]any{"b": float64(2)}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := convertToolCallsFromOllama(tt.calls)
			require.Len(t, result, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want.ID, result[i].ID)
				assert.Equal(t, want.Name, result[i].Name)
				assert.Equal(t, want.Parameters, result[i].Parameters)
			}
		})
	}
}

func TestGetStopReason(t *testing.T) {
	tests := []struct {
		name       string
		resp       api.ChatResponse
		wantReason string
	}{
		{
			name:       "not done",
			resp:       api.ChatResponse{Done: false},
			wantReason: "incomplete",
		},
		{
			name:       "done with stop",
			resp:       api.ChatResponse{Done: true, DoneReason: "stop"},
			wantReason: "end_turn",
		},
		{
			name:       "done with length",
			resp:       api.ChatResponse{Done: true, DoneReason: "length"},
			wantReason: "max_tokens",
		},
		{
			name:       "done with empty reason",
			resp:       api.ChatResponse{Done: true, DoneReason: ""},
			wantReason: "end_turn",
		},
		{
			name:       "done with custom reason",
			resp:       api.ChatResponse{Done: true, DoneReason: "custom_reason"},
			wantReason: "custom_reason",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getStopReason(&tt.resp)
			assert.Equal(t, tt.wantReason, result)
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name        string
		errMsg      string
		wantType    llmerrors.ErrorType
		wantContain string
	}{
		{
			name:        "connection refused",
			errMsg:      "dial tcp: connection refused",
			wantType:    llmerrors.ErrorTypeTransient,
			wantContain: "not reachable",
		},
		{
			name:        "model not found",
			errMsg:      "model 'xyz' not found",
			wantType:    llmerrors.ErrorTypeBadPrompt,
			wantContain: "not found",
		},
		{
			name:        "context canceled",
			errMsg:      "context canceled",
			wantType:    llmerrors.ErrorTypeTransient,
			wantContain: "canceled",
		},
		{
			name:        "timeout",
			errMsg:      "request timeout exceeded",
			wantType:    llmerrors.ErrorTypeTransient,
			wantContain: "timeout",
		},
		{
			name:        "unknown error",
			errMsg:      "something unexpected happened",
			wantType:    llmerrors.ErrorTypeUnknown,
			wantContain: "API error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyError(errFromString(tt.errMsg))
			require.Error(t, err)
			assert.Equal(t, tt.wantType, llmerrors.TypeOf(err))
			assert.Contains(t, err.Error(), tt.wantContain)
		})
	}

	assert.NoError(t, classifyError(nil))
}

type stringError string

func (e stringError) Error() string { return string(e) }

func errFromString(s string) error { return stringError(s) }
