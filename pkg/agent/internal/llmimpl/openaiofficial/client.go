// Package openaiofficial provides the OpenAI client implementation using the
// official OpenAI Go package.
package openaiofficial

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"codepilot/pkg/agent/llm"
	"codepilot/pkg/agent/llmerrors"
	"codepilot/pkg/config"
	"codepilot/pkg/tools"
)

// OfficialClient wraps the official OpenAI Go client to implement llm.LLMClient.
type OfficialClient struct {
	client openai.Client
	model  string
}

// NewOfficialClient creates a new OpenAI client with the default model.
func NewOfficialClient(apiKey string) llm.LLMClient {
	return NewOfficialClientWithModel(apiKey, "gpt-5")
}

// NewOfficialClientWithModel creates a new OpenAI client for a specific model.
func NewOfficialClientWithModel(apiKey, model string) llm.LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OfficialClient{
		client: client,
		model:  model,
	}
}

// Complete implements the llm.LLMClient interface using the Chat Completions API.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (o *OfficialClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages, err := convertMessagesToOpenAI(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	// Cap MaxTokens to the model's actual limit to prevent API errors.
	maxTokens := in.MaxTokens
	if modelInfo, exists := config.KnownModels[o.model]; exists && modelInfo.MaxOutputTokens > 0 {
		if maxTokens > modelInfo.MaxOutputTokens {
			maxTokens = modelInfo.MaxOutputTokens
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:               o.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}

	// Reasoning models reject the temperature parameter outright.
	if supportsTemperature(o.model) {
		params.Temperature = openai.Float(float64(in.Temperature))
	}

	if len(in.Tools) > 0 {
		params.Tools = convertToolsToOpenAI(in.Tools)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "no choices in OpenAI response")
	}

	choice := resp.Choices[0]
	response := llm.CompletionResponse{
		Content:    choice.Message.Content,
		ToolCalls:  convertToolCallsFromOpenAI(choice.Message.ToolCalls),
		StopReason: mapFinishReason(string(choice.FinishReason)),
	}

	if len(response.ToolCalls) > 0 {
		response.StopReason = llm.StopToolUse
	}

	if response.Content == "" && len(response.ToolCalls) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "OpenAI returned no content and no tool calls")
	}

	return response, nil
}

// GetModelName returns the model name for this client.
func (o *OfficialClient) GetModelName() string {
	return o.model
}

// convertMessagesToOpenAI converts our message format to the Chat Completions
// union format. Tool results become "tool" role messages, which the API
// requires directly after the assistant message that issued the calls.
func convertMessagesToOpenAI(messages []llm.CompletionMessage) ([]openai.ChatCompletionMessageParamUnion, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("message list cannot be empty")
	}

	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for i := range messages {
		msg := &messages[i]

		switch msg.Role {
		case llm.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))

		case llm.RoleUser:
			for j := range msg.ToolResults {
				tr := &msg.ToolResults[j]
				result = append(result, openai.ToolMessage(tr.Content, tr.ToolCallID))
			}
			if msg.Content != "" {
				result = append(result, openai.UserMessage(msg.Content))
			}

		case llm.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
				for j := range msg.ToolCalls {
					tc := &msg.ToolCalls[j]
					args, err := json.Marshal(tc.Parameters)
					if err != nil {
						return nil, fmt.Errorf("marshal arguments for tool call %s: %w", tc.ID, err)
					}
					toolCalls[j] = openai.ChatCompletionMessageToolCallParam{
						ID:   tc.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(args),
						},
					}
				}
				result = append(result, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Content:   openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(msg.Content)},
						ToolCalls: toolCalls,
					},
				})
			} else {
				result = append(result, openai.AssistantMessage(msg.Content))
			}

		default:
			return nil, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}

	return result, nil
}

// convertToolsToOpenAI converts our tool definitions to Chat Completions tool
// params. The schema goes through JSON because shared.FunctionParameters is a
// plain JSON Schema map and InputSchema marshals to exactly that.
func convertToolsToOpenAI(toolDefs []tools.ToolDefinition) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, len(toolDefs))

	for i := range toolDefs {
		td := &toolDefs[i]

		var params shared.FunctionParameters
		data, err := json.Marshal(td.InputSchema)
		if err == nil {
			_ = json.Unmarshal(data, &params)
		}

		result[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        td.Name,
				Description: openai.String(td.Description),
				Parameters:  params,
			},
		}
	}

	return result
}

// convertToolCallsFromOpenAI converts response tool calls to our format.
// Arguments arrive as a JSON string; calls whose arguments fail to parse keep
// an empty parameter map so the loop still answers them with a tool result.
func convertToolCallsFromOpenAI(calls []openai.ChatCompletionMessageToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}

	result := make([]llm.ToolCall, 0, len(calls))
	for i := range calls {
		call := &calls[i]

		params := make(map[string]any)
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &params); err != nil {
				params = map[string]any{}
			}
		}

		result = append(result, llm.ToolCall{
			ID:         call.ID,
			Name:       call.Function.Name,
			Parameters: params,
		})
	}

	return result
}

// supportsTemperature reports whether the model accepts a temperature
// parameter. The o-series and gpt-5 reasoning families do not.
func supportsTemperature(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return false
		}
	}
	return true
}

// mapFinishReason maps Chat Completions finish reasons to our stop reasons.
func mapFinishReason(reason string) string {
	switch reason {
	case "stop", "":
		return llm.StopEndTurn
	case "length":
		return llm.StopMaxTokens
	case "tool_calls":
		return llm.StopToolUse
	default:
		return reason
	}
}

// classifyError maps OpenAI API errors to the shared error taxonomy.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request canceled")
	}

	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "invalid_api_key") || strings.Contains(errStr, "Incorrect API key"):
		return llmerrors.NewError(llmerrors.ErrorTypeAuth, fmt.Sprintf("OpenAI authentication error: %v", err))
	case strings.Contains(errStr, "429") || strings.Contains(errStr, "rate_limit") || strings.Contains(errStr, "insufficient_quota"):
		return llmerrors.NewError(llmerrors.ErrorTypeRateLimit, fmt.Sprintf("OpenAI rate limit: %v", err))
	case strings.Contains(errStr, "context_length_exceeded") || strings.Contains(errStr, "invalid_request_error") || strings.Contains(errStr, "400"):
		return llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("OpenAI rejected request: %v", err))
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503") || strings.Contains(errStr, "overloaded"):
		return llmerrors.NewError(llmerrors.ErrorTypeTransient, fmt.Sprintf("OpenAI service error: %v", err))
	default:
		return llmerrors.NewError(llmerrors.ErrorTypeUnknown, fmt.Sprintf("OpenAI API call failed: %v", err))
	}
}
