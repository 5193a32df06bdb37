package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fluxori-systems/fluxori-sub001/internal/errors"
	"github.com/fluxori-systems/fluxori-sub001/internal/models"
)

// newTestOpenAIAdapter 创建指向测试服务器的适配器
func newTestOpenAIAdapter(t *testing.T, serverURL string) *OpenAIAdapter {
	t.Helper()
	adapter := NewOpenAIAdapter()
	err := adapter.Initialize(ProviderConfig{APIKey: "sk-test-0123456789", BaseURL: serverURL + "/v1"})
	require.NoError(t, err)
	return adapter
}

func gptEntry() *models.ModelRegistryEntry {
	return &models.ModelRegistryEntry{
		Provider:        OpenAIProviderName,
		Model:           "gpt-4",
		MaxInputTokens:  8192,
		MaxOutputTokens: 4096,
		CostPer1kInput:  0.03,
		CostPer1kOutput: 0.06,
		IsActive:        true,
	}
}

func TestOpenAISupportsModel(t *testing.T) {
	adapter := NewOpenAIAdapter()

	assert.True(t, adapter.SupportsModel("gpt-4"))
	assert.True(t, adapter.SupportsModel("gpt-3.5-turbo"))
	assert.True(t, adapter.SupportsModel("o1-mini"))
	assert.True(t, adapter.SupportsModel("chatgpt-4o-latest"))
	assert.False(t, adapter.SupportsModel("gemini-pro"))
	assert.False(t, adapter.SupportsModel("claude-3"))
}

func TestOpenAIInitializeRequiresAPIKey(t *testing.T) {
	adapter := NewOpenAIAdapter()
	err := adapter.Initialize(ProviderConfig{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfiguration))
}

func TestOpenAIValidateCredentials(t *testing.T) {
	adapter := NewOpenAIAdapter()

	assert.True(t, adapter.ValidateCredentials(map[string]string{"api_key": "sk-abc123"}))
	assert.False(t, adapter.ValidateCredentials(map[string]string{"api_key": "abc123"}))
	assert.False(t, adapter.ValidateCredentials(map[string]string{}))
}

func TestOpenAIGenerateChatCompletionUninitialized(t *testing.T) {
	adapter := NewOpenAIAdapter()

	_, err := adapter.GenerateChatCompletion(context.Background(), gptEntry(), ChatRequest{
		Messages: []ChatMessage{{Role: models.RoleUser, Content: "hello"}},
	})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfiguration))
}

func TestOpenAIGenerateChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test-0123456789", r.Header.Get("Authorization"))

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: "好的，有什么可以帮你？",
				},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 20},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := newTestOpenAIAdapter(t, server.URL)

	result, err := adapter.GenerateChatCompletion(context.Background(), gptEntry(), ChatRequest{
		Messages: []ChatMessage{{Role: models.RoleUser, Content: "hello"}},
	})

	require.NoError(t, err)
	assert.Equal(t, FinishStop, result.FinishReason)
	assert.Equal(t, "好的，有什么可以帮你？", result.Content)
	assert.Equal(t, OpenAIProviderName, result.Provider)
	assert.Equal(t, "gpt-4", result.Model)
	assert.Equal(t, 12, result.Usage.InputTokens)
	assert.Equal(t, 8, result.Usage.OutputTokens)
	assert.Equal(t, 20, result.Usage.TotalTokens)
	assert.InDelta(t, 12.0/1000*0.03+8.0/1000*0.06, result.Usage.Cost, 1e-12)
}

func TestOpenAIToolCallsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 部分兼容后端对legacy functions请求用tool_calls应答
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant,
					ToolCalls: []openai.ToolCall{{
						ID:   "call_1",
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      "get_weather",
							Arguments: `{"city":"Shanghai"}`,
						},
					}},
				},
				FinishReason: openai.FinishReasonToolCalls,
			}},
			Usage: openai.Usage{PromptTokens: 30, CompletionTokens: 10, TotalTokens: 40},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := newTestOpenAIAdapter(t, server.URL)

	result, err := adapter.GenerateChatCompletion(context.Background(), gptEntry(), ChatRequest{
		Messages: []ChatMessage{{Role: models.RoleUser, Content: "上海天气怎么样"}},
		Options: GenerateOptions{
			Functions: []FunctionDeclaration{{Name: "get_weather"}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, FinishFunctionCall, result.FinishReason)
	// tool_calls载荷必须提取为函数调用，不能整个丢掉
	require.NotNil(t, result.FunctionCall)
	assert.Equal(t, "get_weather", result.FunctionCall.Name)
	assert.JSONEq(t, `{"city":"Shanghai"}`, result.FunctionCall.Arguments)
}

func TestOpenAIFunctionCallResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant,
					FunctionCall: &openai.FunctionCall{
						Name:      "create_quote",
						Arguments: `{"customer_id":42}`,
					},
				},
				FinishReason: openai.FinishReasonFunctionCall,
			}},
			Usage: openai.Usage{PromptTokens: 25, CompletionTokens: 12, TotalTokens: 37},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := newTestOpenAIAdapter(t, server.URL)

	result, err := adapter.GenerateChatCompletion(context.Background(), gptEntry(), ChatRequest{
		Messages: []ChatMessage{{Role: models.RoleUser, Content: "给客户42出个报价"}},
	})

	require.NoError(t, err)
	assert.Equal(t, FinishFunctionCall, result.FinishReason)
	require.NotNil(t, result.FunctionCall)
	assert.Equal(t, "create_quote", result.FunctionCall.Name)
	assert.JSONEq(t, `{"customer_id":42}`, result.FunctionCall.Arguments)
}

func TestOpenAIFinishReasonMapping(t *testing.T) {
	cases := []struct {
		openai openai.FinishReason
		want   FinishReason
	}{
		{openai.FinishReasonStop, FinishStop},
		{openai.FinishReasonLength, FinishLength},
		{openai.FinishReasonFunctionCall, FinishFunctionCall},
		{openai.FinishReasonToolCalls, FinishFunctionCall},
		{openai.FinishReasonContentFilter, FinishContentFilter},
		{openai.FinishReason("something_new"), FinishStop},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, mapOpenAIFinishReason(tc.openai), string(tc.openai))
	}
}

func TestOpenAIErrorClassification(t *testing.T) {
	adapter := NewOpenAIAdapter()

	cases := []struct {
		name     string
		err      error
		wantCode apperrors.ErrorCode
		retry    bool
	}{
		{
			name:     "未授权",
			err:      &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "Incorrect API key provided"},
			wantCode: apperrors.ErrCodeAuthorization,
		},
		{
			name:     "模型不存在",
			err:      &openai.APIError{HTTPStatusCode: http.StatusNotFound, Message: "The model does not exist"},
			wantCode: apperrors.ErrCodeModelUnavailable,
		},
		{
			name:     "限流",
			err:      &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "Rate limit reached"},
			wantCode: apperrors.ErrCodeRateLimitExceeded,
			retry:    true,
		},
		{
			name:     "超过上下文长度",
			err:      &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "This model's maximum context length is 8192 tokens"},
			wantCode: apperrors.ErrCodeTokenLimitExceeded,
		},
		{
			name:     "服务端错误",
			err:      &openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "The server had an error"},
			wantCode: apperrors.ErrCodeExecution,
			retry:    true,
		},
		{
			name:     "其他API错误",
			err:      &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "Invalid request"},
			wantCode: apperrors.ErrCodeExecution,
		},
		{
			name:     "网络错误",
			err:      fmt.Errorf("connection refused"),
			wantCode: apperrors.ErrCodeExecution,
			retry:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := adapter.classifyError("gpt-4", tc.err)
			require.Error(t, classified)
			assert.True(t, apperrors.HasCode(classified, tc.wantCode))
			assert.Equal(t, tc.retry, apperrors.IsRetryable(classified))
		})
	}
}

func TestOpenAIBuildRequest(t *testing.T) {
	adapter := NewOpenAIAdapter()
	temperature := 0.7
	topP := 0.9

	req := adapter.buildRequest("gpt-4", ChatRequest{
		Messages: []ChatMessage{
			{Role: models.RoleSystem, Content: "You are a helpful assistant."},
			{Role: models.RoleUser, Content: "查一下"},
			{Role: models.RoleAssistant, FunctionCall: &FunctionCall{Name: "lookup", Arguments: `{"q":"x"}`}},
			{Role: models.RoleFunction, Name: "lookup", Content: `{"result":"ok"}`},
		},
		Options: GenerateOptions{
			Temperature:     &temperature,
			TopP:            &topP,
			MaxOutputTokens: 512,
			StopSequences:   []string{"END"},
		},
	})

	assert.Equal(t, "gpt-4", req.Model)
	require.Len(t, req.Messages, 4)

	// system角色原样保留（与Vertex的systemInstruction不同）
	assert.Equal(t, models.RoleSystem, req.Messages[0].Role)

	// name只在role=function时携带
	assert.Empty(t, req.Messages[1].Name)
	assert.Equal(t, "lookup", req.Messages[3].Name)

	require.NotNil(t, req.Messages[2].FunctionCall)
	assert.Equal(t, "lookup", req.Messages[2].FunctionCall.Name)

	assert.Equal(t, float32(0.7), req.Temperature)
	assert.Equal(t, float32(0.9), req.TopP)
	assert.Equal(t, 512, req.MaxTokens)
	assert.Equal(t, []string{"END"}, req.Stop)
}

func TestOpenAIBuildRequestFunctionCallModes(t *testing.T) {
	adapter := NewOpenAIAdapter()
	fns := []FunctionDeclaration{{Name: "lookup", Description: "查询"}}

	req := adapter.buildRequest("gpt-4", ChatRequest{Options: GenerateOptions{Functions: fns}})
	require.Len(t, req.Functions, 1)
	assert.Equal(t, "lookup", req.Functions[0].Name)
	assert.Equal(t, FunctionCallAuto, req.FunctionCall)

	req = adapter.buildRequest("gpt-4", ChatRequest{Options: GenerateOptions{Functions: fns, FunctionCall: FunctionCallNone}})
	assert.Equal(t, FunctionCallNone, req.FunctionCall)

	req = adapter.buildRequest("gpt-4", ChatRequest{Options: GenerateOptions{Functions: fns, FunctionCall: "lookup"}})
	assert.Equal(t, map[string]string{"name": "lookup"}, req.FunctionCall)

	// 没有函数声明时不设置function_call
	req = adapter.buildRequest("gpt-4", ChatRequest{})
	assert.Nil(t, req.FunctionCall)
	assert.Empty(t, req.Functions)
}
