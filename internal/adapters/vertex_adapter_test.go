package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fluxori-systems/fluxori-sub001/internal/errors"
	"github.com/fluxori-systems/fluxori-sub001/internal/models"
)

// newTestVertexAdapter 创建指向测试服务器的适配器
func newTestVertexAdapter(t *testing.T, serverURL string) *VertexAdapter {
	t.Helper()
	adapter := NewVertexAdapter()
	err := adapter.Initialize(ProviderConfig{APIKey: "test-api-key-0123456789", BaseURL: serverURL})
	require.NoError(t, err)
	return adapter
}

func geminiEntry() *models.ModelRegistryEntry {
	return &models.ModelRegistryEntry{
		Provider:        VertexProviderName,
		Model:           "gemini-pro",
		MaxInputTokens:  30720,
		MaxOutputTokens: 2048,
		CostPer1kInput:  0.000125,
		CostPer1kOutput: 0.000375,
		IsActive:        true,
	}
}

func TestVertexSupportsModel(t *testing.T) {
	adapter := NewVertexAdapter()

	assert.True(t, adapter.SupportsModel("gemini-pro"))
	assert.True(t, adapter.SupportsModel("gemini-1.5-flash"))
	assert.True(t, adapter.SupportsModel("text-bison"))
	assert.False(t, adapter.SupportsModel("gpt-4"))
	assert.False(t, adapter.SupportsModel("claude-3"))
}

func TestVertexInitializeRequiresAPIKey(t *testing.T) {
	adapter := NewVertexAdapter()
	assert.Error(t, adapter.Initialize(ProviderConfig{}))
}

func TestVertexGenerateChatCompletionUninitialized(t *testing.T) {
	adapter := NewVertexAdapter()

	_, err := adapter.GenerateChatCompletion(context.Background(), geminiEntry(), ChatRequest{
		Messages: []ChatMessage{{Role: models.RoleUser, Content: "hello"}},
	})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfiguration))
}

func TestVertexGenerateChatCompletion(t *testing.T) {
	var captured vertexRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/models/gemini-pro:generateContent")
		assert.Equal(t, "test-api-key-0123456789", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := vertexResponse{
			Candidates: []vertexCandidate{{
				Content: vertexContent{
					Role:  "model",
					Parts: []vertexPart{{Text: "你好，有什么可以帮你？"}},
				},
				FinishReason: "STOP",
			}},
			UsageMetadata: &vertexUsageMetadata{
				PromptTokenCount:     12,
				CandidatesTokenCount: 8,
				TotalTokenCount:      20,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := newTestVertexAdapter(t, server.URL)
	temperature := 0.7

	result, err := adapter.GenerateChatCompletion(context.Background(), geminiEntry(), ChatRequest{
		Messages: []ChatMessage{
			{Role: models.RoleSystem, Content: "You are a helpful assistant."},
			{Role: models.RoleUser, Content: "hello"},
		},
		Options: GenerateOptions{Temperature: &temperature, MaxOutputTokens: 512},
	})

	require.NoError(t, err)
	assert.Equal(t, FinishStop, result.FinishReason)
	assert.Equal(t, "你好，有什么可以帮你？", result.Content)
	assert.Equal(t, VertexProviderName, result.Provider)
	assert.Equal(t, "gemini-pro", result.Model)

	// 用量以供应商返回为准
	assert.Equal(t, 12, result.Usage.InputTokens)
	assert.Equal(t, 8, result.Usage.OutputTokens)
	assert.Equal(t, 20, result.Usage.TotalTokens)
	assert.InDelta(t, 12.0/1000*0.000125+8.0/1000*0.000375, result.Usage.Cost, 1e-12)

	// 请求投影：system消息进systemInstruction，不进contents
	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "You are a helpful assistant.", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "user", captured.Contents[0].Role)
	require.NotNil(t, captured.GenerationConfig.Temperature)
	assert.Equal(t, 0.7, *captured.GenerationConfig.Temperature)
	require.NotNil(t, captured.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, 512, *captured.GenerationConfig.MaxOutputTokens)
}

func TestVertexFunctionCallResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := vertexResponse{
			Candidates: []vertexCandidate{{
				Content: vertexContent{
					Role: "model",
					Parts: []vertexPart{{FunctionCall: &vertexFunctionCall{
						Name: "get_weather",
						Args: json.RawMessage(`{"city":"Shanghai"}`),
					}}},
				},
				FinishReason: "STOP",
			}},
			UsageMetadata: &vertexUsageMetadata{PromptTokenCount: 30, CandidatesTokenCount: 10, TotalTokenCount: 40},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := newTestVertexAdapter(t, server.URL)

	result, err := adapter.GenerateChatCompletion(context.Background(), geminiEntry(), ChatRequest{
		Messages: []ChatMessage{{Role: models.RoleUser, Content: "上海天气怎么样"}},
		Options: GenerateOptions{
			Functions: []FunctionDeclaration{{
				Name:        "get_weather",
				Description: "查询天气",
				Parameters:  map[string]interface{}{"type": "object"},
			}},
		},
	})

	require.NoError(t, err)
	// 含functionCall的part覆盖结束原因
	assert.Equal(t, FinishFunctionCall, result.FinishReason)
	require.NotNil(t, result.FunctionCall)
	assert.Equal(t, "get_weather", result.FunctionCall.Name)
	assert.JSONEq(t, `{"city":"Shanghai"}`, result.FunctionCall.Arguments)
}

func TestVertexUsageFallbackToEstimate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := vertexResponse{
			Candidates: []vertexCandidate{{
				Content:      vertexContent{Role: "model", Parts: []vertexPart{{Text: "hello there"}}},
				FinishReason: "STOP",
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := newTestVertexAdapter(t, server.URL)

	result, err := adapter.GenerateChatCompletion(context.Background(), geminiEntry(), ChatRequest{
		Messages: []ChatMessage{{Role: models.RoleUser, Content: "hi"}},
	})

	require.NoError(t, err)
	// usageMetadata缺失时回退到启发式估算
	assert.Greater(t, result.Usage.InputTokens, 0)
	assert.Greater(t, result.Usage.OutputTokens, 0)
	assert.Equal(t, result.Usage.InputTokens+result.Usage.OutputTokens, result.Usage.TotalTokens)
}

func TestVertexFinishReasonMapping(t *testing.T) {
	cases := []struct {
		vertex string
		want   FinishReason
	}{
		{"STOP", FinishStop},
		{"MAX_TOKENS", FinishLength},
		{"SAFETY", FinishContentFilter},
		{"RECITATION", FinishContentFilter},
		{"MALFORMED_FUNCTION_CALL", FinishError},
		{"SOMETHING_NEW", FinishStop},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, mapVertexFinishReason(tc.vertex), tc.vertex)
	}
}

func TestVertexErrorClassification(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		wantCode apperrors.ErrorCode
		retry    bool
	}{
		{
			name:     "未授权",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`,
			wantCode: apperrors.ErrCodeAuthorization,
		},
		{
			name:     "模型不存在",
			status:   http.StatusNotFound,
			body:     `{"error":{"code":404,"message":"model not found","status":"NOT_FOUND"}}`,
			wantCode: apperrors.ErrCodeModelUnavailable,
		},
		{
			name:     "限流",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`,
			wantCode: apperrors.ErrCodeRateLimitExceeded,
			retry:    true,
		},
		{
			name:     "超过token上限",
			status:   http.StatusBadRequest,
			body:     `{"error":{"code":400,"message":"input token count exceeds the limit","status":"INVALID_ARGUMENT"}}`,
			wantCode: apperrors.ErrCodeTokenLimitExceeded,
		},
		{
			name:     "服务端错误",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"code":500,"message":"internal error","status":"INTERNAL"}}`,
			wantCode: apperrors.ErrCodeExecution,
			retry:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			adapter := newTestVertexAdapter(t, server.URL)
			_, err := adapter.GenerateChatCompletion(context.Background(), geminiEntry(), ChatRequest{
				Messages: []ChatMessage{{Role: models.RoleUser, Content: "hello"}},
			})

			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tc.wantCode))
			assert.Equal(t, tc.retry, apperrors.IsRetryable(err))
		})
	}
}

func TestVertexBuildRequestToolConfigModes(t *testing.T) {
	adapter := NewVertexAdapter()
	fns := []FunctionDeclaration{{Name: "lookup"}}

	req := adapter.buildRequest(ChatRequest{Options: GenerateOptions{Functions: fns}})
	require.NotNil(t, req.ToolConfig)
	assert.Equal(t, "AUTO", req.ToolConfig.FunctionCallingConfig.Mode)

	req = adapter.buildRequest(ChatRequest{Options: GenerateOptions{Functions: fns, FunctionCall: FunctionCallNone}})
	assert.Equal(t, "NONE", req.ToolConfig.FunctionCallingConfig.Mode)

	req = adapter.buildRequest(ChatRequest{Options: GenerateOptions{Functions: fns, FunctionCall: "lookup"}})
	assert.Equal(t, "ANY", req.ToolConfig.FunctionCallingConfig.Mode)
	assert.Equal(t, []string{"lookup"}, req.ToolConfig.FunctionCallingConfig.AllowedFunctionNames)
}

func TestVertexBuildRequestFunctionHistory(t *testing.T) {
	adapter := NewVertexAdapter()

	req := adapter.buildRequest(ChatRequest{
		Messages: []ChatMessage{
			{Role: models.RoleUser, Content: "查一下"},
			{Role: models.RoleAssistant, FunctionCall: &FunctionCall{Name: "lookup", Arguments: `{"q":"x"}`}},
			{Role: models.RoleFunction, Name: "lookup", Content: `{"result":"ok"}`},
		},
	})

	require.Len(t, req.Contents, 3)
	assert.Equal(t, "model", req.Contents[1].Role)
	require.NotNil(t, req.Contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "lookup", req.Contents[1].Parts[0].FunctionCall.Name)
	require.NotNil(t, req.Contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "lookup", req.Contents[2].Parts[0].FunctionResponse.Name)
}
