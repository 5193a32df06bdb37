package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fluxori-systems/fluxori-sub001/internal/errors"
	"github.com/fluxori-systems/fluxori-sub001/internal/logger"
	"github.com/fluxori-systems/fluxori-sub001/internal/models"
	"github.com/fluxori-systems/fluxori-sub001/internal/tokens"
)

const (
	// VertexProviderName Vertex AI供应商分发键
	VertexProviderName = "vertex-ai"

	defaultVertexBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultVertexTimeout = 120 * time.Second
)

// vertexModelPrefixes 支持的模型前缀
var vertexModelPrefixes = []string{"gemini-", "text-bison", "chat-bison"}

// VertexAdapter Vertex AI (Gemini)适配器
type VertexAdapter struct {
	baseAdapter

	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewVertexAdapter 创建Vertex AI适配器
func NewVertexAdapter() *VertexAdapter {
	return &VertexAdapter{
		baseAdapter: baseAdapter{estimator: tokens.NewEstimator()},
		baseURL:     defaultVertexBaseURL,
		httpClient:  &http.Client{Timeout: defaultVertexTimeout},
		logger:      logger.GetLogger(),
	}
}

// Initialize 初始化适配器（幂等）
func (a *VertexAdapter) Initialize(cfg ProviderConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("vertex api key is required")
	}
	a.apiKey = cfg.APIKey
	if cfg.BaseURL != "" {
		a.baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return nil
}

// ProviderName 返回供应商名称
func (a *VertexAdapter) ProviderName() string {
	return VertexProviderName
}

// SupportsModel 检查模型是否受支持
func (a *VertexAdapter) SupportsModel(model string) bool {
	for _, prefix := range vertexModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// ValidateCredentials 校验凭证格式
func (a *VertexAdapter) ValidateCredentials(creds map[string]string) bool {
	apiKey, ok := creds["api_key"]
	return ok && len(strings.TrimSpace(apiKey)) >= 16
}

// GenerateCompletion 执行单轮补全（转换为单条user消息的聊天请求）
func (a *VertexAdapter) GenerateCompletion(ctx context.Context, entry *models.ModelRegistryEntry, req CompletionRequest) (*ModelResponse, error) {
	chatReq := ChatRequest{
		Messages: []ChatMessage{{Role: models.RoleUser, Content: req.Prompt}},
		Options:  req.Options,
	}
	return a.GenerateChatCompletion(ctx, entry, chatReq)
}

// GenerateChatCompletion 执行多轮聊天
func (a *VertexAdapter) GenerateChatCompletion(ctx context.Context, entry *models.ModelRegistryEntry, req ChatRequest) (*ModelResponse, error) {
	if a.apiKey == "" {
		return nil, errors.NewConfigurationError("vertex adapter is not initialized")
	}

	vertexReq := a.buildRequest(req)

	body, err := json.Marshal(vertexReq)
	if err != nil {
		return nil, errors.NewExecutionError("failed to marshal vertex request", false).WithCause(err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, entry.Model, a.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewExecutionError("failed to create vertex request", false).WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewExecutionError("vertex request failed", true).WithCause(err)
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewExecutionError("failed to read vertex response", true).WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.classifyHTTPError(entry.Model, resp.StatusCode, respBody)
	}

	var vertexResp vertexResponse
	if err := json.Unmarshal(respBody, &vertexResp); err != nil {
		return nil, errors.NewExecutionError("failed to unmarshal vertex response", false).WithCause(err)
	}

	if len(vertexResp.Candidates) == 0 {
		return nil, errors.NewExecutionError("vertex returned no candidates", true)
	}

	result := a.buildResponse(entry, &vertexResp, req, elapsed)

	a.logger.Debug("Vertex chat completion finished",
		zap.String("model", entry.Model),
		zap.String("finish_reason", string(result.FinishReason)),
		zap.Int("total_tokens", result.Usage.TotalTokens),
		zap.Duration("elapsed", elapsed))

	return result, nil
}

// ListAvailableModels 列出可用模型
func (a *VertexAdapter) ListAvailableModels(ctx context.Context) ([]string, error) {
	if a.apiKey == "" {
		return nil, errors.NewConfigurationError("vertex adapter is not initialized")
	}

	url := fmt.Sprintf("%s/models?key=%s", a.baseURL, a.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewExecutionError("failed to create vertex request", false).WithCause(err)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewExecutionError("vertex request failed", true).WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewExecutionError("failed to read vertex response", true).WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, a.classifyHTTPError("", resp.StatusCode, respBody)
	}

	var listResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(respBody, &listResp); err != nil {
		return nil, errors.NewExecutionError("failed to unmarshal vertex response", false).WithCause(err)
	}

	names := make([]string, 0, len(listResp.Models))
	for _, m := range listResp.Models {
		// 返回形如 "models/gemini-pro"
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}

// buildRequest 把统一请求转换为Gemini generateContent格式
func (a *VertexAdapter) buildRequest(req ChatRequest) vertexRequest {
	vertexReq := vertexRequest{
		Contents: make([]vertexContent, 0, len(req.Messages)),
	}

	var systemInstruction string

	for _, msg := range req.Messages {
		switch msg.Role {
		case models.RoleSystem:
			// Gemini没有system角色，使用systemInstruction
			systemInstruction = msg.Content
		case models.RoleUser:
			vertexReq.Contents = append(vertexReq.Contents, vertexContent{
				Role:  "user",
				Parts: []vertexPart{{Text: msg.Content}},
			})
		case models.RoleAssistant:
			part := vertexPart{Text: msg.Content}
			if msg.FunctionCall != nil {
				part = vertexPart{FunctionCall: &vertexFunctionCall{
					Name: msg.FunctionCall.Name,
					Args: json.RawMessage(msg.FunctionCall.Arguments),
				}}
			}
			vertexReq.Contents = append(vertexReq.Contents, vertexContent{
				Role:  "model",
				Parts: []vertexPart{part},
			})
		case models.RoleFunction:
			vertexReq.Contents = append(vertexReq.Contents, vertexContent{
				Role: "user",
				Parts: []vertexPart{{FunctionResponse: &vertexFunctionResponse{
					Name:     msg.Name,
					Response: json.RawMessage(msg.Content),
				}}},
			})
		}
	}

	if systemInstruction != "" {
		vertexReq.SystemInstruction = &vertexContent{
			Parts: []vertexPart{{Text: systemInstruction}},
		}
	}

	opts := req.Options
	if opts.Temperature != nil {
		vertexReq.GenerationConfig.Temperature = opts.Temperature
	}
	if opts.TopP != nil {
		vertexReq.GenerationConfig.TopP = opts.TopP
	}
	if opts.MaxOutputTokens > 0 {
		vertexReq.GenerationConfig.MaxOutputTokens = &opts.MaxOutputTokens
	}
	if len(opts.StopSequences) > 0 {
		vertexReq.GenerationConfig.StopSequences = opts.StopSequences
	}

	if len(opts.Functions) > 0 {
		decls := make([]vertexFunctionDeclaration, 0, len(opts.Functions))
		for _, fn := range opts.Functions {
			decls = append(decls, vertexFunctionDeclaration{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
			})
		}
		vertexReq.Tools = []vertexTool{{FunctionDeclarations: decls}}

		switch opts.FunctionCall {
		case FunctionCallNone:
			vertexReq.ToolConfig = &vertexToolConfig{
				FunctionCallingConfig: vertexFunctionCallingConfig{Mode: "NONE"},
			}
		case "", FunctionCallAuto:
			vertexReq.ToolConfig = &vertexToolConfig{
				FunctionCallingConfig: vertexFunctionCallingConfig{Mode: "AUTO"},
			}
		default:
			// 强制调用指定函数
			vertexReq.ToolConfig = &vertexToolConfig{
				FunctionCallingConfig: vertexFunctionCallingConfig{
					Mode:                 "ANY",
					AllowedFunctionNames: []string{opts.FunctionCall},
				},
			}
		}
	}

	return vertexReq
}

// buildResponse 把Gemini响应转换为统一响应
func (a *VertexAdapter) buildResponse(entry *models.ModelRegistryEntry, resp *vertexResponse, req ChatRequest, elapsed time.Duration) *ModelResponse {
	candidate := resp.Candidates[0]

	result := &ModelResponse{
		FinishReason: mapVertexFinishReason(candidate.FinishReason),
		Model:        entry.Model,
		Provider:     VertexProviderName,
	}

	for _, part := range candidate.Content.Parts {
		if part.FunctionCall != nil {
			args := "{}"
			if len(part.FunctionCall.Args) > 0 {
				args = string(part.FunctionCall.Args)
			}
			result.FunctionCall = &FunctionCall{
				Name:      part.FunctionCall.Name,
				Arguments: args,
			}
			result.FinishReason = FinishFunctionCall
			continue
		}
		result.Content += part.Text
	}

	// 用量以供应商返回为准，缺失时回退到启发式估算
	if resp.UsageMetadata != nil {
		result.Usage.InputTokens = resp.UsageMetadata.PromptTokenCount
		result.Usage.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
		result.Usage.TotalTokens = resp.UsageMetadata.TotalTokenCount
	} else {
		estimate := a.CountChatTokens(entry, req)
		result.Usage.InputTokens = estimate.InputTokens
		result.Usage.OutputTokens = a.estimator.EstimateText(result.Content)
		result.Usage.TotalTokens = result.Usage.InputTokens + result.Usage.OutputTokens
	}
	result.Usage.ProcessingMs = elapsed.Milliseconds()
	result.Usage.Cost = a.CalculateTokenCost(entry, result.Usage.InputTokens, result.Usage.OutputTokens)

	return result
}

// classifyHTTPError 把供应商HTTP错误归入统一错误分类
func (a *VertexAdapter) classifyHTTPError(model string, statusCode int, body []byte) error {
	message := string(body)
	var vertexErr vertexErrorResponse
	if err := json.Unmarshal(body, &vertexErr); err == nil && vertexErr.Error.Message != "" {
		message = vertexErr.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return errors.NewAuthorizationError("vertex authorization failed: " + message)
	case statusCode == http.StatusNotFound:
		return errors.NewModelUnavailableError(model).WithDetails(message)
	case statusCode == http.StatusTooManyRequests:
		return errors.NewRateLimitError("vertex rate limit exceeded: " + message)
	case strings.Contains(strings.ToLower(message), "token") &&
		strings.Contains(strings.ToLower(message), "limit"):
		return errors.NewTokenLimitError(message)
	case statusCode >= http.StatusInternalServerError:
		return errors.NewExecutionError("vertex server error: "+message, true)
	default:
		return errors.NewExecutionError(fmt.Sprintf("vertex error [%d]: %s", statusCode, message), false)
	}
}

// mapVertexFinishReason 转换Gemini结束原因
func mapVertexFinishReason(reason string) FinishReason {
	switch reason {
	case "STOP":
		return FinishStop
	case "MAX_TOKENS":
		return FinishLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return FinishContentFilter
	case "MALFORMED_FUNCTION_CALL":
		return FinishError
	default:
		return FinishStop
	}
}

// Gemini generateContent 请求/响应结构

type vertexRequest struct {
	Contents          []vertexContent        `json:"contents"`
	SystemInstruction *vertexContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  vertexGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []vertexTool           `json:"tools,omitempty"`
	ToolConfig        *vertexToolConfig      `json:"toolConfig,omitempty"`
}

type vertexContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []vertexPart `json:"parts"`
}

type vertexPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *vertexFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *vertexFunctionResponse `json:"functionResponse,omitempty"`
}

type vertexFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type vertexFunctionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response,omitempty"`
}

type vertexGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type vertexTool struct {
	FunctionDeclarations []vertexFunctionDeclaration `json:"functionDeclarations"`
}

type vertexFunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type vertexToolConfig struct {
	FunctionCallingConfig vertexFunctionCallingConfig `json:"functionCallingConfig"`
}

type vertexFunctionCallingConfig struct {
	Mode                 string   `json:"mode"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

type vertexResponse struct {
	Candidates    []vertexCandidate    `json:"candidates"`
	UsageMetadata *vertexUsageMetadata `json:"usageMetadata,omitempty"`
}

type vertexCandidate struct {
	Content      vertexContent `json:"content"`
	FinishReason string        `json:"finishReason"`
	Index        int           `json:"index"`
}

type vertexUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type vertexErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
