package adapters

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/fluxori-systems/fluxori-sub001/internal/errors"
	"github.com/fluxori-systems/fluxori-sub001/internal/logger"
	"github.com/fluxori-systems/fluxori-sub001/internal/models"
	"github.com/fluxori-systems/fluxori-sub001/internal/tokens"
)

// OpenAIProviderName OpenAI供应商分发键
const OpenAIProviderName = "openai"

// openaiModelPrefixes 支持的模型前缀
var openaiModelPrefixes = []string{"gpt-", "o1", "o3", "text-davinci", "chatgpt-"}

// OpenAIAdapter OpenAI适配器
type OpenAIAdapter struct {
	baseAdapter

	client *openai.Client
	logger *zap.Logger
}

// NewOpenAIAdapter 创建OpenAI适配器
func NewOpenAIAdapter() *OpenAIAdapter {
	return &OpenAIAdapter{
		baseAdapter: baseAdapter{estimator: tokens.NewEstimator()},
		logger:      logger.GetLogger(),
	}
}

// Initialize 初始化适配器（幂等）
func (a *OpenAIAdapter) Initialize(cfg ProviderConfig) error {
	if cfg.APIKey == "" {
		return errors.NewConfigurationError("openai api key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	a.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

// ProviderName 返回供应商名称
func (a *OpenAIAdapter) ProviderName() string {
	return OpenAIProviderName
}

// SupportsModel 检查模型是否受支持
func (a *OpenAIAdapter) SupportsModel(model string) bool {
	for _, prefix := range openaiModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// ValidateCredentials 校验凭证格式
func (a *OpenAIAdapter) ValidateCredentials(creds map[string]string) bool {
	apiKey, ok := creds["api_key"]
	return ok && strings.HasPrefix(apiKey, "sk-")
}

// GenerateCompletion 执行单轮补全
func (a *OpenAIAdapter) GenerateCompletion(ctx context.Context, entry *models.ModelRegistryEntry, req CompletionRequest) (*ModelResponse, error) {
	// 新模型只提供chat接口，统一走聊天补全
	chatReq := ChatRequest{
		Messages: []ChatMessage{{Role: models.RoleUser, Content: req.Prompt}},
		Options:  req.Options,
	}
	return a.GenerateChatCompletion(ctx, entry, chatReq)
}

// GenerateChatCompletion 执行多轮聊天
func (a *OpenAIAdapter) GenerateChatCompletion(ctx context.Context, entry *models.ModelRegistryEntry, req ChatRequest) (*ModelResponse, error) {
	if a.client == nil {
		return nil, errors.NewConfigurationError("openai adapter is not initialized")
	}

	openaiReq := a.buildRequest(entry.Model, req)

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openaiReq)
	elapsed := time.Since(start)
	if err != nil {
		return nil, a.classifyError(entry.Model, err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.NewExecutionError("openai returned no choices", true)
	}

	choice := resp.Choices[0]
	result := &ModelResponse{
		Content:      choice.Message.Content,
		FinishReason: mapOpenAIFinishReason(choice.FinishReason),
		Model:        entry.Model,
		Provider:     OpenAIProviderName,
		Usage: UsageInfo{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
			ProcessingMs: elapsed.Milliseconds(),
		},
	}
	if choice.Message.FunctionCall != nil {
		result.FunctionCall = &FunctionCall{
			Name:      choice.Message.FunctionCall.Name,
			Arguments: choice.Message.FunctionCall.Arguments,
		}
		result.FinishReason = FinishFunctionCall
	} else if len(choice.Message.ToolCalls) > 0 {
		// 兼容后端用tool_calls应答legacy functions请求的情况
		call := choice.Message.ToolCalls[0]
		result.FunctionCall = &FunctionCall{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
		result.FinishReason = FinishFunctionCall
	}
	result.Usage.Cost = a.CalculateTokenCost(entry, result.Usage.InputTokens, result.Usage.OutputTokens)

	a.logger.Debug("OpenAI chat completion finished",
		zap.String("model", entry.Model),
		zap.String("finish_reason", string(result.FinishReason)),
		zap.Int("total_tokens", result.Usage.TotalTokens),
		zap.Duration("elapsed", elapsed))

	return result, nil
}

// ListAvailableModels 列出可用模型
func (a *OpenAIAdapter) ListAvailableModels(ctx context.Context) ([]string, error) {
	if a.client == nil {
		return nil, errors.NewConfigurationError("openai adapter is not initialized")
	}

	list, err := a.client.ListModels(ctx)
	if err != nil {
		return nil, a.classifyError("", err)
	}

	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.ID)
	}
	return names, nil
}

// buildRequest 把统一请求转换为OpenAI格式
func (a *OpenAIAdapter) buildRequest(model string, req ChatRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		m := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if msg.Role == models.RoleFunction {
			m.Name = msg.Name
		}
		if msg.FunctionCall != nil {
			m.FunctionCall = &openai.FunctionCall{
				Name:      msg.FunctionCall.Name,
				Arguments: msg.FunctionCall.Arguments,
			}
		}
		messages = append(messages, m)
	}

	opts := req.Options
	openaiReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if opts.Temperature != nil {
		openaiReq.Temperature = float32(*opts.Temperature)
	}
	if opts.TopP != nil {
		openaiReq.TopP = float32(*opts.TopP)
	}
	if opts.MaxOutputTokens > 0 {
		openaiReq.MaxTokens = opts.MaxOutputTokens
	}
	if len(opts.StopSequences) > 0 {
		openaiReq.Stop = opts.StopSequences
	}
	if opts.FrequencyPenalty != nil {
		openaiReq.FrequencyPenalty = float32(*opts.FrequencyPenalty)
	}
	if opts.PresencePenalty != nil {
		openaiReq.PresencePenalty = float32(*opts.PresencePenalty)
	}

	if len(opts.Functions) > 0 {
		functions := make([]openai.FunctionDefinition, 0, len(opts.Functions))
		for _, fn := range opts.Functions {
			functions = append(functions, openai.FunctionDefinition{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
			})
		}
		openaiReq.Functions = functions

		switch opts.FunctionCall {
		case "", FunctionCallAuto:
			openaiReq.FunctionCall = FunctionCallAuto
		case FunctionCallNone:
			openaiReq.FunctionCall = FunctionCallNone
		default:
			openaiReq.FunctionCall = map[string]string{"name": opts.FunctionCall}
		}
	}

	return openaiReq
}

// classifyError 把go-openai错误归入统一错误分类
func (a *OpenAIAdapter) classifyError(model string, err error) error {
	var apiErr *openai.APIError
	if !stderrors.As(err, &apiErr) {
		return errors.NewExecutionError("openai request failed", true).WithCause(err)
	}

	message := apiErr.Message
	switch {
	case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
		return errors.NewAuthorizationError("openai authorization failed: " + message)
	case apiErr.HTTPStatusCode == http.StatusNotFound:
		return errors.NewModelUnavailableError(model).WithDetails(message)
	case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
		return errors.NewRateLimitError("openai rate limit exceeded: " + message)
	case strings.Contains(strings.ToLower(message), "maximum context length") ||
		(strings.Contains(strings.ToLower(message), "token") &&
			strings.Contains(strings.ToLower(message), "limit")):
		return errors.NewTokenLimitError(message)
	case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
		return errors.NewExecutionError("openai server error: "+message, true)
	default:
		return errors.NewExecutionError("openai error: "+message, false)
	}
}

// mapOpenAIFinishReason 转换OpenAI结束原因
func mapOpenAIFinishReason(reason openai.FinishReason) FinishReason {
	switch reason {
	case openai.FinishReasonStop:
		return FinishStop
	case openai.FinishReasonLength:
		return FinishLength
	case openai.FinishReasonFunctionCall, openai.FinishReasonToolCalls:
		return FinishFunctionCall
	case openai.FinishReasonContentFilter:
		return FinishContentFilter
	default:
		return FinishStop
	}
}

// 保证编译期接口契约
var (
	_ ModelAdapter = (*OpenAIAdapter)(nil)
	_ ModelAdapter = (*VertexAdapter)(nil)
)
