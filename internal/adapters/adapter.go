package adapters

import (
	"context"

	"github.com/fluxori-systems/fluxori-sub001/internal/models"
	"github.com/fluxori-systems/fluxori-sub001/internal/tokens"
)

// 函数调用策略
const (
	FunctionCallAuto = "auto"
	FunctionCallNone = "none"
)

// FinishReason 生成结束原因，封闭集合
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishFunctionCall  FinishReason = "function_call"
	FinishContentFilter FinishReason = "content_filter"
	FinishError         FinishReason = "error"
)

// ChatMessage 供应商中立的聊天消息
type ChatMessage struct {
	Role         string        `json:"role"`
	Content      string        `json:"content"`
	Name         string        `json:"name,omitempty"` // 仅role=function时携带
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// FunctionCall 函数调用载荷
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON字符串
}

// FunctionDeclaration 函数声明
type FunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// GenerateOptions 统一的生成参数
type GenerateOptions struct {
	Temperature      *float64              `json:"temperature,omitempty"`
	TopP             *float64              `json:"top_p,omitempty"`
	MaxOutputTokens  int                   `json:"max_output_tokens,omitempty"`
	StopSequences    []string              `json:"stop_sequences,omitempty"`
	FrequencyPenalty *float64              `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64              `json:"presence_penalty,omitempty"`
	Functions        []FunctionDeclaration `json:"functions,omitempty"`
	FunctionCall     string                `json:"function_call,omitempty"` // ""/auto/none/函数名
}

// CompletionRequest 单轮补全请求
type CompletionRequest struct {
	Prompt  string          `json:"prompt"`
	Options GenerateOptions `json:"options"`
}

// ChatRequest 多轮聊天请求
type ChatRequest struct {
	Messages []ChatMessage   `json:"messages"`
	Options  GenerateOptions `json:"options"`
}

// UsageInfo Token使用与费用信息
type UsageInfo struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	ProcessingMs int64   `json:"processing_ms"`
	Cost         float64 `json:"cost"`
}

// ModelResponse 统一的模型响应
type ModelResponse struct {
	Content      string        `json:"content"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	FinishReason FinishReason  `json:"finish_reason"`
	Usage        UsageInfo     `json:"usage"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
}

// TokenEstimate 调用前的token预估
type TokenEstimate struct {
	InputTokens           int `json:"input_tokens"`
	EstimatedOutputTokens int `json:"estimated_output_tokens"`
	TotalTokens           int `json:"total_tokens"`
}

// ProviderConfig 供应商初始化配置
type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

// ModelAdapter 模型适配器接口，每个供应商一个实现
type ModelAdapter interface {
	// Initialize 幂等初始化；配置错误不应拖垮整个系统
	Initialize(cfg ProviderConfig) error
	// ProviderName 返回稳定的分发键
	ProviderName() string
	// SupportsModel 纯谓词，无副作用
	SupportsModel(model string) bool
	// GenerateCompletion 执行单轮补全
	GenerateCompletion(ctx context.Context, entry *models.ModelRegistryEntry, req CompletionRequest) (*ModelResponse, error)
	// GenerateChatCompletion 执行多轮聊天
	GenerateChatCompletion(ctx context.Context, entry *models.ModelRegistryEntry, req ChatRequest) (*ModelResponse, error)
	// CountCompletionTokens 补全请求的token预估
	CountCompletionTokens(entry *models.ModelRegistryEntry, req CompletionRequest) TokenEstimate
	// CountChatTokens 聊天请求的token预估
	CountChatTokens(entry *models.ModelRegistryEntry, req ChatRequest) TokenEstimate
	// ValidateCredentials 校验凭证格式，无副作用
	ValidateCredentials(creds map[string]string) bool
	// CalculateTokenCost 按注册表价格计算费用
	CalculateTokenCost(entry *models.ModelRegistryEntry, inputTokens, outputTokens int) float64
	// ListAvailableModels 列出供应商可用模型，不修改注册表
	ListAvailableModels(ctx context.Context) ([]string, error)
}

// baseAdapter 各适配器共享的计数与计价逻辑
type baseAdapter struct {
	estimator *tokens.Estimator
}

// CalculateTokenCost 纯函数：(in/1000)*单价 + (out/1000)*单价
func (b *baseAdapter) CalculateTokenCost(entry *models.ModelRegistryEntry, inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*entry.CostPer1kInput +
		float64(outputTokens)/1000*entry.CostPer1kOutput
}

// CountCompletionTokens 补全请求的token预估。
// TotalTokens使用注册表的输出上限做保守估计。
func (b *baseAdapter) CountCompletionTokens(entry *models.ModelRegistryEntry, req CompletionRequest) TokenEstimate {
	input := b.estimator.EstimateMessage(tokens.MessageInput{Content: req.Prompt})
	return b.estimate(entry, input, req.Options)
}

// CountChatTokens 聊天请求的token预估
func (b *baseAdapter) CountChatTokens(entry *models.ModelRegistryEntry, req ChatRequest) TokenEstimate {
	msgs := make([]tokens.MessageInput, 0, len(req.Messages))
	for _, m := range req.Messages {
		input := tokens.MessageInput{
			Content: m.Content,
			Name:    m.Name,
		}
		if m.FunctionCall != nil {
			input.FunctionName = m.FunctionCall.Name
			input.FunctionArgs = m.FunctionCall.Arguments
		}
		msgs = append(msgs, input)
	}
	return b.estimate(entry, b.estimator.EstimateConversation(msgs), req.Options)
}

func (b *baseAdapter) estimate(entry *models.ModelRegistryEntry, inputTokens int, opts GenerateOptions) TokenEstimate {
	// 输出上限：模型上限封顶
	estimatedOutput := entry.MaxOutputTokens
	if opts.MaxOutputTokens > 0 && opts.MaxOutputTokens < estimatedOutput {
		estimatedOutput = opts.MaxOutputTokens
	}
	return TokenEstimate{
		InputTokens:           inputTokens,
		EstimatedOutputTokens: estimatedOutput,
		TotalTokens:           inputTokens + estimatedOutput,
	}
}
