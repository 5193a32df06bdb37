package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fluxori-systems/fluxori-sub001/internal/adapters"
	"github.com/fluxori-systems/fluxori-sub001/internal/config"
	"github.com/fluxori-systems/fluxori-sub001/internal/errors"
	"github.com/fluxori-systems/fluxori-sub001/internal/featuregate"
	"github.com/fluxori-systems/fluxori-sub001/internal/kafka"
	"github.com/fluxori-systems/fluxori-sub001/internal/logger"
	"github.com/fluxori-systems/fluxori-sub001/internal/metrics"
	"github.com/fluxori-systems/fluxori-sub001/internal/models"
	"github.com/fluxori-systems/fluxori-sub001/internal/repository"
)

// ResponseType Agent响应类型
type ResponseType string

const (
	ResponseTypeText   ResponseType = "TEXT"
	ResponseTypeAction ResponseType = "ACTION"
	ResponseTypeError  ResponseType = "ERROR"
)

// CreateConversationRequest 创建对话请求
type CreateConversationRequest struct {
	OrganizationID uint                `json:"organization_id" validate:"required"`
	UserID         uint                `json:"user_id" validate:"required"`
	AgentConfigID  uint                `json:"agent_config_id" validate:"required"`
	InitialMessage string              `json:"initial_message,omitempty"`
	ModelOverride  string              `json:"model_override,omitempty"`
	Attachments    []models.Attachment `json:"attachments,omitempty"`
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	ConversationID uint                `json:"conversation_id" validate:"required"`
	OrganizationID uint                `json:"organization_id" validate:"required"`
	UserID         uint                `json:"user_id" validate:"required"`
	Content        string              `json:"content" validate:"required"`
	ModelOverride  string              `json:"model_override,omitempty"`
	Attachments    []models.Attachment `json:"attachments,omitempty"`
}

// AgentResponse 统一的回合响应
type AgentResponse struct {
	Type           ResponseType           `json:"type"`
	Content        string                 `json:"content"`
	FunctionCall   *adapters.FunctionCall `json:"function_call,omitempty"`
	ConversationID uint                   `json:"conversation_id"`
	MessageID      uint                   `json:"message_id,omitempty"`
	Model          string                 `json:"model,omitempty"`
	Provider       string                 `json:"provider,omitempty"`
	Usage          adapters.UsageInfo     `json:"usage"`
	ErrorCode      errors.ErrorCode       `json:"error_code,omitempty"`
}

// ConversationView 对话视图
type ConversationView struct {
	ID             uint                         `json:"id"`
	Title          string                       `json:"title"`
	TokensUsed     int                          `json:"tokens_used"`
	Cost           float64                      `json:"cost"`
	IsActive       bool                         `json:"is_active"`
	LastActivityAt time.Time                    `json:"last_activity_at"`
	Messages       []models.ConversationMessage `json:"messages,omitempty"`
}

// AgentService 回合编排服务。本身无状态，持久状态全部在外部存储里。
type AgentService struct {
	configs       repository.AgentConfigStore
	conversations repository.ConversationStore
	registry      repository.ModelRegistryStore
	dispatcher    *adapters.AdapterRegistry
	gate          featuregate.FeatureGate
	credits       *CreditService
	agentCfg      config.AgentConfig
	validate      *validator.Validate
	logger        *zap.Logger
}

// NewAgentService 创建Agent编排服务。credits可为nil（未启用额度控制）。
func NewAgentService(
	configs repository.AgentConfigStore,
	conversations repository.ConversationStore,
	registry repository.ModelRegistryStore,
	dispatcher *adapters.AdapterRegistry,
	gate featuregate.FeatureGate,
	credits *CreditService,
	agentCfg config.AgentConfig,
) *AgentService {
	return &AgentService{
		configs:       configs,
		conversations: conversations,
		registry:      registry,
		dispatcher:    dispatcher,
		gate:          gate,
		credits:       credits,
		agentCfg:      agentCfg,
		validate:      validator.New(),
		logger:        logger.GetLogger(),
	}
}

// CreateConversation 创建新对话。功能开关关闭时直接报错（此时还没有
// 可以承载结构化错误的对话存在）。携带初始消息时立即执行一次响应流水线。
func (s *AgentService) CreateConversation(ctx context.Context, req *CreateConversationRequest) (*models.AgentConversation, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewInvalidInputError("invalid create conversation request").WithCause(err)
	}

	agentConfig, err := s.loadAgentConfig(ctx, req.AgentConfigID)
	if err != nil {
		return nil, err
	}

	if !s.agentEnabled(ctx, agentConfig, req.OrganizationID) {
		return nil, errors.NewAuthorizationError(
			fmt.Sprintf("agent %s is not enabled for this organization", agentConfig.Name))
	}

	now := time.Now()
	conversation := &models.AgentConversation{
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		AgentConfigID:  agentConfig.ID,
		Title:          makeTitle(req.InitialMessage, agentConfig.Name),
		IsActive:       true,
		LastActivityAt: now,
		CreateTime:     now,
		Messages: []models.ConversationMessage{
			{
				Role:      models.RoleSystem,
				Content:   agentConfig.SystemPrompt,
				CreatedAt: now,
			},
		},
	}

	if req.InitialMessage != "" {
		conversation.Messages = append(conversation.Messages, models.ConversationMessage{
			Role:      models.RoleUser,
			Content:   req.InitialMessage,
			Metadata:  marshalMetadata(&models.MessageMetadata{Attachments: req.Attachments}),
			CreatedAt: now.Add(time.Millisecond),
		})
	}

	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, errors.NewInternalError("failed to create conversation").WithCause(err)
	}

	s.logger.Info("Created new conversation",
		zap.Uint("conversation_id", conversation.ID),
		zap.Uint("organization_id", req.OrganizationID),
		zap.Uint("user_id", req.UserID),
		zap.String("agent", agentConfig.Name))

	// 超出活跃对话上限的旧对话归档
	if s.agentCfg.MaxActiveConversations > 0 {
		if _, err := s.ArchiveOldConversations(ctx, req.OrganizationID, req.UserID, s.agentCfg.MaxActiveConversations); err != nil {
			s.logger.Warn("归档旧对话失败", zap.Uint("user_id", req.UserID), zap.Error(err))
		}
	}

	if req.InitialMessage != "" {
		if _, err := s.runResponsePipeline(ctx, conversation, agentConfig, req.ModelOverride); err != nil {
			return nil, err
		}
		// 重新加载以包含助手回复与更新后的总量
		reloaded, err := s.conversations.FindByID(ctx, conversation.ID)
		if err != nil {
			return nil, errors.NewInternalError("failed to reload conversation").WithCause(err)
		}
		return reloaded, nil
	}

	return conversation, nil
}

// SendMessage 发送消息并执行响应流水线。对话已存在时功能开关关闭
// 不抛错误，而是返回ERROR类型的响应，保持回合历史结构完整。
func (s *AgentService) SendMessage(ctx context.Context, req *SendMessageRequest) (*AgentResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewInvalidInputError("invalid send message request").WithCause(err)
	}

	conversation, err := s.loadConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	// 归属校验
	if conversation.UserID != req.UserID || conversation.OrganizationID != req.OrganizationID {
		return nil, errors.NewAuthorizationError("conversation does not belong to this user")
	}

	agentConfig, err := s.loadAgentConfig(ctx, conversation.AgentConfigID)
	if err != nil {
		return nil, err
	}

	if !s.agentEnabled(ctx, agentConfig, req.OrganizationID) {
		return &AgentResponse{
			Type:           ResponseTypeError,
			Content:        fmt.Sprintf("agent %s has been disabled", agentConfig.Name),
			ConversationID: conversation.ID,
			ErrorCode:      errors.ErrCodeAuthorization,
		}, nil
	}

	userMessage := models.ConversationMessage{
		Role:      models.RoleUser,
		Content:   req.Content,
		Metadata:  marshalMetadata(&models.MessageMetadata{Attachments: req.Attachments}),
		CreatedAt: time.Now(),
	}
	if err := s.conversations.AddMessage(ctx, conversation.ID, &userMessage); err != nil {
		return nil, errors.NewInternalError("failed to save user message").WithCause(err)
	}
	conversation.Messages = append(conversation.Messages, userMessage)

	return s.runResponsePipeline(ctx, conversation, agentConfig, req.ModelOverride)
}

// runResponsePipeline 响应流水线：解析模型 → 注册表核对 → 解析适配器 →
// 投影历史 → 合并参数 → 调用 → 原子落库 → 映射响应
func (s *AgentService) runResponsePipeline(ctx context.Context, conversation *models.AgentConversation, agentConfig *models.AgentConfig, modelOverride string) (*AgentResponse, error) {
	modelID := agentConfig.DefaultModel
	if modelOverride != "" {
		modelID = modelOverride
	}

	entry, err := s.resolveRegistryEntry(ctx, modelID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.dispatcher.GetAdapterForModel(entry)
	if err != nil {
		return nil, err
	}

	chatReq := adapters.ChatRequest{
		Messages: projectHistory(conversation.Messages),
		Options:  s.mergeOptions(agentConfig, entry),
	}

	// 调用前预估，超出模型输入上限时在花钱之前拒绝
	estimate := adapter.CountChatTokens(entry, chatReq)
	if s.agentCfg.PreflightTokenCheck && entry.MaxInputTokens > 0 && estimate.InputTokens > entry.MaxInputTokens {
		return nil, errors.NewTokenLimitError(fmt.Sprintf(
			"estimated input of %d tokens exceeds model limit of %d", estimate.InputTokens, entry.MaxInputTokens))
	}

	// 额度预扣，按实际费用结算
	var reserved float64
	if s.agentCfg.CreditCheck && s.credits != nil {
		reserved = adapter.CalculateTokenCost(entry, estimate.InputTokens, estimate.EstimatedOutputTokens)
		ok, balance, creditErr := s.credits.Reserve(ctx, conversation.OrganizationID, reserved)
		if creditErr != nil {
			return nil, errors.NewInternalError("credit check failed").WithCause(creditErr)
		}
		if !ok {
			return nil, errors.NewCreditLimitError(fmt.Sprintf(
				"insufficient credit: balance %.4f, estimated cost %.4f", balance, reserved))
		}
	}

	callCtx := ctx
	if s.agentCfg.GenerateTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(s.agentCfg.GenerateTimeoutSeconds)*time.Second)
		defer cancel()
	}

	start := time.Now()
	result, err := adapter.GenerateChatCompletion(callCtx, entry, chatReq)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveFailure(entry.Provider, entry.Model)
		if reserved > 0 {
			if refundErr := s.credits.Refund(ctx, conversation.OrganizationID, reserved); refundErr != nil {
				s.logger.Error("额度返还失败", zap.Uint("organization_id", conversation.OrganizationID), zap.Error(refundErr))
			}
		}
		s.logger.Error("Model generation failed",
			zap.Uint("conversation_id", conversation.ID),
			zap.String("model", entry.Model),
			zap.String("provider", entry.Provider),
			zap.Error(err))
		return nil, errors.GetAgentError(err)
	}

	if reserved > 0 {
		if settleErr := s.credits.Settle(ctx, conversation.OrganizationID, reserved, result.Usage.Cost); settleErr != nil {
			s.logger.Error("额度结算失败", zap.Uint("organization_id", conversation.OrganizationID), zap.Error(settleErr))
		}
	}

	assistantMessage, usageRecord := s.buildTurnRecords(conversation, result)
	if err := s.conversations.AddTurn(ctx, conversation.ID, assistantMessage, usageRecord); err != nil {
		return nil, errors.NewInternalError("failed to persist assistant turn").WithCause(err)
	}

	metrics.ObserveTurn(entry.Provider, entry.Model,
		result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.Cost, elapsed.Seconds())

	// 异步发布用量事件，失败只记录日志
	go s.publishUsageEvent(conversation, result)

	s.logger.Info("Generated agent response",
		zap.Uint("conversation_id", conversation.ID),
		zap.String("model", entry.Model),
		zap.String("provider", entry.Provider),
		zap.String("finish_reason", string(result.FinishReason)),
		zap.Int("input_tokens", result.Usage.InputTokens),
		zap.Int("output_tokens", result.Usage.OutputTokens),
		zap.Float64("cost", result.Usage.Cost))

	return s.buildResponse(conversation.ID, assistantMessage.ID, result), nil
}

// buildTurnRecords 构建助手消息与用量流水
func (s *AgentService) buildTurnRecords(conversation *models.AgentConversation, result *adapters.ModelResponse) (*models.ConversationMessage, *models.UsageRecord) {
	message := &models.ConversationMessage{
		Role:       models.RoleAssistant,
		Content:    result.Content,
		TokenCount: result.Usage.TotalTokens,
		Cost:       result.Usage.Cost,
		Metadata: marshalMetadata(&models.MessageMetadata{
			Model:        result.Model,
			Provider:     result.Provider,
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
			ProcessingMs: result.Usage.ProcessingMs,
		}),
		CreatedAt: time.Now(),
	}
	if result.FunctionCall != nil {
		payload, err := json.Marshal(result.FunctionCall)
		if err == nil {
			message.FunctionCall = string(payload)
		}
	}

	record := &models.UsageRecord{
		OrganizationID: conversation.OrganizationID,
		UserID:         conversation.UserID,
		ConversationID: conversation.ID,
		Provider:       result.Provider,
		Model:          result.Model,
		InputTokens:    result.Usage.InputTokens,
		OutputTokens:   result.Usage.OutputTokens,
		Cost:           result.Usage.Cost,
		ProcessingMs:   result.Usage.ProcessingMs,
	}

	return message, record
}

// buildResponse 把结束原因映射为响应类型：function_call → ACTION，其余 → TEXT
func (s *AgentService) buildResponse(conversationID, messageID uint, result *adapters.ModelResponse) *AgentResponse {
	resp := &AgentResponse{
		Type:           ResponseTypeText,
		Content:        result.Content,
		ConversationID: conversationID,
		MessageID:      messageID,
		Model:          result.Model,
		Provider:       result.Provider,
		Usage:          result.Usage,
	}

	if result.FinishReason == adapters.FinishFunctionCall && result.FunctionCall != nil {
		resp.Type = ResponseTypeAction
		resp.FunctionCall = result.FunctionCall
		if payload, err := json.Marshal(result.FunctionCall); err == nil {
			resp.Content = string(payload)
		}
	}

	return resp
}

// GetConversation 获取对话（含消息），校验归属
func (s *AgentService) GetConversation(ctx context.Context, id, userID uint) (*ConversationView, error) {
	conversation, err := s.loadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, errors.NewAuthorizationError("conversation does not belong to this user")
	}

	view := toConversationView(conversation)
	view.Messages = conversation.Messages
	return view, nil
}

// ListUserConversations 按最近活跃时间降序列出用户的对话
func (s *AgentService) ListUserConversations(ctx context.Context, orgID, userID uint, limit int) ([]ConversationView, error) {
	conversations, err := s.conversations.FindByUser(ctx, orgID, userID, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to list conversations").WithCause(err)
	}

	views := make([]ConversationView, 0, len(conversations))
	for i := range conversations {
		views = append(views, *toConversationView(&conversations[i]))
	}
	return views, nil
}

// GetAgentConfigurations 返回组织启用的Agent配置，按功能开关过滤
func (s *AgentService) GetAgentConfigurations(ctx context.Context, orgID uint) ([]models.AgentConfig, error) {
	configs, err := s.configs.FindByOrganization(ctx, orgID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load agent configs").WithCause(err)
	}

	enabled := make([]models.AgentConfig, 0, len(configs))
	for i := range configs {
		if !configs[i].IsActive {
			continue
		}
		if s.agentEnabled(ctx, &configs[i], orgID) {
			enabled = append(enabled, configs[i])
		}
	}
	return enabled, nil
}

// GetBestModelForTask 参数整形后委托给注册表自己的选择查询
func (s *AgentService) GetBestModelForTask(ctx context.Context, orgID uint, complexity, provider string, capabilities []string) (*models.ModelRegistryEntry, error) {
	entry, err := s.registry.FindBestModelForTask(ctx, repository.BestModelParams{
		Complexity:   complexity,
		Provider:     provider,
		Capabilities: capabilities,
	})
	if err != nil {
		return nil, errors.NewInternalError("model selection failed").WithCause(err)
	}

	if entry == nil {
		s.logger.Debug("No model matched task requirements",
			zap.Uint("organization_id", orgID),
			zap.String("complexity", complexity),
			zap.String("provider", provider))
	}
	return entry, nil
}

// ArchiveOldConversations 保留最近keepActive个活跃对话，其余归档。
// 归档只翻转标志位，不删除消息。重复执行是幂等的。
func (s *AgentService) ArchiveOldConversations(ctx context.Context, orgID, userID uint, keepActive int) (int, error) {
	conversations, err := s.conversations.FindByUser(ctx, orgID, userID, 0)
	if err != nil {
		return 0, errors.NewInternalError("failed to list conversations").WithCause(err)
	}

	// FindByUser已按last_activity_at降序返回，这里再排一次防御存储实现变化
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastActivityAt.After(conversations[j].LastActivityAt)
	})

	archived := 0
	for i := range conversations {
		if i < keepActive || !conversations[i].IsActive {
			continue
		}
		if err := s.conversations.Update(ctx, conversations[i].ID, map[string]interface{}{
			"is_active": false,
		}); err != nil {
			return archived, errors.NewInternalError("failed to archive conversation").WithCause(err)
		}
		archived++
	}

	if archived > 0 {
		s.logger.Info("Archived old conversations",
			zap.Uint("user_id", userID),
			zap.Int("archived", archived),
			zap.Int("keep_active", keepActive))
	}
	return archived, nil
}

// agentEnabled 功能开关检查。开关存储自身出错时放行（可用性优先于
// 严格性，这是早于灰度发布的产品决策，不要悄悄收紧）。
func (s *AgentService) agentEnabled(ctx context.Context, agentConfig *models.AgentConfig, orgID uint) bool {
	if s.gate == nil {
		return true
	}

	flagKey := featuregate.FlagKeyForAgent(agentConfig.Name)
	enabled, err := s.gate.IsEnabled(ctx, flagKey, orgID)
	if err != nil {
		s.logger.Warn("功能开关查询失败，放行",
			zap.String("flag_key", flagKey),
			zap.Uint("organization_id", orgID),
			zap.Error(err))
		return true
	}
	return enabled
}

// mergeOptions 合并生成参数：配置值做默认值，
// maxOutputTokens取min(配置, 注册表)，模型上限永远生效
func (s *AgentService) mergeOptions(agentConfig *models.AgentConfig, entry *models.ModelRegistryEntry) adapters.GenerateOptions {
	temperature := agentConfig.Temperature
	topP := agentConfig.TopP
	frequencyPenalty := agentConfig.FrequencyPenalty
	presencePenalty := agentConfig.PresencePenalty

	maxOutput := agentConfig.MaxOutputTokens
	if entry.MaxOutputTokens > 0 && (maxOutput == 0 || maxOutput > entry.MaxOutputTokens) {
		maxOutput = entry.MaxOutputTokens
	}

	opts := adapters.GenerateOptions{
		Temperature:      &temperature,
		TopP:             &topP,
		MaxOutputTokens:  maxOutput,
		StopSequences:    agentConfig.StopSequenceList(),
		FrequencyPenalty: &frequencyPenalty,
		PresencePenalty:  &presencePenalty,
	}

	if agentConfig.Functions != "" {
		var functions []adapters.FunctionDeclaration
		if err := json.Unmarshal([]byte(agentConfig.Functions), &functions); err != nil {
			s.logger.Warn("Agent函数声明解析失败",
				zap.Uint("agent_config_id", agentConfig.ID),
				zap.Error(err))
		} else if len(functions) > 0 {
			opts.Functions = functions
			opts.FunctionCall = adapters.FunctionCallAuto
		}
	}

	return opts
}

// resolveRegistryEntry 在注册表中查找启用的模型条目
func (s *AgentService) resolveRegistryEntry(ctx context.Context, modelID string) (*models.ModelRegistryEntry, error) {
	entries, err := s.registry.FindAll(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to load model registry").WithCause(err)
	}

	// 线性扫描；目录增大后应换成按模型ID索引的查询
	for i := range entries {
		if entries[i].Model == modelID && entries[i].IsActive {
			return &entries[i], nil
		}
	}
	return nil, errors.NewModelUnavailableError(modelID)
}

func (s *AgentService) loadAgentConfig(ctx context.Context, id uint) (*models.AgentConfig, error) {
	agentConfig, err := s.configs.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewConfigurationError(fmt.Sprintf("agent config %d not found", id))
		}
		return nil, errors.NewInternalError("failed to load agent config").WithCause(err)
	}
	if !agentConfig.IsActive {
		return nil, errors.NewConfigurationError(fmt.Sprintf("agent config %d is disabled", id))
	}
	return agentConfig, nil
}

func (s *AgentService) loadConversation(ctx context.Context, id uint) (*models.AgentConversation, error) {
	conversation, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("conversation %d not found", id))
		}
		return nil, errors.NewInternalError("failed to load conversation").WithCause(err)
	}
	return conversation, nil
}

func (s *AgentService) publishUsageEvent(conversation *models.AgentConversation, result *adapters.ModelResponse) {
	event := &kafka.UsageEvent{
		OrganizationID: conversation.OrganizationID,
		UserID:         conversation.UserID,
		ConversationID: conversation.ID,
		Provider:       result.Provider,
		Model:          result.Model,
		InputTokens:    result.Usage.InputTokens,
		OutputTokens:   result.Usage.OutputTokens,
		TotalTokens:    result.Usage.TotalTokens,
		Cost:           result.Usage.Cost,
		ProcessingMs:   result.Usage.ProcessingMs,
		FinishReason:   string(result.FinishReason),
		Timestamp:      time.Now(),
	}
	if err := kafka.PublishUsageEvent(event); err != nil {
		s.logger.Error("用量事件发布失败",
			zap.Uint("conversation_id", conversation.ID),
			zap.Error(err))
	}
}

// projectHistory 把持久化消息投影为供应商中立的聊天消息。
// name只在role=function时携带，函数调用载荷原样透传。
func projectHistory(messages []models.ConversationMessage) []adapters.ChatMessage {
	projected := make([]adapters.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		chatMsg := adapters.ChatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if msg.Role == models.RoleFunction {
			chatMsg.Name = msg.Name
		}
		if msg.FunctionCall != "" {
			var call adapters.FunctionCall
			if err := json.Unmarshal([]byte(msg.FunctionCall), &call); err == nil {
				chatMsg.FunctionCall = &call
			}
		}
		projected = append(projected, chatMsg)
	}
	return projected
}

func toConversationView(conversation *models.AgentConversation) *ConversationView {
	return &ConversationView{
		ID:             conversation.ID,
		Title:          conversation.Title,
		TokensUsed:     conversation.TokensUsed,
		Cost:           conversation.Cost,
		IsActive:       conversation.IsActive,
		LastActivityAt: conversation.LastActivityAt,
	}
}

func marshalMetadata(meta *models.MessageMetadata) string {
	if meta == nil {
		return ""
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(data)
}

// makeTitle 用首条消息的前60个字符做对话标题
func makeTitle(initialMessage, agentName string) string {
	if initialMessage == "" {
		return agentName
	}
	runes := []rune(initialMessage)
	if len(runes) > 60 {
		return string(runes[:60])
	}
	return initialMessage
}
