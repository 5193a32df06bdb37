package models

import (
	"encoding/json"
	"time"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// AgentConfig Agent配置表，由组织管理端维护，本服务只读
type AgentConfig struct {
	ID               uint      `gorm:"primaryKey;column:id" json:"id"`
	OrganizationID   uint      `gorm:"column:organization_id;not null;index" json:"organization_id"`
	Name             string    `gorm:"size:100;not null" json:"name"`
	Description      string    `gorm:"size:500" json:"description"`
	SystemPrompt     string    `gorm:"type:text;column:system_prompt;not null" json:"system_prompt"`
	DefaultModel     string    `gorm:"column:default_model;size:100;not null" json:"default_model"`
	Temperature      float64   `gorm:"default:0.7" json:"temperature"`
	TopP             float64   `gorm:"column:top_p;default:1" json:"top_p"`
	MaxOutputTokens  int       `gorm:"column:max_output_tokens;default:1024" json:"max_output_tokens"`
	FrequencyPenalty float64   `gorm:"column:frequency_penalty;default:0" json:"frequency_penalty"`
	PresencePenalty  float64   `gorm:"column:presence_penalty;default:0" json:"presence_penalty"`
	StopSequences    string    `gorm:"type:jsonb;column:stop_sequences" json:"stop_sequences"` // JSON数组
	Functions        string    `gorm:"type:jsonb;column:functions" json:"functions"`           // JSON数组，函数声明
	IsActive         bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreateTime       time.Time `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime       time.Time `gorm:"column:update_time" json:"update_time"`
}

func (AgentConfig) TableName() string {
	return "agent_config"
}

// StopSequenceList 解析停止序列
func (c *AgentConfig) StopSequenceList() []string {
	if c.StopSequences == "" {
		return nil
	}
	var seqs []string
	if err := json.Unmarshal([]byte(c.StopSequences), &seqs); err != nil {
		return nil
	}
	return seqs
}

// AgentConversation 对话表
type AgentConversation struct {
	ID             uint      `gorm:"primaryKey;column:id" json:"id"`
	OrganizationID uint      `gorm:"column:organization_id;not null;index" json:"organization_id"`
	UserID         uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	AgentConfigID  uint      `gorm:"column:agent_config_id;not null;index" json:"agent_config_id"`
	Title          string    `gorm:"size:200" json:"title"`
	TokensUsed     int       `gorm:"column:tokens_used;default:0;not null" json:"tokens_used"`
	Cost           float64   `gorm:"default:0;not null" json:"cost"`
	IsActive       bool      `gorm:"column:is_active;default:true" json:"is_active"`
	LastActivityAt time.Time `gorm:"column:last_activity_at;not null;index" json:"last_activity_at"`
	CreateTime     time.Time `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime     time.Time `gorm:"column:update_time" json:"update_time"`

	Messages []ConversationMessage `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

func (AgentConversation) TableName() string {
	return "agent_conversation"
}

// ConversationMessage 对话消息表，持久化后不再修改
type ConversationMessage struct {
	ID             uint      `gorm:"primaryKey;column:id" json:"id"`
	ConversationID uint      `gorm:"column:conversation_id;not null;index" json:"conversation_id"`
	Role           string    `gorm:"size:20;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Name           string    `gorm:"size:100" json:"name,omitempty"`                      // role=function时的函数名
	FunctionCall   string    `gorm:"type:jsonb;column:function_call" json:"function_call,omitempty"`
	TokenCount     int       `gorm:"column:token_count;default:0" json:"token_count"`
	Cost           float64   `gorm:"default:0" json:"cost"`
	Metadata       string    `gorm:"type:jsonb" json:"metadata,omitempty"` // 模型、供应商、耗时、附件等
	CreatedAt      time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (ConversationMessage) TableName() string {
	return "conversation_message"
}

// MessageMetadata 消息元数据
type MessageMetadata struct {
	Model        string       `json:"model,omitempty"`
	Provider     string       `json:"provider,omitempty"`
	InputTokens  int          `json:"input_tokens,omitempty"`
	OutputTokens int          `json:"output_tokens,omitempty"`
	ProcessingMs int64        `json:"processing_ms,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// Attachment 消息附件元数据
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// ParseMetadata 解析消息元数据
func (m *ConversationMessage) ParseMetadata() *MessageMetadata {
	meta := &MessageMetadata{}
	if m.Metadata == "" {
		return meta
	}
	if err := json.Unmarshal([]byte(m.Metadata), meta); err != nil {
		return &MessageMetadata{}
	}
	return meta
}
