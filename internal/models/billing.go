package models

import (
	"time"
)

// OrganizationCredit 组织额度表
type OrganizationCredit struct {
	ID             uint      `gorm:"primaryKey;column:id" json:"id"`
	OrganizationID uint      `gorm:"column:organization_id;not null;uniqueIndex" json:"organization_id"`
	Balance        float64   `gorm:"default:0;not null" json:"balance"` // 美元
	CreateTime     time.Time `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime     time.Time `gorm:"column:update_time" json:"update_time"`
}

func (OrganizationCredit) TableName() string {
	return "organization_credit"
}

// UsageRecord 用量流水表，每个成功的回合写入一条
type UsageRecord struct {
	ID             uint      `gorm:"primaryKey;column:id" json:"id"`
	OrganizationID uint      `gorm:"column:organization_id;not null;index" json:"organization_id"`
	UserID         uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	ConversationID uint      `gorm:"column:conversation_id;not null;index" json:"conversation_id"`
	Provider       string    `gorm:"size:50;not null" json:"provider"`
	Model          string    `gorm:"size:100;not null" json:"model"`
	InputTokens    int       `gorm:"column:input_tokens;default:0;not null" json:"input_tokens"`
	OutputTokens   int       `gorm:"column:output_tokens;default:0;not null" json:"output_tokens"`
	Cost           float64   `gorm:"default:0;not null" json:"cost"`
	ProcessingMs   int64     `gorm:"column:processing_ms;default:0" json:"processing_ms"`
	CreateTime     time.Time `gorm:"column:create_time;not null;index" json:"create_time"`
}

func (UsageRecord) TableName() string {
	return "usage_record"
}
