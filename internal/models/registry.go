package models

import (
	"encoding/json"
	"time"
)

// 模型复杂度等级
const (
	ComplexitySimple   = "simple"
	ComplexityStandard = "standard"
	ComplexityComplex  = "complex"
)

// ModelRegistryEntry 模型注册表，记录每个(供应商,模型)的限制、能力与价格
type ModelRegistryEntry struct {
	ID              uint      `gorm:"primaryKey;column:id" json:"id"`
	Provider        string    `gorm:"size:50;not null;index" json:"provider"`
	Model           string    `gorm:"size:100;not null;uniqueIndex" json:"model"`
	DisplayName     string    `gorm:"column:display_name;size:200" json:"display_name"`
	MaxInputTokens  int       `gorm:"column:max_input_tokens;not null" json:"max_input_tokens"`
	MaxOutputTokens int       `gorm:"column:max_output_tokens;not null" json:"max_output_tokens"`
	CostPer1kInput  float64   `gorm:"column:cost_per_1k_input;not null" json:"cost_per_1k_input"`   // 美元/1000 tokens
	CostPer1kOutput float64   `gorm:"column:cost_per_1k_output;not null" json:"cost_per_1k_output"` // 美元/1000 tokens
	Capabilities    string    `gorm:"type:jsonb" json:"capabilities"` // JSON数组，如["chat","function-calling"]
	Complexity      string    `gorm:"size:20;default:standard" json:"complexity"`
	IsActive        bool      `gorm:"column:is_active;default:true" json:"is_active"`
	DisplayOrder    int       `gorm:"column:display_order;default:0" json:"display_order"`
	CreateTime      time.Time `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime      time.Time `gorm:"column:update_time" json:"update_time"`
}

func (ModelRegistryEntry) TableName() string {
	return "model_registry"
}

// CapabilityList 解析能力标签
func (e *ModelRegistryEntry) CapabilityList() []string {
	if e.Capabilities == "" {
		return nil
	}
	var caps []string
	if err := json.Unmarshal([]byte(e.Capabilities), &caps); err != nil {
		return nil
	}
	return caps
}

// HasCapability 检查模型是否具备指定能力
func (e *ModelRegistryEntry) HasCapability(capability string) bool {
	for _, c := range e.CapabilityList() {
		if c == capability {
			return true
		}
	}
	return false
}
