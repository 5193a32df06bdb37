package repository

import (
	"context"

	"github.com/fluxori-systems/fluxori-sub001/internal/models"
)

// AgentConfigStore Agent配置仓库接口。配置由管理端维护，这里只读。
type AgentConfigStore interface {
	FindByID(ctx context.Context, id uint) (*models.AgentConfig, error)
	FindByOrganization(ctx context.Context, orgID uint) ([]models.AgentConfig, error)
}

// ConversationStore 对话仓库接口
type ConversationStore interface {
	FindByID(ctx context.Context, id uint) (*models.AgentConversation, error)
	Create(ctx context.Context, conversation *models.AgentConversation) error
	// AddMessage 在一个事务里追加消息并累加对话的用量与费用，
	// 读者不会看到只有其中之一生效的状态
	AddMessage(ctx context.Context, conversationID uint, message *models.ConversationMessage) error
	// AddTurn 在一个事务里追加助手消息、累加用量并写入用量流水
	AddTurn(ctx context.Context, conversationID uint, message *models.ConversationMessage, record *models.UsageRecord) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	FindByUser(ctx context.Context, orgID, userID uint, limit int) ([]models.AgentConversation, error)
}

// BestModelParams 模型选择查询参数
type BestModelParams struct {
	Complexity   string
	Provider     string
	Capabilities []string
}

// ModelRegistryStore 模型注册表仓库接口
type ModelRegistryStore interface {
	FindAll(ctx context.Context) ([]models.ModelRegistryEntry, error)
	FindBestModelForTask(ctx context.Context, params BestModelParams) (*models.ModelRegistryEntry, error)
}

// CreditStore 组织额度仓库接口
type CreditStore interface {
	GetBalance(ctx context.Context, orgID uint) (float64, error)
	// Deduct 原子扣减，余额不足时返回(false, balance, nil)
	Deduct(ctx context.Context, orgID uint, amount float64) (bool, float64, error)
	Add(ctx context.Context, orgID uint, amount float64) (float64, error)
}
