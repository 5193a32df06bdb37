package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fluxori-systems/fluxori-sub001/internal/models"
)

// ConversationRepo 对话仓库（gorm实现）
type ConversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo 创建对话仓库
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// FindByID 按ID查找对话（含消息，按时间升序）
func (r *ConversationRepo) FindByID(ctx context.Context, id uint) (*models.AgentConversation, error) {
	var conversation models.AgentConversation
	if err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("conversation_message.created_at ASC, conversation_message.id ASC")
		}).
		First(&conversation, id).Error; err != nil {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return &conversation, nil
}

// Create 创建对话（级联创建种子消息）
func (r *ConversationRepo) Create(ctx context.Context, conversation *models.AgentConversation) error {
	now := time.Now()
	if conversation.CreateTime.IsZero() {
		conversation.CreateTime = now
	}
	if conversation.LastActivityAt.IsZero() {
		conversation.LastActivityAt = now
	}
	conversation.UpdateTime = now

	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// AddMessage 追加消息并累加对话用量。消息写入和总量更新在同一个事务里，
// 并发回合不会互相覆盖。
func (r *ConversationRepo) AddMessage(ctx context.Context, conversationID uint, message *models.ConversationMessage) error {
	return r.addMessageTx(ctx, conversationID, message, nil)
}

// AddTurn 追加助手消息、累加用量并写入用量流水（单事务）
func (r *ConversationRepo) AddTurn(ctx context.Context, conversationID uint, message *models.ConversationMessage, record *models.UsageRecord) error {
	return r.addMessageTx(ctx, conversationID, message, record)
}

func (r *ConversationRepo) addMessageTx(ctx context.Context, conversationID uint, message *models.ConversationMessage, record *models.UsageRecord) error {
	now := time.Now()
	message.ConversationID = conversationID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}

		updates := map[string]interface{}{
			"last_activity_at": now,
			"update_time":      now,
		}
		// 原子自增，避免读-改-写竞态
		if message.TokenCount > 0 {
			updates["tokens_used"] = gorm.Expr("tokens_used + ?", message.TokenCount)
		}
		if message.Cost > 0 {
			updates["cost"] = gorm.Expr("cost + ?", message.Cost)
		}

		result := tx.Model(&models.AgentConversation{}).
			Where("id = ?", conversationID).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update conversation totals: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if record != nil {
			if record.CreateTime.IsZero() {
				record.CreateTime = now
			}
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("failed to save usage record: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add message to conversation %d: %w", conversationID, err)
	}
	return nil
}

// Update 更新对话的部分字段
func (r *ConversationRepo) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	updates["update_time"] = time.Now()
	if err := r.db.WithContext(ctx).
		Model(&models.AgentConversation{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// FindByUser 查找用户的对话列表，按最近活跃时间降序
func (r *ConversationRepo) FindByUser(ctx context.Context, orgID, userID uint, limit int) ([]models.AgentConversation, error) {
	var conversations []models.AgentConversation
	query := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Order("last_activity_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("failed to find conversations: %w", err)
	}
	return conversations, nil
}

var _ ConversationStore = (*ConversationRepo)(nil)
