package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/fluxori-systems/fluxori-sub001/internal/models"
)

// AgentConfigRepo Agent配置仓库（gorm实现）
type AgentConfigRepo struct {
	db *gorm.DB
}

// NewAgentConfigRepo 创建Agent配置仓库
func NewAgentConfigRepo(db *gorm.DB) *AgentConfigRepo {
	return &AgentConfigRepo{db: db}
}

// FindByID 按ID查找Agent配置
func (r *AgentConfigRepo) FindByID(ctx context.Context, id uint) (*models.AgentConfig, error) {
	var config models.AgentConfig
	if err := r.db.WithContext(ctx).First(&config, id).Error; err != nil {
		return nil, fmt.Errorf("failed to find agent config: %w", err)
	}
	return &config, nil
}

// FindByOrganization 查找组织下的全部Agent配置
func (r *AgentConfigRepo) FindByOrganization(ctx context.Context, orgID uint) ([]models.AgentConfig, error) {
	var configs []models.AgentConfig
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("name ASC").
		Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to find agent configs: %w", err)
	}
	return configs, nil
}

var _ AgentConfigStore = (*AgentConfigRepo)(nil)
