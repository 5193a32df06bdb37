package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fluxori-systems/fluxori-sub001/internal/models"
)

// ModelRegistryRepo 模型注册表仓库（gorm实现）
type ModelRegistryRepo struct {
	db *gorm.DB
}

// NewModelRegistryRepo 创建模型注册表仓库
func NewModelRegistryRepo(db *gorm.DB) *ModelRegistryRepo {
	return &ModelRegistryRepo{db: db}
}

// FindAll 返回全部注册表条目（含停用的，调用方自行过滤is_active）
func (r *ModelRegistryRepo) FindAll(ctx context.Context) ([]models.ModelRegistryEntry, error) {
	var entries []models.ModelRegistryEntry
	if err := r.db.WithContext(ctx).
		Order("display_order ASC, model ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load model registry: %w", err)
	}
	return entries, nil
}

// FindBestModelForTask 按复杂度/供应商/能力选择模型，
// 只考虑启用的条目，按display_order取第一个
func (r *ModelRegistryRepo) FindBestModelForTask(ctx context.Context, params BestModelParams) (*models.ModelRegistryEntry, error) {
	query := r.db.WithContext(ctx).
		Where("is_active = ?", true)

	if params.Complexity != "" {
		query = query.Where("complexity = ?", params.Complexity)
	}
	if params.Provider != "" {
		query = query.Where("provider = ?", params.Provider)
	}
	if len(params.Capabilities) > 0 {
		caps, err := json.Marshal(params.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal capabilities: %w", err)
		}
		// jsonb包含查询：条目能力必须覆盖要求的全部能力
		query = query.Where("capabilities @> ?", string(caps))
	}

	var entry models.ModelRegistryEntry
	if err := query.Order("display_order ASC").First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select model: %w", err)
	}
	return &entry, nil
}

var _ ModelRegistryStore = (*ModelRegistryRepo)(nil)
