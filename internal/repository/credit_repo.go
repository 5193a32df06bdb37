package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fluxori-systems/fluxori-sub001/internal/models"
)

// CreditRepo 组织额度仓库（gorm实现）
type CreditRepo struct {
	db *gorm.DB
}

// NewCreditRepo 创建额度仓库
func NewCreditRepo(db *gorm.DB) *CreditRepo {
	return &CreditRepo{db: db}
}

// GetBalance 获取组织额度余额，无记录视为0
func (r *CreditRepo) GetBalance(ctx context.Context, orgID uint) (float64, error) {
	var credit models.OrganizationCredit
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		First(&credit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load credit balance: %w", err)
	}
	return credit.Balance, nil
}

// Deduct 原子扣减额度。余额不足时不修改并返回(false, 当前余额, nil)。
func (r *CreditRepo) Deduct(ctx context.Context, orgID uint, amount float64) (bool, float64, error) {
	var balance float64
	ok := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 条件更新，余额不足时影响0行
		result := tx.Model(&models.OrganizationCredit{}).
			Where("organization_id = ? AND balance >= ?", orgID, amount).
			Updates(map[string]interface{}{
				"balance":     gorm.Expr("balance - ?", amount),
				"update_time": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to deduct credit: %w", result.Error)
		}
		ok = result.RowsAffected > 0

		var credit models.OrganizationCredit
		if err := tx.Where("organization_id = ?", orgID).First(&credit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				balance = 0
				return nil
			}
			return fmt.Errorf("failed to load credit balance: %w", err)
		}
		balance = credit.Balance
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return ok, balance, nil
}

// Add 增加额度（无记录时创建）
func (r *CreditRepo) Add(ctx context.Context, orgID uint, amount float64) (float64, error) {
	var balance float64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var credit models.OrganizationCredit
		err := tx.Where("organization_id = ?", orgID).First(&credit).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			credit = models.OrganizationCredit{
				OrganizationID: orgID,
				Balance:        amount,
				CreateTime:     time.Now(),
				UpdateTime:     time.Now(),
			}
			if err := tx.Create(&credit).Error; err != nil {
				return fmt.Errorf("failed to create credit record: %w", err)
			}
			balance = credit.Balance
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load credit balance: %w", err)
		}

		result := tx.Model(&models.OrganizationCredit{}).
			Where("organization_id = ?", orgID).
			Updates(map[string]interface{}{
				"balance":     gorm.Expr("balance + ?", amount),
				"update_time": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to add credit: %w", result.Error)
		}
		balance = credit.Balance + amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

var _ CreditStore = (*CreditRepo)(nil)
