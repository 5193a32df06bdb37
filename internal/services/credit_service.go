package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fluxori-systems/fluxori-sub001/internal/logger"
	"github.com/fluxori-systems/fluxori-sub001/internal/repository"
)

const creditCacheTTL = 5 * time.Minute

// CreditService 组织额度服务。额度以美元计，与注册表价格同单位。
type CreditService struct {
	store  repository.CreditStore
	cache  *redis.Client
	logger *zap.Logger
}

// NewCreditService 创建额度服务
func NewCreditService(store repository.CreditStore, cache *redis.Client) *CreditService {
	return &CreditService{
		store:  store,
		cache:  cache,
		logger: logger.GetLogger(),
	}
}

func creditCacheKey(orgID uint) string {
	return fmt.Sprintf("credit:balance:%d", orgID)
}

// GetBalance 获取额度余额（优先从Redis读取）
func (s *CreditService) GetBalance(ctx context.Context, orgID uint) (float64, error) {
	if s.cache != nil {
		val, err := s.cache.Get(ctx, creditCacheKey(orgID)).Result()
		if err == nil {
			if balance, parseErr := strconv.ParseFloat(val, 64); parseErr == nil {
				return balance, nil
			}
		}
	}

	balance, err := s.store.GetBalance(ctx, orgID)
	if err != nil {
		return 0, err
	}

	s.cacheBalance(ctx, orgID, balance)
	return balance, nil
}

// Reserve 预扣额度。余额不足时返回(false, 当前余额, nil)。
func (s *CreditService) Reserve(ctx context.Context, orgID uint, amount float64) (bool, float64, error) {
	if amount <= 0 {
		balance, err := s.GetBalance(ctx, orgID)
		return true, balance, err
	}

	ok, balance, err := s.store.Deduct(ctx, orgID, amount)
	if err != nil {
		return false, 0, err
	}

	s.cacheBalance(ctx, orgID, balance)
	return ok, balance, nil
}

// Settle 结算：按实际费用修正预扣额。实际费用低于预估时返还差额。
func (s *CreditService) Settle(ctx context.Context, orgID uint, reserved, actual float64) error {
	diff := reserved - actual
	if diff == 0 {
		return nil
	}

	var balance float64
	var err error
	if diff > 0 {
		balance, err = s.store.Add(ctx, orgID, diff)
	} else {
		// 实际费用超过预估，补扣差额；即使余额不足也要入账
		_, balance, err = s.store.Deduct(ctx, orgID, -diff)
	}
	if err != nil {
		s.logger.Error("额度结算失败",
			zap.Uint("organization_id", orgID),
			zap.Float64("reserved", reserved),
			zap.Float64("actual", actual),
			zap.Error(err))
		return err
	}

	s.cacheBalance(ctx, orgID, balance)
	return nil
}

// Refund 返还全部预扣额（调用失败时）
func (s *CreditService) Refund(ctx context.Context, orgID uint, amount float64) error {
	if amount <= 0 {
		return nil
	}
	balance, err := s.store.Add(ctx, orgID, amount)
	if err != nil {
		return err
	}
	s.cacheBalance(ctx, orgID, balance)
	return nil
}

func (s *CreditService) cacheBalance(ctx context.Context, orgID uint, balance float64) {
	if s.cache == nil {
		return
	}
	// 缓存失败不影响主流程
	if err := s.cache.SetEx(ctx, creditCacheKey(orgID),
		strconv.FormatFloat(balance, 'f', -1, 64), creditCacheTTL).Err(); err != nil {
		s.logger.Warn("额度缓存更新失败", zap.Uint("organization_id", orgID), zap.Error(err))
	}
}
