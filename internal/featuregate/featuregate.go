package featuregate

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// FeatureGate 功能开关接口。IsEnabled可能返回错误（开关存储不可用），
// 调用方自行决定此时的放行策略。
type FeatureGate interface {
	IsEnabled(ctx context.Context, flagKey string, orgID uint) (bool, error)
}

// FlagKeyForAgent 生成Agent的开关键："agent-" + 小写名称，空白转连字符
func FlagKeyForAgent(agentName string) string {
	key := strings.ToLower(agentName)
	key = strings.Join(strings.Fields(key), "-")
	return "agent-" + key
}

// RedisFeatureGate 基于Redis的功能开关存储。
// 开关按kill-switch语义使用：未设置的开关视为开启。
type RedisFeatureGate struct {
	client *redis.Client
}

// NewRedisFeatureGate 创建Redis功能开关
func NewRedisFeatureGate(client *redis.Client) *RedisFeatureGate {
	return &RedisFeatureGate{client: client}
}

// IsEnabled 查询开关状态。组织级配置优先于全局配置。
func (g *RedisFeatureGate) IsEnabled(ctx context.Context, flagKey string, orgID uint) (bool, error) {
	if g.client == nil {
		return false, fmt.Errorf("feature gate store not initialized")
	}

	// 组织级覆盖
	orgKey := fmt.Sprintf("feature:%s:org:%d", flagKey, orgID)
	val, err := g.client.Get(ctx, orgKey).Result()
	if err == nil {
		return parseFlagValue(val), nil
	}
	if err != redis.Nil {
		return false, fmt.Errorf("feature gate lookup failed: %w", err)
	}

	// 全局配置
	globalKey := fmt.Sprintf("feature:%s", flagKey)
	val, err = g.client.Get(ctx, globalKey).Result()
	if err == nil {
		return parseFlagValue(val), nil
	}
	if err != redis.Nil {
		return false, fmt.Errorf("feature gate lookup failed: %w", err)
	}

	// 未设置的开关默认开启
	return true, nil
}

func parseFlagValue(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "on", "enabled":
		return true
	default:
		return false
	}
}

var _ FeatureGate = (*RedisFeatureGate)(nil)
