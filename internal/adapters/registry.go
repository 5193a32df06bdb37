package adapters

import (
	"sync"

	"go.uber.org/zap"

	"github.com/fluxori-systems/fluxori-sub001/internal/errors"
	"github.com/fluxori-systems/fluxori-sub001/internal/logger"
	"github.com/fluxori-systems/fluxori-sub001/internal/models"
)

// AdapterRegistry 适配器注册表，provider名称 -> 适配器实例
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[string]ModelAdapter
	logger   *zap.Logger
}

// NewAdapterRegistry 创建注册表并注册内置适配器
func NewAdapterRegistry() *AdapterRegistry {
	r := &AdapterRegistry{
		adapters: make(map[string]ModelAdapter),
		logger:   logger.GetLogger(),
	}

	// 内置适配器；新供应商通过Register追加
	r.Register(NewVertexAdapter())
	r.Register(NewOpenAIAdapter())

	return r
}

// Register 注册适配器
func (r *AdapterRegistry) Register(adapter ModelAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.ProviderName()] = adapter
}

// GetAdapter 按供应商名称获取适配器
func (r *AdapterRegistry) GetAdapter(provider string) (ModelAdapter, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewConfigurationError("no adapter registered for provider " + provider)
	}
	return adapter, nil
}

// GetAdapterForModel 按注册表条目解析适配器，并复核模型支持情况。
// 注册表数据与已部署适配器不一致时视为配置错误。
func (r *AdapterRegistry) GetAdapterForModel(entry *models.ModelRegistryEntry) (ModelAdapter, error) {
	adapter, err := r.GetAdapter(entry.Provider)
	if err != nil {
		return nil, err
	}

	if !adapter.SupportsModel(entry.Model) {
		return nil, errors.NewConfigurationError(
			"adapter " + entry.Provider + " does not support model " + entry.Model)
	}

	return adapter, nil
}

// Providers 返回已注册的供应商名称
func (r *AdapterRegistry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providers := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		providers = append(providers, name)
	}
	return providers
}

// InitializeAdapters 并发初始化所有已注册的适配器。
// 单个适配器初始化失败只记录日志并隔离，不影响其他适配器。
func (r *AdapterRegistry) InitializeAdapters(configs map[string]ProviderConfig) {
	r.mu.RLock()
	adapters := make(map[string]ModelAdapter, len(r.adapters))
	for name, adapter := range r.adapters {
		adapters[name] = adapter
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for name, adapter := range adapters {
		wg.Add(1)
		go func(name string, adapter ModelAdapter) {
			defer wg.Done()

			if err := adapter.Initialize(configs[name]); err != nil {
				// 失败的供应商退化为"其模型不可用"，不是"系统不可用"
				r.logger.Error("适配器初始化失败",
					zap.String("provider", name),
					zap.Error(err))
				return
			}
			r.logger.Info("Adapter initialized", zap.String("provider", name))
		}(name, adapter)
	}
	wg.Wait()
}
