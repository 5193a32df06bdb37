package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AdapterRequestsTotal 适配器调用次数
	AdapterRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_adapter_requests_total",
			Help: "Total number of model adapter requests",
		},
		[]string{"provider", "model", "status"},
	)

	// AdapterRequestDuration 适配器调用耗时
	AdapterRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_adapter_request_duration_seconds",
			Help:    "Model adapter request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	// TokensTotal 消耗的token数
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tokens_total",
			Help: "Total number of tokens consumed",
		},
		[]string{"provider", "model", "direction"},
	)

	// TurnCostTotal 回合费用（美元）
	TurnCostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_turn_cost_usd_total",
			Help: "Total turn cost in USD",
		},
		[]string{"provider", "model"},
	)
)

// Handler 返回Prometheus指标的HTTP处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTurn 记录一次成功回合的指标
func ObserveTurn(provider, model string, inputTokens, outputTokens int, cost float64, seconds float64) {
	AdapterRequestsTotal.WithLabelValues(provider, model, "success").Inc()
	AdapterRequestDuration.WithLabelValues(provider, model).Observe(seconds)
	TokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	TokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	TurnCostTotal.WithLabelValues(provider, model).Add(cost)
}

// ObserveFailure 记录一次失败的适配器调用
func ObserveFailure(provider, model string) {
	AdapterRequestsTotal.WithLabelValues(provider, model, "error").Inc()
}
