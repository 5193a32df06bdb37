package adapters

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fluxori-systems/fluxori-sub001/internal/models"
	"github.com/fluxori-systems/fluxori-sub001/internal/tokens"
)

func testEntry() *models.ModelRegistryEntry {
	return &models.ModelRegistryEntry{
		Provider:        VertexProviderName,
		Model:           "gemini-pro",
		MaxInputTokens:  30720,
		MaxOutputTokens: 2048,
		CostPer1kInput:  0.000125,
		CostPer1kOutput: 0.000375,
		IsActive:        true,
	}
}

func TestCalculateTokenCost(t *testing.T) {
	base := &baseAdapter{estimator: tokens.NewEstimator()}

	entries := []*models.ModelRegistryEntry{
		testEntry(),
		{CostPer1kInput: 0.0001, CostPer1kOutput: 0.0002},
		{CostPer1kInput: 0.03, CostPer1kOutput: 0.06},
		{CostPer1kInput: 0, CostPer1kOutput: 0},
	}
	counts := []int{0, 1, 1000, 1000000}

	for _, entry := range entries {
		for _, input := range counts {
			for _, output := range counts {
				want := float64(input)/1000*entry.CostPer1kInput +
					float64(output)/1000*entry.CostPer1kOutput
				assert.Equal(t, want, base.CalculateTokenCost(entry, input, output))
			}
		}
	}
}

func TestCountChatTokens(t *testing.T) {
	base := &baseAdapter{estimator: tokens.NewEstimator()}
	entry := testEntry()

	req := ChatRequest{
		Messages: []ChatMessage{
			{Role: models.RoleSystem, Content: strings.Repeat("a", 100)},
			{Role: models.RoleUser, Content: strings.Repeat("b", 100)},
		},
	}

	estimate := base.CountChatTokens(entry, req)

	// 2包装开销 + 2×(4+25)
	assert.Equal(t, 60, estimate.InputTokens)
	// 输出上限用注册表的maxOutputTokens做保守估计
	assert.Equal(t, 2048, estimate.EstimatedOutputTokens)
	assert.Equal(t, 60+2048, estimate.TotalTokens)
}

func TestCountChatTokensFunctionCallArgs(t *testing.T) {
	base := &baseAdapter{estimator: tokens.NewEstimator()}
	entry := testEntry()

	plain := base.CountChatTokens(entry, ChatRequest{
		Messages: []ChatMessage{{Role: models.RoleAssistant}},
	})
	withCall := base.CountChatTokens(entry, ChatRequest{
		Messages: []ChatMessage{{
			Role: models.RoleAssistant,
			FunctionCall: &FunctionCall{
				Name:      "get_weather",
				Arguments: `{"location":"Cape Town"}`,
			},
		}},
	})

	assert.Greater(t, withCall.InputTokens, plain.InputTokens)
}

func TestCountChatTokensRespectsRequestedMaxOutput(t *testing.T) {
	base := &baseAdapter{estimator: tokens.NewEstimator()}
	entry := testEntry()

	estimate := base.CountChatTokens(entry, ChatRequest{
		Messages: []ChatMessage{{Role: models.RoleUser, Content: "hi"}},
		Options:  GenerateOptions{MaxOutputTokens: 512},
	})

	assert.Equal(t, 512, estimate.EstimatedOutputTokens)
}

func TestCountCompletionTokens(t *testing.T) {
	base := &baseAdapter{estimator: tokens.NewEstimator()}
	entry := testEntry()

	estimate := base.CountCompletionTokens(entry, CompletionRequest{
		Prompt: strings.Repeat("a", 100),
	})

	assert.Equal(t, 29, estimate.InputTokens)
	assert.Equal(t, 29+2048, estimate.TotalTokens)
}
