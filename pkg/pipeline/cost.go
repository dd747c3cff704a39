package pipeline

import (
	"github.com/zen-systems/socflow/pkg/adapter"
	"github.com/zen-systems/socflow/pkg/config"
)

// Cost is the estimated spend of a run.
type Cost struct {
	Currency string             `json:"currency"`
	Amount   float64            `json:"amount"`
	Stages   map[string]float64 `json:"stages,omitempty"`
	// Unpriced lists stages whose provider/model has no pricing entry.
	Unpriced []string `json:"unpriced,omitempty"`
	// Estimated is set when a priced stage used estimated token counts.
	Estimated bool `json:"estimated,omitempty"`
}

type costTracker struct {
	pricing config.PricingConfig
	cost    *Cost
}

func newCostTracker(pricing config.PricingConfig) *costTracker {
	if len(pricing) == 0 {
		return nil
	}
	return &costTracker{
		pricing: pricing,
		cost:    &Cost{Currency: "USD", Stages: make(map[string]float64)},
	}
}

func (t *costTracker) record(out StageOutput) {
	if t == nil {
		return
	}
	amount, ok := estimateCost(t.pricing, out.Provider, out.Model, out.Usage)
	if !ok {
		t.cost.Unpriced = append(t.cost.Unpriced, out.StageID)
		return
	}
	t.cost.Stages[out.StageID] = amount
	t.cost.Amount += amount
	if out.Usage.Estimated {
		t.cost.Estimated = true
	}
}

func (t *costTracker) report() *Cost {
	if t == nil {
		return nil
	}
	return t.cost
}

func estimateCost(pricing config.PricingConfig, provider, model string, usage adapter.Usage) (float64, bool) {
	entry, ok := pricing.Lookup(provider, model)
	if !ok {
		return 0, false
	}
	promptCost := (float64(usage.PromptTokens) / 1000.0) * entry.PromptPer1K
	completionCost := (float64(usage.CompletionTokens) / 1000.0) * entry.CompletionPer1K
	return promptCost + completionCost, true
}
