package sqlite

import "github.com/untoldecay/eventgraph/internal/types"

// tariff is one model's per-million-token pricing, used to compute
// cost when an assistant event's payload doesn't carry one already.
type tariff struct {
	inputPerMTok      float64
	outputPerMTok     float64
	cacheReadPerMTok  float64
	cacheWritePerMTok float64
}

// modelTariffs is a small built-in pricing table keyed by model name.
// Event payloads are expected to carry their own cost in normal
// operation (spec.md §4.3); this table only covers the case of
// imported or hand-authored fixtures that omit it.
var modelTariffs = map[string]tariff{
	"claude-opus-4":   {inputPerMTok: 15, outputPerMTok: 75, cacheReadPerMTok: 1.5, cacheWritePerMTok: 18.75},
	"claude-sonnet-4": {inputPerMTok: 3, outputPerMTok: 15, cacheReadPerMTok: 0.3, cacheWritePerMTok: 3.75},
	"claude-haiku-4":  {inputPerMTok: 0.8, outputPerMTok: 4, cacheReadPerMTok: 0.08, cacheWritePerMTok: 1},
}

func lookupTariff(model string) (tariff, bool) {
	t, ok := modelTariffs[model]
	return t, ok
}

// estimateCost computes a dollar cost from token counts when no
// explicit cost was supplied on the event payload.
func estimateCost(model string, u types.TokenUsage) float64 {
	t, ok := lookupTariff(model)
	if !ok {
		return 0
	}
	const perMillion = 1_000_000.0
	return float64(u.InputTokens)/perMillion*t.inputPerMTok +
		float64(u.OutputTokens)/perMillion*t.outputPerMTok +
		float64(u.CacheReadTokens)/perMillion*t.cacheReadPerMTok +
		float64(u.CacheCreationTokens)/perMillion*t.cacheWritePerMTok
}
