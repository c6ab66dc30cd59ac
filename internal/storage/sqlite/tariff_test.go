package sqlite

import (
	"testing"

	"github.com/untoldecay/eventgraph/internal/types"
)

func TestEstimateCostUnknownModelIsZero(t *testing.T) {
	got := estimateCost("some-unlisted-model", types.TokenUsage{InputTokens: 1000})
	if got != 0 {
		t.Fatalf("expected 0 cost for unknown model, got %v", got)
	}
}

func TestEstimateCostKnownModel(t *testing.T) {
	got := estimateCost("claude-haiku-4", types.TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000})
	want := 0.8 + 4.0
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
