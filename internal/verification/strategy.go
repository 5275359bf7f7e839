package verification

import "context"

// StrategyHealth is a strategy's self-reported liveness snapshot.
type StrategyHealth struct {
	Available      bool    `json:"available"`
	ResponseTimeMs float64 `json:"response_time_ms"`
	ErrorRate      float64 `json:"error_rate"`
}

// Strategy is the uniform contract every verification method implements.
// The engine selects strategies by kind and never depends on anything
// beyond this interface.
type Strategy interface {
	Kind() StrategyKind
	Verify(ctx context.Context, req *Request) (*StrategyOutcome, error)
	IsAvailable() bool
	Health() StrategyHealth
}
