package strategies

import (
	"context"

	"github.com/coachpo/algohost/internal/domain/algo"
)

// NoOp starts successfully and declares no hooks, so it never receives events.
type NoOp struct{}

// NewNoOp constructs the no-op algorithm.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Info implements algo.Algorithm.
func (NoOp) Info() algo.Info {
	return algo.Info{
		DisplayName: "No-Op Algorithm",
		Description: "Does nothing. Useful for exercising the lifecycle.",
		Version:     "1.0.0",
		Author:      "algohost",
	}
}

// Start implements algo.Algorithm.
func (NoOp) Start(context.Context, algo.Config) (bool, error) {
	return true, nil
}
