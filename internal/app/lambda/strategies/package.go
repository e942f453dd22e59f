// Package strategies contains the algorithms compiled into the host.
//
// Available algorithms:
//   - ExampleAlgorithm: reference implementation of every hook
//   - SimpleTestAlgorithm: tracks the last traded price and reports its configuration
//   - Scalpbot: grid of limit buys below the offer, rolled on fills
//   - NoOpAlgorithm: starts and does nothing
package strategies

import (
	"github.com/coachpo/algohost/internal/app/registry"
	"github.com/coachpo/algohost/internal/domain/algo"
)

// Register adds every built-in algorithm to reg.
func Register(reg *registry.Registry) error {
	builtins := []struct {
		name    string
		factory registry.Factory
	}{
		{"ExampleAlgorithm", func() (algo.Algorithm, error) { return NewExample(), nil }},
		{"SimpleTestAlgorithm", func() (algo.Algorithm, error) { return NewSimpleTest(), nil }},
		{"Scalpbot", func() (algo.Algorithm, error) { return NewScalpbot(), nil }},
		{"NoOpAlgorithm", func() (algo.Algorithm, error) { return NewNoOp(), nil }},
	}
	for _, b := range builtins {
		if err := reg.Register(b.name, b.factory); err != nil {
			return err
		}
	}
	return nil
}
