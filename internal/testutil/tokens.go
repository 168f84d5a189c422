// Package testutil provides deterministic stand-ins for the engine's
// randomized collaborators, so test runs and golden snapshots are
// byte-identical across executions.
package testutil

import (
	"fmt"
	"sync"
)

// FixedRunGenerator generates the same run token every time.
//
// Golden trace comparison needs byte-identical output; a UUID per run would
// make every snapshot churn. If token is empty, Generate returns
// "test-run-default".
type FixedRunGenerator struct {
	token string
}

// NewFixedRunGenerator creates a fixed run token generator.
func NewFixedRunGenerator(token string) *FixedRunGenerator {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedRunGenerator{token: token}
}

// Generate returns the fixed run token.
//
// Implements engine.RunTokenGenerator.
func (g *FixedRunGenerator) Generate() string {
	return g.token
}

// SequentialRunGenerator generates run-0001, run-0002, ... for tests that
// perform several resolutions and need distinct but stable tokens.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequentialRunGenerator struct {
	mu sync.Mutex
	n  int
}

// NewSequentialRunGenerator creates a sequential generator starting at 1.
func NewSequentialRunGenerator() *SequentialRunGenerator {
	return &SequentialRunGenerator{}
}

// Generate returns the next token in sequence.
//
// Implements engine.RunTokenGenerator.
func (g *SequentialRunGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("run-%04d", g.n)
}
