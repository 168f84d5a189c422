package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedRunGenerator(t *testing.T) {
	g := NewFixedRunGenerator("test-run-1")
	assert.Equal(t, "test-run-1", g.Generate())
	assert.Equal(t, "test-run-1", g.Generate())

	assert.Equal(t, "test-run-default", NewFixedRunGenerator("").Generate())
}

func TestSequentialRunGenerator(t *testing.T) {
	g := NewSequentialRunGenerator()
	assert.Equal(t, "run-0001", g.Generate())
	assert.Equal(t, "run-0002", g.Generate())
	assert.Equal(t, "run-0003", g.Generate())
}
