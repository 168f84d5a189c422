package engine

import "github.com/google/uuid"

// RunTokenGenerator generates unique run tokens for correlating a top-level
// resolution across traces and the journal.
// Implemented by UUIDGenerator (production) and testutil.FixedRunTokens.
type RunTokenGenerator interface {
	Generate() string
}

// UUIDGenerator issues RFC 4122 UUIDs as run tokens.
type UUIDGenerator struct{}

// Generate returns a new random UUID string.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}
