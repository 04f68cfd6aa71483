package ai

import "context"

// Generator exposes text generation as an injectable capability so tests can
// substitute a deterministic stub.
type Generator interface {
	Enabled() bool
	Generate(ctx context.Context, prompt string) (string, error)
}
