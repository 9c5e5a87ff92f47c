package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the generative backend. The task label selects a model via the
// settings lookup table; callers never name models directly. Calls are never
// retried automatically, failures surface once and the caller moves on.
type Provider interface {
	Generate(ctx context.Context, messages []Message, task string, temperature float64) (string, error)
	GenerateVision(ctx context.Context, prompt, imageURL string) (string, error)
}

// ImageProvider generates raw image bytes from a prompt.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}
