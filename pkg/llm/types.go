package llm

import (
	"context"
)

// DefaultMaxTokens bounds a single completion.
const DefaultMaxTokens = 4096

// Request is a single completion call.
type Request struct {
	System      string
	Prompt      string
	JSON        bool
	MaxTokens   int
	Temperature *float64
}

// DeltaFunc receives streamed text fragments in order. Returning an error stops the stream.
type DeltaFunc func(fragment string) error

// Completer is the AI completion capability.
type Completer interface {
	// Complete performs one request/response call and returns the full text.
	Complete(ctx context.Context, req Request) (text string, err error)
	// Stream performs one call and delivers text fragments as they arrive.
	Stream(ctx context.Context, req Request, onDelta DeltaFunc) (err error)
}

// Temperature is a helper for Request.Temperature.
func Temperature(t float64) (p *float64) {
	p = &t
	return p
}

func maxTokens(req Request) (n int) {
	n = req.MaxTokens
	if n <= 0 {
		n = DefaultMaxTokens
	}
	return n
}
