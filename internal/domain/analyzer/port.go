package analyzer

import "context"

// Request is the body sent to the analysis backend.
type Request struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Backend runs a compliance analysis and returns the raw JSON response.
// Shape detection is left to the normalizer.
type Backend interface {
	Analyze(ctx context.Context, req Request) ([]byte, error)
}
