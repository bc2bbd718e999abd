// Package advisor defines the confidence-scoring interface the execution
// loop may consult before submitting an order. The LLM-backed
// implementation lives outside this repository.
package advisor

import (
	"context"

	"harpoon/internal/scan"
)

// Evaluation is an advisor's verdict on a candidate trade.
type Evaluation struct {
	// Side is the outcome the advisor expects, "yes" or "no". Empty means
	// the advisor could not form a view.
	Side          string
	ConfidencePct int // 0 means no confidence reported
	ShouldTrade   bool
	Reasoning     string
}

// Advisor scores a candidate before submission.
type Advisor interface {
	Evaluate(ctx context.Context, c scan.Candidate) (Evaluation, error)
}
