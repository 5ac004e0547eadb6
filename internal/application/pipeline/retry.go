package pipeline

import (
	"github.com/aescanero/scenegen/internal/application/graph"
)

// RetryController routes failed executions through the correction node
// until the retry budget is spent
type RetryController struct {
	budget int
}

// NewRetryController creates a controller allowing budget correction cycles
func NewRetryController(budget int) *RetryController {
	if budget < 0 {
		budget = 0
	}
	return &RetryController{budget: budget}
}

// Budget returns the number of correction cycles allowed
func (r *RetryController) Budget() int {
	return r.budget
}

// Route decides what follows the execution node
func (r *RetryController) Route(s graph.State) string {
	out, ok := outcome(s)
	if !ok || out.Succeeded() {
		return graph.End
	}
	if retryCount(s) < r.budget {
		return NodeCorrect
	}
	return graph.End
}

// Exhausted reports whether a finished run ended on a failure it may not retry
func (r *RetryController) Exhausted(s graph.State) bool {
	out, ok := outcome(s)
	return ok && !out.Succeeded() && retryCount(s) >= r.budget
}
