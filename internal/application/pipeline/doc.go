// Package pipeline assembles the request-to-artifact graph.
//
// The graph is:
//
//	classify -> (end | decompose) -> fan-out retrieve -> synthesize -> execute
//	execute -> (end | correct -> execute)
//
// The retry controller bounds the execute/correct cycle by a configured budget.
// A run that ends on a failed execution with the budget spent reports
// domain.ErrBudgetExhausted.
package pipeline
