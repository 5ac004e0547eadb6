// Package workers implements the job pool that executes pipeline runs.
//
// The pool:
//   - Runs each job on its own goroutine, off the goroutine that accepted it
//   - Tracks runs in flight for health reporting and metrics
//   - Rejects new runs once shutdown starts and waits for the rest
//
// The health monitor periodically logs pool status and flags long runs.
package workers
