// Package orchestrator implements the job manager.
//
// The manager:
//   - Registers submitted prompts as queued jobs and returns their ids at once
//   - Runs each job through the pipeline on the worker pool
//   - Maps run errors to the safe messages callers see
//   - Publishes job and node events to the event bus
//
// Status queries read the job store and never wait on a run.
package orchestrator
