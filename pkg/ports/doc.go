// Package ports declares the interfaces the application core consumes:
// the five pipeline collaborators, the LLM client behind them, and the job
// registry, event bus and metrics collector used by the job manager.
package ports
