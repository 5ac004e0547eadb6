package domain

import "errors"

// Sentinel errors shared across the pipeline and the job manager.
var (
	ErrJobNotFound        = errors.New("job not found")
	ErrInvalidTransition  = errors.New("invalid job status transition")
	ErrEmptyPrompt        = errors.New("prompt is required")
	ErrShuttingDown       = errors.New("job manager is shutting down")
	ErrBudgetExhausted    = errors.New("retry budget exhausted")
	ErrClassifyFailed     = errors.New("classification failed")
	ErrDecomposeFailed    = errors.New("decomposition failed")
	ErrSynthesisFailed    = errors.New("synthesis failed")
	ErrInvalidInstruction = errors.New("invalid instruction list")
)

// Caller-facing messages. Raw collaborator diagnostics never leave the job manager.
const (
	MessageTooComplex = "That was too complex to complete, give me something easier :)"
	MessageInternal   = "An unexpected server error occurred. Please try again later."
	MessageProcessing = "Processing..."
)
