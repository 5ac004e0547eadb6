package domain

// Match is one piece of evidence returned by retrieval
type Match struct {
	ID       string            `json:"id" yaml:"id"`
	Text     string            `json:"text" yaml:"text"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Evidence pairs an instruction with the matches retrieved for it
type Evidence struct {
	Instruction string  `json:"instruction"`
	Matches     []Match `json:"matches"`
}

// Classification is the outcome of deciding whether a request needs generation
type Classification struct {
	WantsGeneration bool   `json:"wants_generation"`
	DirectReply     string `json:"direct_reply,omitempty"`
}

// Artifact is generated source plus the name it is executed under
type Artifact struct {
	Source string `json:"source"`
	Name   string `json:"name"`
}

// SynthesisRequest is the input to a first synthesis pass
type SynthesisRequest struct {
	Request  string
	Evidence []Evidence
}

// CorrectionRequest is the input to a correction pass
type CorrectionRequest struct {
	Request    string
	Evidence   []Evidence
	Previous   Artifact
	Diagnostic string
}

// OutcomeKind discriminates execution outcomes
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

// ExecutionOutcome is Success{Locator} or Failure{Diagnostic}
type ExecutionOutcome struct {
	Kind       OutcomeKind `json:"kind"`
	Locator    string      `json:"locator,omitempty"`
	Diagnostic string      `json:"diagnostic,omitempty"`
}

// Success builds a successful outcome
func Success(locator string) ExecutionOutcome {
	return ExecutionOutcome{Kind: OutcomeSuccess, Locator: locator}
}

// Failure builds a failed outcome
func Failure(diagnostic string) ExecutionOutcome {
	return ExecutionOutcome{Kind: OutcomeFailure, Diagnostic: diagnostic}
}

// Succeeded reports whether the outcome is a success
func (o ExecutionOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}
