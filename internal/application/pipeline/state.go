package pipeline

import (
	"sort"

	"github.com/aescanero/scenegen/internal/application/graph"
	"github.com/aescanero/scenegen/pkg/domain"
)

// Shared state fields
const (
	FieldJobID           graph.Field = "job_id"
	FieldRequest         graph.Field = "original_request"
	FieldWantsGeneration graph.Field = "wants_generation"
	FieldDirectReply     graph.Field = "direct_reply"
	FieldInstructions    graph.Field = "instructions"
	FieldInstruction     graph.Field = "instruction"
	FieldEvidence        graph.Field = "evidence_by_instruction"
	FieldArtifactSource  graph.Field = "artifact_source"
	FieldArtifactName    graph.Field = "artifact_name"
	FieldOutcome         graph.Field = "execution_outcome"
	FieldRetryCount      graph.Field = "retry_count"
)

// Schema returns the merge-policy table of the pipeline state
func Schema() graph.Schema {
	return graph.Schema{
		FieldJobID:           graph.Immutable,
		FieldRequest:         graph.Immutable,
		FieldWantsGeneration: graph.Replace,
		FieldDirectReply:     graph.Replace,
		FieldInstructions:    graph.Replace,
		FieldInstruction:     graph.Replace,
		FieldEvidence:        graph.Append,
		FieldArtifactSource:  graph.Replace,
		FieldArtifactName:    graph.Replace,
		FieldOutcome:         graph.Replace,
		FieldRetryCount:      graph.Replace,
	}
}

// InitialState seeds the state of a new run
func InitialState(jobID, request string) graph.State {
	return graph.State{
		FieldJobID:      jobID,
		FieldRequest:    request,
		FieldRetryCount: 0,
	}
}

func jobID(s graph.State) string {
	v, _ := graph.Get[string](s, FieldJobID)
	return v
}

func request(s graph.State) string {
	v, _ := graph.Get[string](s, FieldRequest)
	return v
}

// wantsGeneration reports the classification; ok is false while unset
func wantsGeneration(s graph.State) (wants bool, ok bool) {
	return graph.Get[bool](s, FieldWantsGeneration)
}

func directReply(s graph.State) string {
	v, _ := graph.Get[string](s, FieldDirectReply)
	return v
}

func instructions(s graph.State) []string {
	v, _ := graph.Get[[]string](s, FieldInstructions)
	return v
}

func instruction(s graph.State) string {
	v, _ := graph.Get[string](s, FieldInstruction)
	return v
}

func evidence(s graph.State) []domain.Evidence {
	v, _ := graph.Get[[]domain.Evidence](s, FieldEvidence)
	return v
}

func artifact(s graph.State) domain.Artifact {
	src, _ := graph.Get[string](s, FieldArtifactSource)
	name, _ := graph.Get[string](s, FieldArtifactName)
	return domain.Artifact{Source: src, Name: name}
}

// outcome returns the last execution outcome; ok is false before execution
func outcome(s graph.State) (domain.ExecutionOutcome, bool) {
	return graph.Get[domain.ExecutionOutcome](s, FieldOutcome)
}

func retryCount(s graph.State) int {
	v, _ := graph.Get[int](s, FieldRetryCount)
	return v
}

// orderedEvidence returns the evidence sorted by the position of its
// instruction in the instruction list
func orderedEvidence(s graph.State) []domain.Evidence {
	position := make(map[string]int)
	for i, instr := range instructions(s) {
		if _, seen := position[instr]; !seen {
			position[instr] = i
		}
	}

	ev := append([]domain.Evidence(nil), evidence(s)...)
	sort.SliceStable(ev, func(i, j int) bool {
		return position[ev[i].Instruction] < position[ev[j].Instruction]
	})
	return ev
}
