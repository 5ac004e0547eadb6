// Package llm provides the LLM-backed pipeline collaborators and the client
// factory.
//
// Classifier, Decomposer and Synthesizer each send one completion request
// per call and decode a JSON object from the reply. Replies wrapped in
// Markdown code fences or surrounded by prose are accepted.
//
// Supported providers:
//   - anthropic: Anthropic Messages API
package llm
