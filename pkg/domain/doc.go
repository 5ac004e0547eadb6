// Package domain holds the types shared by the pipeline, the job manager and
// the adapters: jobs and their status machine, retrieval matches, artifacts,
// execution outcomes and lifecycle events.
package domain
