// Package config loads the service configuration from environment variables.
//
// Defaults run everything in process: memory job registry, memory event bus
// and a memory retrieval index built from RETRIEVAL_CORPUS_PATH. Set the
// *_BACKEND variables to "redis" to share state between replicas.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
