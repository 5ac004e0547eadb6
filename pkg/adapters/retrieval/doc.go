// Package retrieval provides the keyword index behind the retrieval
// collaborator and the tools that fill it.
//
// Documents are tokenized into lowercase terms and ranked with BM25.
// Implementations:
//   - memory: index held in process, loaded from a YAML corpus at startup
//   - redis: term postings and documents stored in Redis, filled by
//     scenegen-index
//
// ChunkPython splits Python sources into class, method and function chunks
// so reference code can be indexed piece by piece.
package retrieval
