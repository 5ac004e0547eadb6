// Package storage provides job store implementations.
//
// Implementations:
//   - memory: map guarded by a mutex; records are kept for the process lifetime
//   - redis: JSON records with a TTL refreshed on every write
package storage
