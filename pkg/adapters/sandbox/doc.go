// Package sandbox provides executors that render generated artifacts.
//
// Implementations:
//   - local: runs a configured command (manim by default) on the host in a
//     scratch directory per run, bounded by the execution timeout
package sandbox
