// Package events provides event bus implementations.
//
// Implementations:
//   - memory: in-process fan-out with one ordered queue per subscription
//   - redis: Redis Streams, broadcast reads or consumer groups
package events
