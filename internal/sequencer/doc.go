// Package sequencer implements the state machine that decides which media
// item is active and when it advances.
//
// ARCHITECTURE:
//
// Single Transition Function:
// Timer ticks, playback adapter events, gestures and overlay changes all
// arrive as Event values and are applied by Machine.Dispatch, one at a time.
// Events posted while a dispatch is running (for example by a listener) are
// queued and applied after it returns, so transitions never interleave.
//
// Activation Generations:
// Every activation of an item is stamped with a strictly increasing
// generation from Clock. Events that target an item carry the Stamp of the
// activation they were produced for. Dispatch drops events whose stamp does
// not match the current activation, which makes late timer and media
// callbacks harmless after navigation.
//
// Completion Latch:
// Only the first completion signal for an activation advances. Further
// signals for the same activation are no-ops; signals for an older one are
// stale.
//
// Single-Writer Loop:
// Machine is not safe for concurrent use. Loop owns a machine and serializes
// work arriving from other goroutines (network results, real media
// elements, the tick source) onto one goroutine. Tests skip the Loop and
// call Dispatch directly with a fake clock.
package sequencer
