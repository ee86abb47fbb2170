// Package resilience provides exponential backoff and bounded retry for
// operations against flaky remote endpoints.
//
// Policy computes the delay sequence; Retry executes a function under a
// policy with context-interruptible sleeps, so shutdown never waits out a
// full backoff window.
package resilience
