// Package circuitbreaker guards a generation backend with a
// closed/open/half-open breaker.
//
// Consecutive transient failures (retryable llm.Error values or raw transport
// errors) open the breaker; while open, calls fail fast with a retryable
// llm.ErrProviderUnavailable instead of waiting on a dead backend. After
// ResetTimeout a limited number of probe calls are let through; a success
// closes the breaker, a transient failure reopens it. Permanent errors and
// caller cancellations never count as failures.
package circuitbreaker
