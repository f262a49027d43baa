// Package idempotency caches completed generation responses so that a client
// retrying POST /v1/artifacts with the same Idempotency-Key header gets the
// original result instead of paying for a second round of generation.
//
// Stored keys are derived from the client key and the request content, so a
// reused client key with a different vibe never replays an unrelated result.
// RedisStore shares entries across replicas; MemoryStore is bounded and
// needs no background goroutine.
package idempotency
