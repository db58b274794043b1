// Package resilience wraps outbound sink calls (cloud uploads, webhooks)
// in bounded retries with exponential backoff. Each sink owns one
// Executor, and the executor keeps a sony/gobreaker breaker per target so
// a failing subject or host trips on its own.
package resilience
