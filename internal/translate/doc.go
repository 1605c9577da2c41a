// Package translate drives all LLM work: chat providers with retry and a
// monotonic circuit breaker, task strategies (metadata one-shots and the
// best-effort subtitle batcher), and the orchestrator that routes each task
// through its configured provider chain.
package translate
