// Package worker implements the AI side of the task protocol. A Processor
// consumes request envelopes, runs the generation routine registered for
// each task type and publishes a response envelope carrying the same uuid
// and type. Failures are reported with the shared error-shaped response so
// the application can mark the entity as errored.
package worker
