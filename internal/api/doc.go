// Package api exposes the task workflow over HTTP: requesting AI work for a
// submission or rubric and reading back the resulting statuses. Handlers
// translate HTTP requests into task submissions and map internal errors to
// sanitized responses.
package api
