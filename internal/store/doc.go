// Package store defines the persistence ports for submissions, rubrics and
// the artifacts AI tasks generate for them. Implementations live under
// internal/platform; the application core depends only on these interfaces.
package store
