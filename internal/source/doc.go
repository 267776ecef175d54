// Package source assembles the data the worker needs for each task type
// from the entity stores. A builder returns task.ErrSourceMissing when the
// material is absent, which the submitter turns into an ERROR status
// without publishing.
package source
