// Package handlers holds the application-side handler for each task type.
//
// A handler acts only on an entity whose status field is INPROGRESS, so a
// redelivered or superseded response is ignored. It validates the whole
// payload before persisting anything, then saves the artifact and moves the
// entity to COMPLETED. Any failure moves the entity to ERROR before the
// handler returns its error.
package handlers
