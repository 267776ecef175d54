// Package task carries AI work between the application and the worker.
//
// The application side submits work with a Submitter, which moves the
// entity's status field to INPROGRESS and publishes an Envelope whose uuid
// is the entity id. The worker answers on the inbound queue with an
// envelope of the same type and uuid. A Dispatcher consumes those answers
// and routes each to the Handler registered for its type; every message is
// acknowledged exactly once, so delivery is at-least-once and handlers must
// tolerate duplicates.
package task
