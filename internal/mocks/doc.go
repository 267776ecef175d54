// Package mocks provides shared test doubles for the store, generation and
// queue interfaces.
//
// The store mocks are in-memory and enforce the same conditional status
// transitions as the Postgres stores, so task and handler tests observe the
// state machine rather than a stub. Each mock exposes function fields that
// override a method's default behavior:
//
//	subs := mocks.NewMockSubmissionStore()
//	subs.UpdateStatusFn = func(ctx context.Context, id string, f domain.StatusField, s domain.Status) error {
//	    return errors.New("database unavailable")
//	}
//
// MockGenerator follows the same pattern; TestifyMockGenerator is a
// testify/mock variant for tests that assert on call arguments.
package mocks
