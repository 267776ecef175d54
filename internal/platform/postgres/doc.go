// Package postgres implements the store interfaces on PostgreSQL through
// database/sql and the pgx stdlib driver. Status updates are conditional
// UPDATEs, so the generation state machine holds even when the application
// and a stale redelivery race on the same row. Schema migrations are
// embedded and applied with goose.
package postgres
