// Package db is the SQLite persistence layer for liftoff's audit trail.
//
// It stores one row per upstream fetch attempt and the application log rows that
// refer to them, implementing the repository interfaces of the domain package on
// top of sqlx. The schema lives in embedded goose migrations (`migrations/`) that
// New applies on every start. Maps are stored as JSON through the Metadata type
// (`types.go`), optional log references use `uuid.NullUUID` and an optional
// error text uses `sql.NullString`.
package db
