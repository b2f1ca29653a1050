// Package domain defines the core data structures of the liftoff service.
// It contains the launch records consumed from the upstream API, the audit
// records written for every upstream fetch, and the repository interfaces that
// define the contracts for persisting them.
//
// The package has no knowledge of HTTP, templates or SQL. Implementations of
// the repository interfaces live in the db package, and the upstream package
// is responsible for turning raw JSON into validated Launch values.
package domain
