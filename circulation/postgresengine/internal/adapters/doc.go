// Package adapters provides database adapter implementations for the PostgreSQL circulation store.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, allowing the ledger, the issue record store, and the
// query facade to work seamlessly with any supported database connection type.
//
// The pgx adapter additionally supports a read replica: queries issued under
// eventual consistency (see circulation.WithEventualConsistency) are routed to
// the replica, everything else goes to the primary.
package adapters
