// Package postgreswrapper provides test helpers for running circulation
// component tests against a local PostgreSQL database.
//
// The database adapter is selected through the ADAPTER_TYPE environment
// variable (pgx.pool | sql.db | sqlx.db); an unset variable defaults to
// pgx.pool. The wrapper creates the schema on first use and offers cleanup
// between tests.
package postgreswrapper
