// Package postgresengine provides the PostgreSQL implementation of the
// circulation and inventory core.
//
// The storage layer consists of four small types sharing one DBHandle:
//   - InventoryLedger: book copy counts (reserve, release, catalogue reconciliation)
//   - IssueRecordStore: the append-only set of circulation transactions
//   - MemberDirectory: read access to members owned by membership management
//   - QueryFacade: read-only projections for the presentation layer
//
// Every inventory mutation is a single guarded UPDATE whose success is judged
// by the number of affected rows, which makes the per-book atomicity guarantee
// a property of the statement itself: two concurrent reservations of the last
// remaining copy resolve with exactly one affected row. No locks are held
// across statements or across calls to external collaborators.
//
// Key features:
//   - Multiple database adapter support (PGX with optional read replica, SQL, SQLX)
//   - Guarded single-statement mutations with rows-affected conflict detection
//   - Configurable table names and dual-logger support
//   - Replica routing for eventually consistent facade reads
//
// Usage example:
//
//	pool, _ := pgxpool.New(context.Background(), dsn)
//	handle, _ := postgresengine.NewDBHandleFromPGXPool(pool, postgresengine.WithLogger(logger))
//	ledger := postgresengine.NewInventoryLedger(handle)
//	store := postgresengine.NewIssueRecordStore(handle)
//	engine, _ := circulation.NewCirculationEngine(ledger, store, postgresengine.NewMemberDirectory(handle))
package postgresengine
