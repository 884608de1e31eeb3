// Package circulation contains the pure domain of the circulation and inventory core:
// books with copy counts, members, issue records, and the rules that govern their
// state transitions.
//
// Everything in this package is side-effect free. Status and fines are derived
// from (due date, return date, now) and are never persisted, so stored state can
// never drift against wall-clock time. Storage backends live in subpackages
// (postgresengine) and the orchestration of issue/return operations is done by
// the CirculationEngine, which coordinates the passive stores through the
// interfaces defined here.
//
// Key properties:
//   - available_copies = total_copies - open issue records, for every book, always
//   - issue records are append-only: returning sets the return date, nothing is deleted
//   - overdue is a read-time derivation, not a stored state
//   - member eligibility is a pluggable policy, evaluated before inventory is touched
package circulation
