package fakes

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// AuditLog is an in-memory circulation.AuditLog.
type AuditLog struct {
	mu      sync.Mutex
	entries []circulation.AuditEntry

	// FailAppend injects an error to verify that audit failures never fail
	// the operation itself.
	FailAppend error
}

// NewAuditLog creates an empty in-memory audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// AppendAudit appends one entry to the trail.
func (a *AuditLog) AppendAudit(_ context.Context, entry circulation.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.FailAppend != nil {
		return a.FailAppend
	}

	a.entries = append(a.entries, entry)

	return nil
}

// Entries returns a copy of all appended entries.
func (a *AuditLog) Entries() []circulation.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]circulation.AuditEntry(nil), a.entries...)
}

var _ circulation.AuditLog = (*AuditLog)(nil)
