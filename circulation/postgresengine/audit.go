package postgresengine

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

const (
	logActionAppendAudit = "append audit entry"
	logMsgAuditAppended  = "audit entry appended"
	logAttrEventType     = "event_type"
)

// AuditLog appends circulation events to an append-only trail. Entries are
// written best-effort by the engine after the authoritative state change, so
// a failed append is reported but never rolls anything back.
type AuditLog struct {
	h DBHandle
}

// NewAuditLog creates an AuditLog on the given handle.
func NewAuditLog(handle DBHandle) AuditLog {
	return AuditLog{h: handle}
}

// AppendAudit inserts one entry into the audit trail.
func (a AuditLog) AppendAudit(ctx context.Context, entry circulation.AuditEntry) error {
	stmt := goqu.Dialect(dialectPostgres).
		Insert(a.h.auditTableName).
		Rows(goqu.Record{
			colEventType:  entry.EventType,
			colOccurredAt: goqu.V(circulation.ToTimestamp(entry.OccurredAt)),
			colPayload:    string(entry.PayloadJSON),
		})

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		a.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	if _, _, execErr := a.h.executeStatement(ctx, sqlQuery, logActionAppendAudit); execErr != nil {
		return execErr
	}

	a.h.logOperation(ctx, logMsgAuditAppended, logAttrEventType, entry.EventType)

	return nil
}
