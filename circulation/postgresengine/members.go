package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

const (
	logActionGetMember = "get member"
	logActionAddMember = "add member"
	logMsgMemberAdded  = "member added"
)

// MemberDirectory is a read view over the locally replicated member snapshot.
// Membership itself is administered elsewhere; the engine only needs identity
// and the active flag to decide eligibility.
type MemberDirectory struct {
	h DBHandle
}

// NewMemberDirectory creates a MemberDirectory on the given handle.
func NewMemberDirectory(handle DBHandle) MemberDirectory {
	return MemberDirectory{h: handle}
}

// GetMember reads a single member by id.
func (d MemberDirectory) GetMember(ctx context.Context, memberID uuid.UUID) (circulation.Member, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(d.h.membersTableName).
		Select(memberColumns()...).
		Where(goqu.C(colID).Eq(memberID.String()))

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		d.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return circulation.Member{}, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, _, queryErr := d.h.executeQuery(ctx, sqlQuery, logActionGetMember)
	if queryErr != nil {
		return circulation.Member{}, queryErr
	}
	defer d.h.closeRows(rows)

	if !rows.Next() {
		return circulation.Member{}, circulation.ErrMemberNotFound
	}

	member, scanErr := scanMember(rows)
	if scanErr != nil {
		d.h.logError(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
		return circulation.Member{}, scanErr
	}

	return member, nil
}

// AddMember writes a member into the local snapshot. It stands in for the feed
// from the external membership system and is used by seeding and test setup.
func (d MemberDirectory) AddMember(ctx context.Context, member circulation.Member) error {
	stmt := goqu.Dialect(dialectPostgres).
		Insert(d.h.membersTableName).
		Rows(goqu.Record{
			colID:         member.ID.String(),
			colName:       member.Name,
			colMemberCode: member.Code,
			colEmail:      member.Email,
			colPhone:      member.Phone,
			colJoinedAt:   goqu.V(circulation.ToTimestamp(member.JoinedAt)),
			colActive:     member.Active,
		})

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		d.h.logError(ctx, logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	if _, _, execErr := d.h.executeStatement(ctx, sqlQuery, logActionAddMember); execErr != nil {
		return execErr
	}

	d.h.logOperation(ctx, logMsgMemberAdded, logAttrMemberID, member.ID.String())

	return nil
}

// memberColumns returns the select list shared by every member read.
func memberColumns() []any {
	return []any{colID, colName, colMemberCode, colEmail, colPhone, colJoinedAt, colActive}
}

// memberScanner abstracts the row over which a member is scanned.
type memberScanner interface {
	Scan(dest ...any) error
}

// scanMember scans one member row in the memberColumns order.
func scanMember(row memberScanner) (circulation.Member, error) {
	var (
		id       string
		name     string
		code     string
		email    string
		phone    string
		joinedAt time.Time
		active   bool
	)

	scanErr := row.Scan(&id, &name, &code, &email, &phone, &joinedAt, &active)
	if scanErr != nil {
		return circulation.Member{}, errors.Join(circulation.ErrScanningDBRowFailed, scanErr)
	}

	memberID, parseErr := uuid.Parse(id)
	if parseErr != nil {
		return circulation.Member{}, errors.Join(circulation.ErrScanningDBRowFailed, parseErr)
	}

	return circulation.Member{
		ID:       memberID,
		Name:     name,
		Code:     code,
		Email:    email,
		Phone:    phone,
		JoinedAt: joinedAt,
		Active:   active,
	}, nil
}
