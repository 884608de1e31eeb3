package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Member represents a library member as the core sees it. Members are owned by
// membership management; the core only reads them for eligibility checks and
// for embedding into issue record projections.
type Member struct {
	ID       uuid.UUID
	Name     string
	Code     MemberCodeString
	Email    string
	Phone    string
	JoinedAt time.Time
	Active   bool
}

// BuildMember creates a new, active Member.
func BuildMember(id uuid.UUID, name string, code MemberCodeString) (Member, error) {
	if name == "" {
		return Member{}, ErrEmptyMemberName
	}

	if code == "" {
		return Member{}, ErrEmptyMemberCode
	}

	return Member{
		ID:     id,
		Name:   name,
		Code:   code,
		Active: true,
	}, nil
}
