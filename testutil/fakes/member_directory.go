package fakes

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

// MemberDirectory is an in-memory circulation.MemberDirectory.
type MemberDirectory struct {
	mu      sync.Mutex
	members map[uuid.UUID]circulation.Member
}

// NewMemberDirectory creates an empty in-memory directory.
func NewMemberDirectory() *MemberDirectory {
	return &MemberDirectory{members: make(map[uuid.UUID]circulation.Member)}
}

// AddMember puts a member into the directory, replacing any previous version.
func (d *MemberDirectory) AddMember(member circulation.Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[member.ID] = member
}

// GetMember reads a member from the directory.
func (d *MemberDirectory) GetMember(_ context.Context, memberID uuid.UUID) (circulation.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	member, exists := d.members[memberID]
	if !exists {
		return circulation.Member{}, circulation.ErrMemberNotFound
	}

	return member, nil
}

var _ circulation.MemberDirectory = (*MemberDirectory)(nil)
