package circulation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
)

func Test_ActiveMemberPolicy(t *testing.T) {
	policy := circulation.ActiveMemberPolicy()

	activeMember := circulation.MemberLoanSummary{Member: circulation.Member{Active: true}, OpenLoans: 100}
	assert.NoError(t, policy.CheckEligibility(activeMember), "an active member may borrow regardless of open loans")

	inactiveMember := circulation.MemberLoanSummary{Member: circulation.Member{Active: false}}
	assert.ErrorIs(t, policy.CheckEligibility(inactiveMember), circulation.ErrMemberIneligible)
}

func Test_MaxOpenLoansPolicy(t *testing.T) {
	policy := circulation.MaxOpenLoansPolicy(3)

	tests := []struct {
		name      string
		active    bool
		openLoans int
		wantErr   bool
	}{
		{"active_below_limit", true, 2, false},
		{"active_at_limit", true, 3, true},
		{"active_above_limit", true, 4, true},
		{"inactive_below_limit", false, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			summary := circulation.MemberLoanSummary{
				Member:    circulation.Member{Active: tc.active},
				OpenLoans: tc.openLoans,
			}

			err := policy.CheckEligibility(summary)

			if tc.wantErr {
				assert.ErrorIs(t, err, circulation.ErrMemberIneligible)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_PolicyViolations_CarryTheirReason(t *testing.T) {
	policy := circulation.MaxOpenLoansPolicy(1)

	err := policy.CheckEligibility(circulation.MemberLoanSummary{
		Member:    circulation.Member{Active: true},
		OpenLoans: 1,
	})

	assert.ErrorIs(t, err, circulation.ErrMemberIneligible)
	assert.Contains(t, err.Error(), "open loan limit")
}
