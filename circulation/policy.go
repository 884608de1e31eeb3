package circulation

import (
	"errors"
)

const (
	failureReasonMemberInactive   = "member is not active"
	failureReasonTooManyOpenLoans = "member has reached the open loan limit"
)

// MemberLoanSummary is the input to an eligibility decision: the member as
// membership management knows them, plus the number of loans they currently
// have open.
type MemberLoanSummary struct {
	Member    Member
	OpenLoans int
}

// EligibilityPolicy decides whether a member may be issued another book.
// Implementations must be pure: the engine evaluates the policy before any
// inventory is reserved, so a policy must never touch storage itself.
// A rejection is reported as an error matching ErrMemberIneligible.
type EligibilityPolicy interface {
	CheckEligibility(summary MemberLoanSummary) error
}

// PolicyFunc adapts a plain function to an EligibilityPolicy.
type PolicyFunc func(summary MemberLoanSummary) error

// CheckEligibility implements EligibilityPolicy.
func (f PolicyFunc) CheckEligibility(summary MemberLoanSummary) error {
	return f(summary)
}

// ActiveMemberPolicy is the default policy: the member must be active, with no
// limit on concurrently open loans.
func ActiveMemberPolicy() EligibilityPolicy {
	return PolicyFunc(func(summary MemberLoanSummary) error {
		if !summary.Member.Active {
			return policyViolation(failureReasonMemberInactive)
		}

		return nil
	})
}

// MaxOpenLoansPolicy requires an active member with fewer than limit open loans.
func MaxOpenLoansPolicy(limit int) EligibilityPolicy {
	return PolicyFunc(func(summary MemberLoanSummary) error {
		if !summary.Member.Active {
			return policyViolation(failureReasonMemberInactive)
		}

		if summary.OpenLoans >= limit {
			return policyViolation(failureReasonTooManyOpenLoans)
		}

		return nil
	})
}

func policyViolation(reason string) error {
	return errors.Join(ErrMemberIneligible, errors.New(reason))
}
