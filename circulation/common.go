package circulation

import (
	"time"
)

// Instead of implementing full value objects, I'm using some alias types and helper methods here ...

// ISBNString represents an ISBN identifier
type ISBNString = string

// MemberCodeString represents the unique membership code printed on a member's card
type MemberCodeString = string

// ToTimestamp converts a time to a storage timestamp with UTC normalization and microsecond precision
func ToTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Clock supplies the current time to components that derive state from it.
// Injecting it keeps status derivation and due-date computation testable.
type Clock func() time.Time

// SystemClock is the default Clock, normalized like all stored timestamps.
func SystemClock() time.Time {
	return ToTimestamp(time.Now())
}
