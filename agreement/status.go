package agreement

import "time"

// Status is the lifecycle state of an agreement.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusOngoing    Status = "ongoing"
	StatusExpired    Status = "expired"
	StatusTerminated Status = "terminated"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusOngoing, StatusExpired, StatusTerminated:
		return true
	default:
		return false
	}
}

// DeriveStatus computes the status an agreement should carry given its
// expiry date and today's date. It is idempotent: applying it twice yields
// the same result as once, so concurrent recomputations need no ordering.
//
// Terminated is absorbing: only an explicit user action sets it, and no
// date movement clears it. An agreement expires strictly after its expiry
// date, so expiry == today is still not expired. Draft is preserved while
// the expiry date has not passed; expired agreements whose expiry was
// pushed forward return to ongoing.
func DeriveStatus(current Status, expiry, today time.Time) Status {
	if current == StatusTerminated {
		return StatusTerminated
	}

	expiryDay := dateOnly(expiry)
	todayDay := dateOnly(today)

	if expiryDay.Before(todayDay) {
		return StatusExpired
	}
	if current == StatusExpired {
		return StatusOngoing
	}
	return current
}

// dateOnly truncates a timestamp to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
