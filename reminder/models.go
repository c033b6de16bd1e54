// Package reminder implements the date-driven reminder policy for
// agreements: one heads-up before expiry, one notice on the expiry date and
// a monthly follow-up afterwards, each recorded so the same reminder never
// fires twice.
package reminder

import "time"

// Kind identifies which reminder of the cycle fired.
type Kind string

const (
	// KindBefore is the single heads-up sent once the reminder date is
	// reached, ahead of expiry.
	KindBefore Kind = "before"
	// KindOn is sent on the expiry date itself.
	KindOn Kind = "on"
	// KindAfter repeats monthly for as long as an expired agreement is
	// neither renewed nor terminated.
	KindAfter Kind = "after"
)

// SentRecord is one row of the reminder log.
type SentRecord struct {
	Kind   Kind
	SentOn time.Time
}

// Due describes a reminder the policy wants fired today.
type Due struct {
	Kind Kind
}
