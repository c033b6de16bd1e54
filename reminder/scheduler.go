package reminder

import (
	"time"

	"contractdesk/agreement"
)

// Evaluate decides which reminder, if any, is due for the agreement today,
// given the reminders already sent. It is a pure function so the policy can
// be tested without a database.
//
// The cycle is: KindBefore fires once anywhere in [reminder date, expiry
// date), so a sweep that was down for a week still sends it, late rather
// than never. KindOn fires only on the expiry date itself. KindAfter fires once
// the agreement is past expiry and then repeats every calendar month counted
// from the previous follow-up. Terminated and draft agreements never
// remind, at most one reminder fires per evaluation, and an agreement with
// no assigned users and no creator has nobody to notify, so nothing is due.
func Evaluate(ag agreement.Agreement, today time.Time, sent []SentRecord) *Due {
	if ag.Status == agreement.StatusTerminated || ag.Status == agreement.StatusDraft {
		return nil
	}
	if len(recipientIDs(ag)) == 0 {
		return nil
	}

	day := dateOnly(today)
	reminderDay := dateOnly(ag.ReminderDate)
	expiryDay := dateOnly(ag.ExpiryDate)

	if day.After(expiryDay) {
		last, fired := lastSent(sent, KindAfter)
		if !fired || !day.Before(last.AddDate(0, 1, 0)) {
			return &Due{Kind: KindAfter}
		}
		return nil
	}

	if day.Equal(expiryDay) {
		if _, fired := lastSent(sent, KindOn); !fired {
			return &Due{Kind: KindOn}
		}
		return nil
	}

	if !day.Before(reminderDay) {
		if _, fired := lastSent(sent, KindBefore); !fired {
			return &Due{Kind: KindBefore}
		}
	}
	return nil
}

// lastSent returns the most recent send date for the kind.
func lastSent(sent []SentRecord, kind Kind) (time.Time, bool) {
	var (
		last  time.Time
		found bool
	)
	for _, rec := range sent {
		if rec.Kind != kind {
			continue
		}
		day := dateOnly(rec.SentOn)
		if !found || day.After(last) {
			last = day
			found = true
		}
	}
	return last, found
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
