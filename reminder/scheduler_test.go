package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"contractdesk/agreement"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func testAgreement(status agreement.Status) agreement.Agreement {
	creator := "clerk-1"
	return agreement.Agreement{
		ID:           "ag-1",
		AgreementID:  "A_2026_0001",
		Title:        "Office Lease",
		Status:       status,
		StartDate:    day("2026-01-01"),
		ExpiryDate:   day("2026-12-01"),
		ReminderDate: day("2026-06-04"),
		CreatorID:    &creator,
	}
}

func TestEvaluate_BeforeWindow(t *testing.T) {
	ag := testAgreement(agreement.StatusOngoing)

	// Nothing before the reminder date.
	require.Nil(t, Evaluate(ag, day("2026-06-03"), nil))

	// Due on the reminder date itself.
	due := Evaluate(ag, day("2026-06-04"), nil)
	require.NotNil(t, due)
	require.Equal(t, KindBefore, due.Kind)

	// A sweep that was down still fires the heads-up late.
	due = Evaluate(ag, day("2026-08-20"), nil)
	require.NotNil(t, due)
	require.Equal(t, KindBefore, due.Kind)

	// But only once.
	sent := []SentRecord{{Kind: KindBefore, SentOn: day("2026-06-04")}}
	require.Nil(t, Evaluate(ag, day("2026-08-20"), sent))
}

func TestEvaluate_SameDayIdempotent(t *testing.T) {
	ag := testAgreement(agreement.StatusOngoing)
	today := day("2026-06-04")

	due := Evaluate(ag, today, nil)
	require.NotNil(t, due)

	sent := []SentRecord{{Kind: due.Kind, SentOn: today}}
	require.Nil(t, Evaluate(ag, today, sent), "second evaluation on the same day must not fire")
}

func TestEvaluate_OnExpiryDay(t *testing.T) {
	ag := testAgreement(agreement.StatusOngoing)
	expiry := day("2026-12-01")

	due := Evaluate(ag, expiry, nil)
	require.NotNil(t, due)
	require.Equal(t, KindOn, due.Kind)

	sent := []SentRecord{{Kind: KindOn, SentOn: expiry}}
	require.Nil(t, Evaluate(ag, expiry, sent))
}

func TestEvaluate_AfterExpiryMonthly(t *testing.T) {
	ag := testAgreement(agreement.StatusExpired)

	// First follow-up any day after expiry.
	due := Evaluate(ag, day("2026-12-02"), nil)
	require.NotNil(t, due)
	require.Equal(t, KindAfter, due.Kind)

	// No repeat inside the month.
	sent := []SentRecord{{Kind: KindAfter, SentOn: day("2026-12-02")}}
	require.Nil(t, Evaluate(ag, day("2026-12-20"), sent))
	require.Nil(t, Evaluate(ag, day("2027-01-01"), sent))

	// Fires again one calendar month after the previous follow-up.
	due = Evaluate(ag, day("2027-01-02"), sent)
	require.NotNil(t, due)
	require.Equal(t, KindAfter, due.Kind)

	// And keeps going month after month.
	sent = append(sent, SentRecord{Kind: KindAfter, SentOn: day("2027-01-02")})
	require.Nil(t, Evaluate(ag, day("2027-01-20"), sent))
	due = Evaluate(ag, day("2027-02-02"), sent)
	require.NotNil(t, due)
}

func TestEvaluate_AfterUsesLatestFollowUp(t *testing.T) {
	ag := testAgreement(agreement.StatusExpired)
	sent := []SentRecord{
		{Kind: KindAfter, SentOn: day("2026-12-02")},
		{Kind: KindAfter, SentOn: day("2027-01-05")},
	}

	require.Nil(t, Evaluate(ag, day("2027-01-20"), sent))

	due := Evaluate(ag, day("2027-02-05"), sent)
	require.NotNil(t, due)
	require.Equal(t, KindAfter, due.Kind)
}

func TestEvaluate_TerminatedAndDraftNeverRemind(t *testing.T) {
	for _, status := range []agreement.Status{agreement.StatusTerminated, agreement.StatusDraft} {
		ag := testAgreement(status)
		require.Nil(t, Evaluate(ag, day("2026-06-10"), nil), "status %s", status)
		require.Nil(t, Evaluate(ag, day("2026-12-01"), nil), "status %s", status)
		require.Nil(t, Evaluate(ag, day("2027-03-01"), nil), "status %s", status)
	}
}

func TestEvaluate_NoRecipientsNeverFires(t *testing.T) {
	// Orphan agreement: creator gone, nobody assigned. With nobody to
	// notify, nothing is due at any point of the cycle.
	ag := testAgreement(agreement.StatusOngoing)
	ag.CreatorID = nil
	ag.AssignedUserIDs = nil

	require.Nil(t, Evaluate(ag, day("2026-06-10"), nil))
	require.Nil(t, Evaluate(ag, day("2026-12-01"), nil))
	ag.Status = agreement.StatusExpired
	require.Nil(t, Evaluate(ag, day("2027-03-01"), nil))

	// Assigning a user brings the cycle back.
	ag.AssignedUserIDs = []string{"clerk-2"}
	due := Evaluate(ag, day("2027-03-01"), nil)
	require.NotNil(t, due)
	require.Equal(t, KindAfter, due.Kind)
}

func TestEvaluate_AtMostOnePerDay(t *testing.T) {
	// On the expiry day only the on-expiry reminder fires, even if the
	// heads-up was never sent.
	ag := testAgreement(agreement.StatusOngoing)
	due := Evaluate(ag, day("2026-12-01"), nil)
	require.NotNil(t, due)
	require.Equal(t, KindOn, due.Kind)
}
