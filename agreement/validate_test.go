package agreement

import (
	"errors"
	"testing"
	"time"
)

func TestValidateCreate(t *testing.T) {
	valid := CreateParams{
		Title:        "Office Lease",
		DepartmentID: "dept-1",
		VendorID:     "vendor-1",
		StartDate:    day("2026-01-01"),
		ExpiryDate:   day("2027-01-01"),
	}
	if err := validateCreate(valid); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*CreateParams)
		field  string
	}{
		{"missing title", func(p *CreateParams) { p.Title = "  " }, "title"},
		{"missing department", func(p *CreateParams) { p.DepartmentID = "" }, "department_id"},
		{"missing vendor", func(p *CreateParams) { p.VendorID = "" }, "vendor_id"},
		{"missing start", func(p *CreateParams) { p.StartDate = time.Time{} }, "start_date"},
		{"missing expiry", func(p *CreateParams) { p.ExpiryDate = time.Time{} }, "expiry_date"},
		{"expiry before start", func(p *CreateParams) { p.ExpiryDate = day("2025-01-01") }, "expiry_date"},
		{"expiry equals start", func(p *CreateParams) { p.ExpiryDate = p.StartDate }, "expiry_date"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := valid
			tc.mutate(&params)

			err := validateCreate(params)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("expected field %q flagged, got %v", tc.field, verr.Fields)
			}
		})
	}
}

func TestResolveReminderDate(t *testing.T) {
	t.Run("explicit inside window kept", func(t *testing.T) {
		explicit := day("2026-06-01")
		got := resolveReminderDate(day("2026-01-01"), day("2027-01-01"), &explicit)
		if !got.Equal(explicit) {
			t.Fatalf("expected %s, got %s", explicit, got)
		}
	})

	t.Run("explicit outside window falls back to default", func(t *testing.T) {
		explicit := day("2027-06-01") // after expiry
		got := resolveReminderDate(day("2026-01-01"), day("2027-01-01"), &explicit)
		want := day("2027-01-01").AddDate(0, 0, -reminderLeadDays)
		if !got.Equal(want) {
			t.Fatalf("expected default %s, got %s", want, got)
		}
	})

	t.Run("explicit on boundary falls back", func(t *testing.T) {
		explicit := day("2027-01-01") // reminder must be strictly before expiry
		got := resolveReminderDate(day("2026-01-01"), day("2027-01-01"), &explicit)
		if got.Equal(explicit) {
			t.Fatal("boundary reminder date must not be kept")
		}
	})

	t.Run("absent defaults to expiry minus lead", func(t *testing.T) {
		got := resolveReminderDate(day("2026-01-01"), day("2027-01-01"), nil)
		want := day("2027-01-01").AddDate(0, 0, -reminderLeadDays)
		if !got.Equal(want) {
			t.Fatalf("expected %s, got %s", want, got)
		}
	})

	t.Run("short agreement uses midpoint", func(t *testing.T) {
		start, expiry := day("2026-01-01"), day("2026-02-01")
		got := resolveReminderDate(start, expiry, nil)
		if !got.After(start) || !got.Before(expiry) {
			t.Fatalf("midpoint %s outside (%s, %s)", got, start, expiry)
		}
	})

	t.Run("one day agreement reminds on eve of expiry", func(t *testing.T) {
		start, expiry := day("2026-01-01"), day("2026-01-02")
		got := resolveReminderDate(start, expiry, nil)
		if want := expiry.AddDate(0, 0, -1); !got.Equal(want) {
			t.Fatalf("expected %s, got %s", want, got)
		}
	})

	t.Run("invariant start < reminder < expiry or eve", func(t *testing.T) {
		pairs := [][2]string{
			{"2026-01-01", "2026-01-02"},
			{"2026-01-01", "2026-01-10"},
			{"2026-01-01", "2026-07-10"},
			{"2026-01-01", "2028-01-01"},
		}
		for _, p := range pairs {
			start, expiry := day(p[0]), day(p[1])
			got := resolveReminderDate(start, expiry, nil)
			if !got.After(start) && !got.Equal(expiry.AddDate(0, 0, -1)) {
				t.Fatalf("reminder %s not after start %s", got, start)
			}
			if !got.Before(expiry) {
				t.Fatalf("reminder %s not before expiry %s", got, expiry)
			}
		}
	})
}
