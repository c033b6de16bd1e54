package agreement

import (
	"strings"
	"time"
)

// reminderLeadDays is how far before expiry the default reminder lands.
const reminderLeadDays = 180

// ValidationError carries field-level messages back to the caller. Nothing
// is persisted when validation fails.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "agreement: validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "agreement: validation failed: " + strings.Join(parts, "; ")
}

func newValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) add(field, msg string) {
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// validateCreate checks the required fields and date ordering for creation.
func validateCreate(params CreateParams) error {
	verr := newValidationError()

	if strings.TrimSpace(params.Title) == "" {
		verr.add("title", "title is required")
	}
	if params.DepartmentID == "" {
		verr.add("department_id", "department is required")
	}
	if params.VendorID == "" {
		verr.add("vendor_id", "vendor is required")
	}
	if params.StartDate.IsZero() {
		verr.add("start_date", "start date is required")
	}
	if params.ExpiryDate.IsZero() {
		verr.add("expiry_date", "expiry date is required")
	}
	if !params.StartDate.IsZero() && !params.ExpiryDate.IsZero() {
		if !dateOnly(params.ExpiryDate).After(dateOnly(params.StartDate)) {
			verr.add("expiry_date", "expiry date must be after start date")
		}
	}

	return verr.orNil()
}

// validateDates checks the ordering invariant on its own, used by edits.
func validateDates(start, expiry time.Time) error {
	verr := newValidationError()
	if !dateOnly(expiry).After(dateOnly(start)) {
		verr.add("expiry_date", "expiry date must be after start date")
	}
	return verr.orNil()
}

// resolveReminderDate returns a reminder date satisfying
// start < reminder < expiry. An explicit reminder inside the window is kept.
// When absent or out of order, the default is expiry minus 180 days; for
// agreements too short for that rule the midpoint of the window is used so
// creation never fails on a valid date pair.
func resolveReminderDate(start, expiry time.Time, explicit *time.Time) time.Time {
	startDay := dateOnly(start)
	expiryDay := dateOnly(expiry)

	if explicit != nil {
		day := dateOnly(*explicit)
		if day.After(startDay) && day.Before(expiryDay) {
			return day
		}
	}

	def := expiryDay.AddDate(0, 0, -reminderLeadDays)
	if def.After(startDay) {
		return def
	}

	mid := dateOnly(startDay.Add(expiryDay.Sub(startDay) / 2))
	if mid.After(startDay) {
		return mid
	}
	// One-day agreements have no interior date; remind on the eve of expiry.
	return expiryDay.AddDate(0, 0, -1)
}
