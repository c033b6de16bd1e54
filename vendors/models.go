package vendors

import "time"

// Vendor is the external party an agreement is signed with.
type Vendor struct {
	ID                 string
	Name               string
	Address            string
	Email              string
	Phone              string
	ContactName        *string
	ContactDesignation *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CreateParams enumerates the required fields to register a vendor.
type CreateParams struct {
	Name               string
	Address            string
	Email              string
	Phone              string
	ContactName        *string
	ContactDesignation *string
}
