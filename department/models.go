package department

import "time"

// Department groups users and owns agreements. Executive departments get
// read access to every agreement but can never create or edit one.
type Department struct {
	ID          string
	Name        string
	Description string
	Executive   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
