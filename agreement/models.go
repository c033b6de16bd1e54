package agreement

import "time"

// Agreement is the aggregate root. AssignedUserIDs is owned by the aggregate
// and mutated only through SetAssignment, never by direct field writes.
type Agreement struct {
	ID               string
	AgreementID      string
	Reference        *string
	TypeID           *string
	Title            string
	Remarks          *string
	Status           Status
	StartDate        time.Time
	ExpiryDate       time.Time
	ReminderDate     time.Time
	DepartmentID     *string
	VendorID         string
	CreatorID        *string
	AssignedUserIDs  []string
	OriginalFilename *string
	AttachmentKey    *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateParams enumerates the fields accepted at creation time.
type CreateParams struct {
	Title           string
	Reference       *string
	TypeID          *string
	Remarks         *string
	DepartmentID    string
	VendorID        string
	StartDate       time.Time
	ExpiryDate      time.Time
	ReminderDate    *time.Time
	AssignedUserIDs []string
	Draft           bool
}

// EditPatch carries a partial update; nil fields are left untouched.
type EditPatch struct {
	Title        *string
	Reference    *string
	TypeID       *string
	Remarks      *string
	StartDate    *time.Time
	ExpiryDate   *time.Time
	ReminderDate *time.Time
	VendorID     *string
	Activate     bool
}

// Stats is the dashboard summary over an access scope.
type Stats struct {
	Total        int               `json:"total"`
	Ongoing      int               `json:"ongoing"`
	Expired      int               `json:"expired"`
	Terminated   int               `json:"terminated"`
	Draft        int               `json:"draft"`
	ExpiringSoon int               `json:"expiring_soon"`
	ByDepartment []DepartmentCount `json:"by_department"`
}

// DepartmentCount is one slice of the dashboard's per-department
// distribution. Executive departments own no agreements and are excluded.
type DepartmentCount struct {
	DepartmentID string `json:"department_id"`
	Name         string `json:"name"`
	Count        int    `json:"count"`
}

// Timeline event types recorded against an agreement.
const (
	EventCreated           = "AGREEMENT_CREATED"
	EventUpdated           = "AGREEMENT_UPDATED"
	EventTerminated        = "AGREEMENT_TERMINATED"
	EventAssignmentChanged = "ASSIGNMENT_CHANGED"
	EventDeleted           = "AGREEMENT_DELETED"
)
