package access

import "time"

// Kind is the permission level a grant confers on a department.
type Kind string

const (
	// KindView allows seeing a department's agreements.
	KindView Kind = "view"
	// KindEdit allows creating and editing a department's agreements.
	// Edit implies view.
	KindEdit Kind = "edit"
)

// Valid reports whether k is one of the known grant kinds.
func (k Kind) Valid() bool {
	return k == KindView || k == KindEdit
}

// Grant extends a user's reach into a department they do not belong to.
// Grants are unique per (user, department, kind) and must be approved by an
// executive; re-granting the same tuple is rejected (delete then recreate).
type Grant struct {
	ID           string
	UserID       string
	DepartmentID string
	Kind         Kind
	ApprovedBy   *string
	GrantedAt    time.Time
}

// Subject is everything the resolver needs to know about an acting user:
// identity, home department, whether that department is executive, the
// superuser flag, and all grants held.
type Subject struct {
	UserID       string
	DepartmentID *string
	Executive    bool
	Superuser    bool
	Grants       []Grant
}

// AgreementRef is the slice of an agreement that access decisions depend on.
type AgreementRef struct {
	DepartmentID    *string
	CreatorID       *string
	AssignedUserIDs []string
}
