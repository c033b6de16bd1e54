package httpapi

import (
	"time"

	"contractdesk/access"
	"contractdesk/agreement"
	"contractdesk/auth"
	"contractdesk/department"
	"contractdesk/vendors"
)

// dateLayout is how the API exchanges calendar dates.
const dateLayout = "2006-01-02"

type userView struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	FullName     string  `json:"full_name"`
	DepartmentID *string `json:"department_id,omitempty"`
	Superuser    bool    `json:"superuser"`
	Active       bool    `json:"active"`
}

func viewUser(u auth.User) userView {
	return userView{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		DepartmentID: u.DepartmentID,
		Superuser:    u.Superuser,
		Active:       u.Active,
	}
}

type agreementView struct {
	ID               string   `json:"id"`
	AgreementID      string   `json:"agreement_id"`
	Reference        *string  `json:"reference,omitempty"`
	TypeID           *string  `json:"type_id,omitempty"`
	Title            string   `json:"title"`
	Remarks          *string  `json:"remarks,omitempty"`
	Status           string   `json:"status"`
	StartDate        string   `json:"start_date"`
	ExpiryDate       string   `json:"expiry_date"`
	ReminderDate     string   `json:"reminder_date"`
	DepartmentID     *string  `json:"department_id,omitempty"`
	VendorID         string   `json:"vendor_id"`
	CreatorID        *string  `json:"creator_id,omitempty"`
	AssignedUserIDs  []string `json:"assigned_user_ids"`
	OriginalFilename *string  `json:"original_filename,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

func viewAgreement(ag agreement.Agreement) agreementView {
	assigned := ag.AssignedUserIDs
	if assigned == nil {
		assigned = []string{}
	}
	return agreementView{
		ID:               ag.ID,
		AgreementID:      ag.AgreementID,
		Reference:        ag.Reference,
		TypeID:           ag.TypeID,
		Title:            ag.Title,
		Remarks:          ag.Remarks,
		Status:           string(ag.Status),
		StartDate:        ag.StartDate.Format(dateLayout),
		ExpiryDate:       ag.ExpiryDate.Format(dateLayout),
		ReminderDate:     ag.ReminderDate.Format(dateLayout),
		DepartmentID:     ag.DepartmentID,
		VendorID:         ag.VendorID,
		CreatorID:        ag.CreatorID,
		AssignedUserIDs:  assigned,
		OriginalFilename: ag.OriginalFilename,
		CreatedAt:        ag.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        ag.UpdatedAt.Format(time.RFC3339),
	}
}

func viewAgreements(ags []agreement.Agreement) []agreementView {
	out := make([]agreementView, 0, len(ags))
	for _, ag := range ags {
		out = append(out, viewAgreement(ag))
	}
	return out
}

type departmentView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Executive   bool   `json:"executive"`
}

func viewDepartment(d department.Department) departmentView {
	return departmentView{ID: d.ID, Name: d.Name, Description: d.Description, Executive: d.Executive}
}

type vendorView struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Address            string  `json:"address"`
	Email              string  `json:"email"`
	Phone              string  `json:"phone"`
	ContactName        *string `json:"contact_name,omitempty"`
	ContactDesignation *string `json:"contact_designation,omitempty"`
}

func viewVendor(v vendors.Vendor) vendorView {
	return vendorView{
		ID:                 v.ID,
		Name:               v.Name,
		Address:            v.Address,
		Email:              v.Email,
		Phone:              v.Phone,
		ContactName:        v.ContactName,
		ContactDesignation: v.ContactDesignation,
	}
}

type grantView struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	DepartmentID string  `json:"department_id"`
	Kind         string  `json:"kind"`
	ApprovedBy   *string `json:"approved_by,omitempty"`
	GrantedAt    string  `json:"granted_at"`
}

func viewGrant(g access.Grant) grantView {
	return grantView{
		ID:           g.ID,
		UserID:       g.UserID,
		DepartmentID: g.DepartmentID,
		Kind:         string(g.Kind),
		ApprovedBy:   g.ApprovedBy,
		GrantedAt:    g.GrantedAt.Format(time.RFC3339),
	}
}
