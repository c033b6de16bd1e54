package access

// Resolution of view/edit rights. All functions here are pure: they look
// only at the Subject and the agreement slice handed to them, so the policy
// is testable without a database.
//
// The model is asymmetric: department membership alone grants edit within
// the home department, but crossing into another department requires an
// explicit edit-kind grant; a view-kind grant never confers edit. Executive
// users see everything and may edit nothing.

// CanView reports whether the subject may see the agreement.
func CanView(s Subject, ag AgreementRef) bool {
	if s.Executive {
		return true
	}
	if sameDepartment(s, ag.DepartmentID) {
		return true
	}
	if ag.DepartmentID == nil {
		return false
	}
	for _, g := range s.Grants {
		if g.DepartmentID == *ag.DepartmentID {
			return true
		}
	}
	return false
}

// CanEdit reports whether the subject may mutate the agreement. Executives
// are read-only as a hard policy, regardless of grants, assignment, or
// department match.
func CanEdit(s Subject, ag AgreementRef) bool {
	if s.Executive {
		return false
	}
	for _, id := range ag.AssignedUserIDs {
		if id == s.UserID {
			return true
		}
	}
	if sameDepartment(s, ag.DepartmentID) {
		return true
	}
	if ag.DepartmentID == nil {
		return false
	}
	for _, g := range s.Grants {
		if g.DepartmentID == *ag.DepartmentID && g.Kind == KindEdit {
			return true
		}
	}
	return false
}

// CanManageAssignment reports whether the subject may add or remove assigned
// users on the agreement. Only superusers and the agreement's creator may.
func CanManageAssignment(s Subject, ag AgreementRef) bool {
	if s.Superuser {
		return true
	}
	return ag.CreatorID != nil && *ag.CreatorID == s.UserID
}

// AccessibleDepartments returns the departments the subject may create
// agreements under: their own plus any with an edit-kind grant. Executives
// get none, since they cannot create agreements.
func AccessibleDepartments(s Subject) []string {
	if s.Executive {
		return nil
	}
	return collectDepartments(s, true)
}

// ViewableDepartments returns the departments whose agreements the subject
// may list: their own plus any with a grant of either kind. Callers must
// check Executive first; an executive sees all departments.
func ViewableDepartments(s Subject) []string {
	return collectDepartments(s, false)
}

// VisibleAgreements filters agreements down to those the subject may view.
// Indices into the input slice are returned so callers can keep their own
// richer agreement type.
func VisibleAgreements(s Subject, agreements []AgreementRef) []int {
	visible := make([]int, 0, len(agreements))
	for i, ag := range agreements {
		if CanView(s, ag) {
			visible = append(visible, i)
		}
	}
	return visible
}

func collectDepartments(s Subject, editOnly bool) []string {
	seen := make(map[string]struct{}, len(s.Grants)+1)
	out := make([]string, 0, len(s.Grants)+1)

	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	if s.DepartmentID != nil {
		add(*s.DepartmentID)
	}
	for _, g := range s.Grants {
		if editOnly && g.Kind != KindEdit {
			continue
		}
		add(g.DepartmentID)
	}
	return out
}

func sameDepartment(s Subject, deptID *string) bool {
	return s.DepartmentID != nil && deptID != nil && *s.DepartmentID == *deptID
}
