package access

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidApproval signals the grant approver is missing or not an
	// executive. The grant is rejected outright, never downgraded.
	ErrInvalidApproval = errors.New("access: approver must belong to an executive department")
	// ErrInvalidKind signals an unknown permission kind.
	ErrInvalidKind = errors.New("access: invalid permission kind")
)

// Service exposes grant management on top of the repository.
type Service struct {
	repo Repository
}

// NewService builds a Service using the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GrantParams enumerates the fields required to create a grant.
type GrantParams struct {
	ApproverID   string
	UserID       string
	DepartmentID string
	Kind         Kind
}

// Grant creates a department permission. The approver must be supplied
// explicitly and must be an executive; there is no fallback to picking an
// arbitrary executive on the caller's behalf.
func (s *Service) Grant(ctx context.Context, params GrantParams) (Grant, error) {
	if !params.Kind.Valid() {
		return Grant{}, ErrInvalidKind
	}
	if params.UserID == "" || params.DepartmentID == "" {
		return Grant{}, fmt.Errorf("access: user and department are required")
	}
	if params.ApproverID == "" {
		return Grant{}, ErrInvalidApproval
	}

	approver, err := s.repo.LoadSubject(ctx, params.ApproverID)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return Grant{}, ErrInvalidApproval
		}
		return Grant{}, err
	}
	if !approver.Executive {
		return Grant{}, ErrInvalidApproval
	}

	return s.repo.CreateGrant(ctx, Grant{
		UserID:       params.UserID,
		DepartmentID: params.DepartmentID,
		Kind:         params.Kind,
		ApprovedBy:   &params.ApproverID,
	})
}

// Revoke deletes the grant for the given tuple. Only executives may revoke.
func (s *Service) Revoke(ctx context.Context, actorID, userID, departmentID string, kind Kind) error {
	actor, err := s.repo.LoadSubject(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.Executive && !actor.Superuser {
		return ErrInvalidApproval
	}
	return s.repo.DeleteGrant(ctx, userID, departmentID, kind)
}

// LoadSubject exposes subject loading to collaborating services.
func (s *Service) LoadSubject(ctx context.Context, userID string) (Subject, error) {
	return s.repo.LoadSubject(ctx, userID)
}

// GrantsForDepartment lists all grants reaching into a department.
func (s *Service) GrantsForDepartment(ctx context.Context, departmentID string) ([]Grant, error) {
	return s.repo.ListGrantsForDepartment(ctx, departmentID)
}
