package access

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestService_GrantRequiresExecutiveApprover(t *testing.T) {
	repo := newFakeAccessRepository()
	repo.addSubject(Subject{UserID: "exec-1", Executive: true})
	repo.addSubject(Subject{UserID: "clerk-1"})
	svc := NewService(repo)

	ctx := context.Background()

	// Missing approver is rejected, not defaulted.
	_, err := svc.Grant(ctx, GrantParams{
		UserID:       "clerk-2",
		DepartmentID: "dept-finance",
		Kind:         KindView,
	})
	if !errors.Is(err, ErrInvalidApproval) {
		t.Fatalf("expected ErrInvalidApproval for missing approver, got %v", err)
	}

	// Non-executive approver is rejected.
	_, err = svc.Grant(ctx, GrantParams{
		ApproverID:   "clerk-1",
		UserID:       "clerk-2",
		DepartmentID: "dept-finance",
		Kind:         KindView,
	})
	if !errors.Is(err, ErrInvalidApproval) {
		t.Fatalf("expected ErrInvalidApproval for non-executive approver, got %v", err)
	}

	// Unknown approver is rejected the same way.
	_, err = svc.Grant(ctx, GrantParams{
		ApproverID:   "ghost",
		UserID:       "clerk-2",
		DepartmentID: "dept-finance",
		Kind:         KindView,
	})
	if !errors.Is(err, ErrInvalidApproval) {
		t.Fatalf("expected ErrInvalidApproval for unknown approver, got %v", err)
	}

	grant, err := svc.Grant(ctx, GrantParams{
		ApproverID:   "exec-1",
		UserID:       "clerk-2",
		DepartmentID: "dept-finance",
		Kind:         KindEdit,
	})
	if err != nil {
		t.Fatalf("grant with executive approver: %v", err)
	}
	if grant.ApprovedBy == nil || *grant.ApprovedBy != "exec-1" {
		t.Fatalf("expected approved_by exec-1, got %v", grant.ApprovedBy)
	}
}

func TestService_GrantValidation(t *testing.T) {
	repo := newFakeAccessRepository()
	repo.addSubject(Subject{UserID: "exec-1", Executive: true})
	svc := NewService(repo)

	if _, err := svc.Grant(context.Background(), GrantParams{
		ApproverID:   "exec-1",
		UserID:       "clerk-1",
		DepartmentID: "dept-finance",
		Kind:         Kind("admin"),
	}); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}

	if _, err := svc.Grant(context.Background(), GrantParams{
		ApproverID: "exec-1",
		Kind:       KindView,
	}); err == nil {
		t.Fatal("expected error for missing user and department")
	}
}

func TestService_GrantDuplicate(t *testing.T) {
	repo := newFakeAccessRepository()
	repo.addSubject(Subject{UserID: "exec-1", Executive: true})
	svc := NewService(repo)

	params := GrantParams{
		ApproverID:   "exec-1",
		UserID:       "clerk-1",
		DepartmentID: "dept-finance",
		Kind:         KindView,
	}
	if _, err := svc.Grant(context.Background(), params); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if _, err := svc.Grant(context.Background(), params); !errors.Is(err, ErrDuplicateGrant) {
		t.Fatalf("expected ErrDuplicateGrant, got %v", err)
	}
}

func TestService_RevokeRequiresExecutiveOrSuperuser(t *testing.T) {
	repo := newFakeAccessRepository()
	repo.addSubject(Subject{UserID: "exec-1", Executive: true})
	repo.addSubject(Subject{UserID: "super-1", Superuser: true})
	repo.addSubject(Subject{UserID: "clerk-1"})
	svc := NewService(repo)

	ctx := context.Background()
	for _, userID := range []string{"a", "b"} {
		if _, err := svc.Grant(ctx, GrantParams{
			ApproverID:   "exec-1",
			UserID:       userID,
			DepartmentID: "dept-finance",
			Kind:         KindView,
		}); err != nil {
			t.Fatalf("seed grant: %v", err)
		}
	}

	if err := svc.Revoke(ctx, "clerk-1", "a", "dept-finance", KindView); !errors.Is(err, ErrInvalidApproval) {
		t.Fatalf("expected ErrInvalidApproval for plain user, got %v", err)
	}
	if err := svc.Revoke(ctx, "exec-1", "a", "dept-finance", KindView); err != nil {
		t.Fatalf("executive revoke: %v", err)
	}
	if err := svc.Revoke(ctx, "super-1", "b", "dept-finance", KindView); err != nil {
		t.Fatalf("superuser revoke: %v", err)
	}
	if err := svc.Revoke(ctx, "exec-1", "a", "dept-finance", KindView); !errors.Is(err, ErrGrantNotFound) {
		t.Fatalf("expected ErrGrantNotFound for repeated revoke, got %v", err)
	}
}

type fakeAccessRepository struct {
	subjects map[string]Subject
	grants   map[string]Grant
	nextID   int
}

func newFakeAccessRepository() *fakeAccessRepository {
	return &fakeAccessRepository{
		subjects: make(map[string]Subject),
		grants:   make(map[string]Grant),
		nextID:   1,
	}
}

func (f *fakeAccessRepository) addSubject(s Subject) {
	f.subjects[s.UserID] = s
}

func grantKey(userID, departmentID string, kind Kind) string {
	return userID + "|" + departmentID + "|" + string(kind)
}

func (f *fakeAccessRepository) LoadSubject(ctx context.Context, userID string) (Subject, error) {
	s, ok := f.subjects[userID]
	if !ok {
		return Subject{}, ErrSubjectNotFound
	}
	for _, g := range f.grants {
		if g.UserID == userID {
			s.Grants = append(s.Grants, g)
		}
	}
	return s, nil
}

func (f *fakeAccessRepository) CreateGrant(ctx context.Context, grant Grant) (Grant, error) {
	key := grantKey(grant.UserID, grant.DepartmentID, grant.Kind)
	if _, exists := f.grants[key]; exists {
		return Grant{}, ErrDuplicateGrant
	}
	grant.ID = fmt.Sprintf("grant-%d", f.nextID)
	f.nextID++
	grant.GrantedAt = time.Now().UTC()
	f.grants[key] = grant
	return grant, nil
}

func (f *fakeAccessRepository) DeleteGrant(ctx context.Context, userID, departmentID string, kind Kind) error {
	key := grantKey(userID, departmentID, kind)
	if _, exists := f.grants[key]; !exists {
		return ErrGrantNotFound
	}
	delete(f.grants, key)
	return nil
}

func (f *fakeAccessRepository) ListGrantsForDepartment(ctx context.Context, departmentID string) ([]Grant, error) {
	var out []Grant
	for _, g := range f.grants {
		if g.DepartmentID == departmentID {
			out = append(out, g)
		}
	}
	return out, nil
}
