package agreement

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"contractdesk/access"
	"contractdesk/logging"
)

var (
	// ErrPermissionDenied is returned when the acting user may not perform
	// the requested operation on the agreement.
	ErrPermissionDenied = errors.New("agreement: permission denied")
	// ErrInvalidStatus is returned for transitions the lifecycle forbids.
	ErrInvalidStatus = errors.New("agreement: invalid status transition")
)

// statsSoonWindowDays is the dashboard's "expiring soon" horizon.
const statsSoonWindowDays = 90

// Store is the persistence surface the service drives. *Repository is the
// production implementation.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, ag Agreement) (Agreement, error)
	Update(ctx context.Context, tx pgx.Tx, ag Agreement) (Agreement, error)
	GetByID(ctx context.Context, id string, today time.Time) (Agreement, error)
	ListVisible(ctx context.Context, subject access.Subject, today time.Time) ([]Agreement, error)
	SetAssignee(ctx context.Context, tx pgx.Tx, agreementID, userID string, allow bool) error
	Delete(ctx context.Context, id string) (*string, error)
	UserEmails(ctx context.Context, tx pgx.Tx, userIDs []string) ([]string, error)
	AppendTimeline(ctx context.Context, tx pgx.Tx, agreementID, eventType string, actorID *string, payload map[string]any) error
	Stats(ctx context.Context, subject access.Subject, today time.Time, soonWindowDays int) (Stats, error)
}

// SubjectLoader resolves the acting user's access subject.
type SubjectLoader interface {
	LoadSubject(ctx context.Context, userID string) (access.Subject, error)
}

// Notifier enqueues an outbound notification inside the caller's transaction
// so the message and the state change that caused it commit or abort together.
type Notifier interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, recipients []string, subject, body string) error
}

// TxBeginner abstracts transaction creation; *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// IdentifierAllocator mints the human-readable agreement identifier inside
// the creation transaction. *Allocator is the production implementation.
type IdentifierAllocator interface {
	Allocate(ctx context.Context, tx pgx.Tx, year int) (string, error)
}

// Service implements the agreement lifecycle: creation with identifier
// allocation, access-checked reads and edits, assignment management,
// termination and deletion. Every mutation appends a timeline event and
// enqueues its notification in the same transaction.
type Service struct {
	beginner  TxBeginner
	store     Store
	allocator IdentifierAllocator
	subjects  SubjectLoader
	notifier  Notifier
	logger    *zap.SugaredLogger

	now func() time.Time
}

// NewService wires the agreement service.
func NewService(beginner TxBeginner, store Store, allocator IdentifierAllocator, subjects SubjectLoader, notifier Notifier, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		beginner:  beginner,
		store:     store,
		allocator: allocator,
		subjects:  subjects,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Create validates, allocates an identifier and persists a new agreement.
// Executives cannot create; everyone else is limited to departments they can
// edit in. The identifier, the row, the assignee set, the timeline event and
// the notification all commit atomically.
func (s *Service) Create(ctx context.Context, actorID string, params CreateParams) (Agreement, error) {
	subject, err := s.subjects.LoadSubject(ctx, actorID)
	if err != nil {
		return Agreement{}, err
	}
	if subject.Executive {
		return Agreement{}, ErrPermissionDenied
	}

	if err := validateCreate(params); err != nil {
		return Agreement{}, err
	}
	if !slices.Contains(access.AccessibleDepartments(subject), params.DepartmentID) {
		return Agreement{}, ErrPermissionDenied
	}

	today := s.now()
	status := StatusOngoing
	if params.Draft {
		status = StatusDraft
	} else {
		status = DeriveStatus(StatusOngoing, params.ExpiryDate, today)
	}

	deptID := params.DepartmentID
	ag := Agreement{
		Reference:       params.Reference,
		TypeID:          params.TypeID,
		Title:           params.Title,
		Remarks:         params.Remarks,
		Status:          status,
		StartDate:       dateOnly(params.StartDate),
		ExpiryDate:      dateOnly(params.ExpiryDate),
		ReminderDate:    resolveReminderDate(params.StartDate, params.ExpiryDate, params.ReminderDate),
		DepartmentID:    &deptID,
		VendorID:        params.VendorID,
		CreatorID:       &actorID,
		AssignedUserIDs: dedupe(params.AssignedUserIDs),
	}

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: begin create tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ag.AgreementID, err = s.allocator.Allocate(ctx, tx, today.Year())
	if err != nil {
		return Agreement{}, err
	}

	created, err := s.store.Insert(ctx, tx, ag)
	if err != nil {
		return Agreement{}, err
	}

	if err := s.store.AppendTimeline(ctx, tx, created.ID, EventCreated, &actorID, map[string]any{
		"agreement_id": created.AgreementID,
		"title":        created.Title,
	}); err != nil {
		return Agreement{}, err
	}

	if err := s.notifyParties(ctx, tx, created, "agreement.created",
		fmt.Sprintf("New Agreement Created: %s", created.AgreementID),
		fmt.Sprintf("Agreement %s (%s) has been created and assigned to you.", created.AgreementID, created.Title),
	); err != nil {
		return Agreement{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Agreement{}, fmt.Errorf("agreement: commit create tx: %w", err)
	}

	s.logger.Infow("agreement created", "id", created.ID, "agreement_id", created.AgreementID, "actor", actorID)
	return created, nil
}

// Get returns the agreement if the acting user may view it.
func (s *Service) Get(ctx context.Context, actorID, id string) (Agreement, error) {
	subject, err := s.subjects.LoadSubject(ctx, actorID)
	if err != nil {
		return Agreement{}, err
	}

	ag, err := s.store.GetByID(ctx, id, s.now())
	if err != nil {
		return Agreement{}, err
	}
	if !access.CanView(subject, refOf(ag)) {
		return Agreement{}, ErrPermissionDenied
	}
	return ag, nil
}

// List returns all agreements visible to the acting user, newest first.
func (s *Service) List(ctx context.Context, actorID string) ([]Agreement, error) {
	subject, err := s.subjects.LoadSubject(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.store.ListVisible(ctx, subject, s.now())
}

// Edit applies a partial update. Editing requires assignment, membership in
// the agreement's department, or an edit grant; executives never edit. Date
// changes re-derive the status, so pushing the expiry of an expired agreement
// forward revives it.
func (s *Service) Edit(ctx context.Context, actorID, id string, patch EditPatch) (Agreement, error) {
	subject, err := s.subjects.LoadSubject(ctx, actorID)
	if err != nil {
		return Agreement{}, err
	}

	today := s.now()
	ag, err := s.store.GetByID(ctx, id, today)
	if err != nil {
		return Agreement{}, err
	}
	if !access.CanEdit(subject, refOf(ag)) {
		return Agreement{}, ErrPermissionDenied
	}

	changed := applyPatch(&ag, patch)
	if len(changed) == 0 && !patch.Activate {
		return ag, nil
	}

	if err := validateDates(ag.StartDate, ag.ExpiryDate); err != nil {
		return Agreement{}, err
	}

	datesMoved := slices.Contains(changed, "start_date") || slices.Contains(changed, "expiry_date")
	if patch.ReminderDate != nil {
		ag.ReminderDate = resolveReminderDate(ag.StartDate, ag.ExpiryDate, patch.ReminderDate)
	} else if datesMoved {
		// The stored reminder survives a date move as long as it still
		// falls inside the new window; only then is the default recomputed.
		existing := ag.ReminderDate
		ag.ReminderDate = resolveReminderDate(ag.StartDate, ag.ExpiryDate, &existing)
	}

	if patch.Activate {
		if ag.Status != StatusDraft {
			return Agreement{}, ErrInvalidStatus
		}
		ag.Status = StatusOngoing
		changed = append(changed, "status")
	}
	if ag.Status != StatusDraft {
		ag.Status = DeriveStatus(ag.Status, ag.ExpiryDate, today)
	}

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: begin edit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := s.store.Update(ctx, tx, ag)
	if err != nil {
		return Agreement{}, err
	}

	if err := s.store.AppendTimeline(ctx, tx, updated.ID, EventUpdated, &actorID, map[string]any{
		"fields": changed,
	}); err != nil {
		return Agreement{}, err
	}

	if err := s.notifyParties(ctx, tx, updated, "agreement.updated",
		fmt.Sprintf("Agreement Updated: %s", updated.AgreementID),
		fmt.Sprintf("Agreement %s (%s) has been updated.", updated.AgreementID, updated.Title),
	); err != nil {
		return Agreement{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Agreement{}, fmt.Errorf("agreement: commit edit tx: %w", err)
	}

	s.logger.Infow("agreement updated", "id", updated.ID, "fields", changed, "actor", actorID)
	return updated, nil
}

// Terminate moves the agreement to its absorbing terminated state. It is an
// edit-level action; terminating twice is rejected.
func (s *Service) Terminate(ctx context.Context, actorID, id string) (Agreement, error) {
	subject, err := s.subjects.LoadSubject(ctx, actorID)
	if err != nil {
		return Agreement{}, err
	}

	ag, err := s.store.GetByID(ctx, id, s.now())
	if err != nil {
		return Agreement{}, err
	}
	if !access.CanEdit(subject, refOf(ag)) {
		return Agreement{}, ErrPermissionDenied
	}
	if ag.Status == StatusTerminated {
		return Agreement{}, ErrInvalidStatus
	}

	ag.Status = StatusTerminated

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: begin terminate tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := s.store.Update(ctx, tx, ag)
	if err != nil {
		return Agreement{}, err
	}

	if err := s.store.AppendTimeline(ctx, tx, updated.ID, EventTerminated, &actorID, nil); err != nil {
		return Agreement{}, err
	}

	if err := s.notifyParties(ctx, tx, updated, "agreement.terminated",
		fmt.Sprintf("Agreement Terminated: %s", updated.AgreementID),
		fmt.Sprintf("Agreement %s (%s) has been terminated.", updated.AgreementID, updated.Title),
	); err != nil {
		return Agreement{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Agreement{}, fmt.Errorf("agreement: commit terminate tx: %w", err)
	}

	s.logger.Infow("agreement terminated", "id", updated.ID, "actor", actorID)
	return updated, nil
}

// SetAssignment adds or removes one user from the assignee set. Only a
// superuser or the agreement's creator may change assignments.
func (s *Service) SetAssignment(ctx context.Context, actorID, id, userID string, allow bool) (Agreement, error) {
	subject, err := s.subjects.LoadSubject(ctx, actorID)
	if err != nil {
		return Agreement{}, err
	}

	today := s.now()
	ag, err := s.store.GetByID(ctx, id, today)
	if err != nil {
		return Agreement{}, err
	}
	if !access.CanManageAssignment(subject, refOf(ag)) {
		return Agreement{}, ErrPermissionDenied
	}

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: begin assignment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.store.SetAssignee(ctx, tx, ag.ID, userID, allow); err != nil {
		return Agreement{}, err
	}

	action := "removed"
	if allow {
		action = "added"
	}
	if err := s.store.AppendTimeline(ctx, tx, ag.ID, EventAssignmentChanged, &actorID, map[string]any{
		"user_id": userID,
		"action":  action,
	}); err != nil {
		return Agreement{}, err
	}

	if allow {
		emails, err := s.store.UserEmails(ctx, tx, []string{userID})
		if err != nil {
			return Agreement{}, err
		}
		if len(emails) > 0 {
			if err := s.notifier.Enqueue(ctx, tx, "agreement.assigned", emails,
				fmt.Sprintf("Agreement Assigned: %s", ag.AgreementID),
				fmt.Sprintf("You have been assigned to agreement %s (%s).", ag.AgreementID, ag.Title),
			); err != nil {
				return Agreement{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Agreement{}, fmt.Errorf("agreement: commit assignment tx: %w", err)
	}

	return s.store.GetByID(ctx, id, today)
}

// Delete removes the agreement outright. Only a superuser or the creator may
// delete; the attachment key of any stored document is returned for cleanup.
func (s *Service) Delete(ctx context.Context, actorID, id string) (*string, error) {
	subject, err := s.subjects.LoadSubject(ctx, actorID)
	if err != nil {
		return nil, err
	}

	ag, err := s.store.GetByID(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if !access.CanManageAssignment(subject, refOf(ag)) {
		return nil, ErrPermissionDenied
	}

	key, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("agreement deleted", "id", id, "agreement_id", ag.AgreementID, "actor", actorID)
	return key, nil
}

// Stats returns the dashboard counts over the acting user's visible scope.
func (s *Service) Stats(ctx context.Context, actorID string) (Stats, error) {
	subject, err := s.subjects.LoadSubject(ctx, actorID)
	if err != nil {
		return Stats{}, err
	}
	return s.store.Stats(ctx, subject, s.now(), statsSoonWindowDays)
}

// notifyParties fans a notification out to the assigned users plus the
// creator. An empty recipient set enqueues nothing.
func (s *Service) notifyParties(ctx context.Context, tx pgx.Tx, ag Agreement, topic, subject, body string) error {
	ids := recipientIDs(ag)
	if len(ids) == 0 {
		return nil
	}
	emails, err := s.store.UserEmails(ctx, tx, ids)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		return nil
	}
	return s.notifier.Enqueue(ctx, tx, topic, emails, subject, body)
}

// recipientIDs is the notification audience: assigned users plus the
// creator, deduplicated.
func recipientIDs(ag Agreement) []string {
	ids := append([]string(nil), ag.AssignedUserIDs...)
	if ag.CreatorID != nil && *ag.CreatorID != "" {
		ids = append(ids, *ag.CreatorID)
	}
	return dedupe(ids)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// applyPatch copies non-nil patch fields onto the agreement and reports which
// column names changed.
func applyPatch(ag *Agreement, patch EditPatch) []string {
	var changed []string
	if patch.Title != nil && *patch.Title != ag.Title {
		ag.Title = *patch.Title
		changed = append(changed, "title")
	}
	if patch.Reference != nil {
		ag.Reference = patch.Reference
		changed = append(changed, "reference")
	}
	if patch.TypeID != nil {
		ag.TypeID = patch.TypeID
		changed = append(changed, "type_id")
	}
	if patch.Remarks != nil {
		ag.Remarks = patch.Remarks
		changed = append(changed, "remarks")
	}
	if patch.StartDate != nil && !dateOnly(*patch.StartDate).Equal(ag.StartDate) {
		ag.StartDate = dateOnly(*patch.StartDate)
		changed = append(changed, "start_date")
	}
	if patch.ExpiryDate != nil && !dateOnly(*patch.ExpiryDate).Equal(ag.ExpiryDate) {
		ag.ExpiryDate = dateOnly(*patch.ExpiryDate)
		changed = append(changed, "expiry_date")
	}
	if patch.ReminderDate != nil {
		changed = append(changed, "reminder_date")
	}
	if patch.VendorID != nil && *patch.VendorID != ag.VendorID {
		ag.VendorID = *patch.VendorID
		changed = append(changed, "vendor_id")
	}
	return changed
}

func refOf(ag Agreement) access.AgreementRef {
	return access.AgreementRef{
		DepartmentID:    ag.DepartmentID,
		CreatorID:       ag.CreatorID,
		AssignedUserIDs: ag.AssignedUserIDs,
	}
}
