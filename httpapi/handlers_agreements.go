package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"contractdesk/agreement"
)

type createAgreementRequest struct {
	Title           string   `json:"title"`
	Reference       *string  `json:"reference"`
	TypeID          *string  `json:"type_id"`
	Remarks         *string  `json:"remarks"`
	DepartmentID    string   `json:"department_id"`
	VendorID        string   `json:"vendor_id"`
	StartDate       string   `json:"start_date"`
	ExpiryDate      string   `json:"expiry_date"`
	ReminderDate    *string  `json:"reminder_date"`
	AssignedUserIDs []string `json:"assigned_user_ids"`
	Draft           bool     `json:"draft"`
}

type editAgreementRequest struct {
	Title        *string `json:"title"`
	Reference    *string `json:"reference"`
	TypeID       *string `json:"type_id"`
	Remarks      *string `json:"remarks"`
	StartDate    *string `json:"start_date"`
	ExpiryDate   *string `json:"expiry_date"`
	ReminderDate *string `json:"reminder_date"`
	VendorID     *string `json:"vendor_id"`
	Activate     bool    `json:"activate"`
}

type assignmentRequest struct {
	UserID string `json:"user_id"`
	Allow  bool   `json:"allow"`
}

func (h *Handlers) createAgreement(c *gin.Context) {
	var req createAgreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	params := agreement.CreateParams{
		Title:           req.Title,
		Reference:       req.Reference,
		TypeID:          req.TypeID,
		Remarks:         req.Remarks,
		DepartmentID:    req.DepartmentID,
		VendorID:        req.VendorID,
		AssignedUserIDs: req.AssignedUserIDs,
		Draft:           req.Draft,
	}

	var ok bool
	if params.StartDate, ok = parseDate(req.StartDate); !ok && req.StartDate != "" {
		respondBadRequest(c, "start_date must be YYYY-MM-DD")
		return
	}
	if params.ExpiryDate, ok = parseDate(req.ExpiryDate); !ok && req.ExpiryDate != "" {
		respondBadRequest(c, "expiry_date must be YYYY-MM-DD")
		return
	}
	if req.ReminderDate != nil {
		day, ok := parseDate(*req.ReminderDate)
		if !ok {
			respondBadRequest(c, "reminder_date must be YYYY-MM-DD")
			return
		}
		params.ReminderDate = &day
	}

	ag, err := h.Agreements.Create(c.Request.Context(), actorID(c), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewAgreement(ag))
}

func (h *Handlers) listAgreements(c *gin.Context) {
	ags, err := h.Agreements.List(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agreements": viewAgreements(ags)})
}

func (h *Handlers) getAgreement(c *gin.Context) {
	ag, err := h.Agreements.Get(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewAgreement(ag))
}

func (h *Handlers) editAgreement(c *gin.Context) {
	var req editAgreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	patch := agreement.EditPatch{
		Title:     req.Title,
		Reference: req.Reference,
		TypeID:    req.TypeID,
		Remarks:   req.Remarks,
		VendorID:  req.VendorID,
		Activate:  req.Activate,
	}

	var err error
	if patch.StartDate, err = parseOptionalDate(req.StartDate); err != nil {
		respondBadRequest(c, "start_date must be YYYY-MM-DD")
		return
	}
	if patch.ExpiryDate, err = parseOptionalDate(req.ExpiryDate); err != nil {
		respondBadRequest(c, "expiry_date must be YYYY-MM-DD")
		return
	}
	if patch.ReminderDate, err = parseOptionalDate(req.ReminderDate); err != nil {
		respondBadRequest(c, "reminder_date must be YYYY-MM-DD")
		return
	}

	ag, err := h.Agreements.Edit(c.Request.Context(), actorID(c), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewAgreement(ag))
}

func (h *Handlers) terminateAgreement(c *gin.Context) {
	ag, err := h.Agreements.Terminate(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewAgreement(ag))
}

func (h *Handlers) setAssignment(c *gin.Context) {
	var req assignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		respondBadRequest(c, "user_id is required")
		return
	}

	ag, err := h.Agreements.SetAssignment(c.Request.Context(), actorID(c), c.Param("id"), req.UserID, req.Allow)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewAgreement(ag))
}

func (h *Handlers) deleteAgreement(c *gin.Context) {
	if _, err := h.Agreements.Delete(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// triggerSweep runs one reminder sweep on demand, outside the background
// schedule. Useful for operations and end-to-end checks.
func (h *Handlers) triggerSweep(c *gin.Context) {
	fired, err := h.Sweeper.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders_fired": fired})
}

func (h *Handlers) dashboard(c *gin.Context) {
	stats, err := h.Agreements.Stats(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
