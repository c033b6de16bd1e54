package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contractdesk/access"
)

type grantRequest struct {
	UserID       string `json:"user_id"`
	DepartmentID string `json:"department_id"`
	Kind         string `json:"kind"`
	ApproverID   string `json:"approver_id"`
}

type revokeRequest struct {
	UserID       string `json:"user_id"`
	DepartmentID string `json:"department_id"`
	Kind         string `json:"kind"`
}

func (h *Handlers) createGrant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	// An executive granting on their own behalf does not need to repeat
	// themselves in approver_id.
	approver := req.ApproverID
	if approver == "" {
		approver = actorID(c)
	}

	grant, err := h.Access.Grant(c.Request.Context(), access.GrantParams{
		ApproverID:   approver,
		UserID:       req.UserID,
		DepartmentID: req.DepartmentID,
		Kind:         access.Kind(req.Kind),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewGrant(grant))
}

func (h *Handlers) revokeGrant(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	err := h.Access.Revoke(c.Request.Context(), actorID(c), req.UserID, req.DepartmentID, access.Kind(req.Kind))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) listDepartmentGrants(c *gin.Context) {
	grants, err := h.Access.GrantsForDepartment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]grantView, 0, len(grants))
	for _, g := range grants {
		views = append(views, viewGrant(g))
	}
	c.JSON(http.StatusOK, gin.H{"grants": views})
}
