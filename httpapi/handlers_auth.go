package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contractdesk/access"
	"contractdesk/auth"
)

func (h *Handlers) register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewUser(*user))
}

func (h *Handlers) login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	// The client gets its whole access picture up front: whether the
	// account is executive and which departments it can create in or see.
	subject, err := h.Access.LoadSubject(c.Request.Context(), result.User.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	editable := access.AccessibleDepartments(subject)
	if editable == nil {
		editable = []string{}
	}
	// Executives see every department; null signals "all" to the client.
	var viewable []string
	if !subject.Executive {
		viewable = access.ViewableDepartments(subject)
	}
	c.JSON(http.StatusOK, gin.H{
		"token":                result.Token,
		"user":                 viewUser(result.User),
		"executive":            subject.Executive,
		"editable_departments": editable,
		"viewable_departments": viewable,
	})
}

func (h *Handlers) changePassword(c *gin.Context) {
	var req auth.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	if err := h.Auth.ChangePassword(c.Request.Context(), actorID(c), req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) me(c *gin.Context) {
	user, err := h.Auth.GetUserByID(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewUser(*user))
}
