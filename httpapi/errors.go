package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"contractdesk/access"
	"contractdesk/agreement"
	"contractdesk/auth"
	"contractdesk/department"
	"contractdesk/vendors"
)

// respondError maps domain errors onto HTTP statuses. Unknown errors become
// an opaque 500; the handler's logger carries the detail.
func respondError(c *gin.Context, err error) {
	var verr *agreement.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
		return
	}

	switch {
	case errors.Is(err, agreement.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, agreement.ErrNotFound),
		errors.Is(err, agreement.ErrTypeNotFound),
		errors.Is(err, department.ErrNotFound),
		errors.Is(err, vendors.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, access.ErrSubjectNotFound),
		errors.Is(err, access.ErrGrantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, agreement.ErrInvalidStatus):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, access.ErrInvalidApproval),
		errors.Is(err, access.ErrInvalidKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, access.ErrDuplicateGrant),
		errors.Is(err, department.ErrDuplicateName),
		errors.Is(err, vendors.ErrDuplicateEmail),
		errors.Is(err, agreement.ErrDuplicateTypeName):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
