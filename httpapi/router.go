// Package httpapi exposes the agreement engine over a JSON HTTP API.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contractdesk/access"
	"contractdesk/agreement"
	"contractdesk/auth"
	"contractdesk/department"
	"contractdesk/logging"
	"contractdesk/reminder"
	"contractdesk/vendors"
)

// Handlers bundles the services the API fronts.
type Handlers struct {
	Auth        *auth.Service
	Agreements  *agreement.Service
	Access      *access.Service
	Departments *department.Repository
	Vendors     *vendors.Repository
	Types       *agreement.TypesRepository
	Sweeper     *reminder.Sweeper
	Logger      *zap.SugaredLogger
}

// NewRouter builds the gin engine with all routes mounted. Everything except
// registration, login and the health check requires a bearer token.
func NewRouter(h *Handlers) *gin.Engine {
	if h.Logger == nil {
		h.Logger = logging.Nop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", h.register)
	v1.POST("/auth/login", h.login)

	authed := v1.Group("", requireAuth(h.Auth))
	{
		authed.GET("/auth/me", h.me)
		authed.POST("/auth/change-password", h.changePassword)

		authed.POST("/agreements", h.createAgreement)
		authed.GET("/agreements", h.listAgreements)
		authed.GET("/agreements/:id", h.getAgreement)
		authed.PATCH("/agreements/:id", h.editAgreement)
		authed.POST("/agreements/:id/terminate", h.terminateAgreement)
		authed.POST("/agreements/:id/assignment", h.setAssignment)
		authed.DELETE("/agreements/:id", h.deleteAgreement)

		authed.GET("/dashboard", h.dashboard)
		authed.POST("/reminders/sweep", h.triggerSweep)

		authed.POST("/grants", h.createGrant)
		authed.DELETE("/grants", h.revokeGrant)
		authed.GET("/departments/:id/grants", h.listDepartmentGrants)

		authed.POST("/departments", h.createDepartment)
		authed.GET("/departments", h.listDepartments)

		authed.POST("/vendors", h.createVendor)
		authed.GET("/vendors", h.listVendors)

		authed.POST("/agreement-types", h.createType)
		authed.GET("/agreement-types", h.listTypes)
		authed.DELETE("/agreement-types/:id", h.deactivateType)
	}

	return r
}
