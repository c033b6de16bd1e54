package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contractdesk/vendors"
)

type createDepartmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Executive   bool   `json:"executive"`
}

func (h *Handlers) createDepartment(c *gin.Context) {
	var req createDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondBadRequest(c, "name is required")
		return
	}

	dept, err := h.Departments.Create(c.Request.Context(), req.Name, req.Description, req.Executive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewDepartment(dept))
}

func (h *Handlers) listDepartments(c *gin.Context) {
	depts, err := h.Departments.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]departmentView, 0, len(depts))
	for _, d := range depts {
		views = append(views, viewDepartment(d))
	}
	c.JSON(http.StatusOK, gin.H{"departments": views})
}

type createVendorRequest struct {
	Name               string  `json:"name"`
	Address            string  `json:"address"`
	Email              string  `json:"email"`
	Phone              string  `json:"phone"`
	ContactName        *string `json:"contact_name"`
	ContactDesignation *string `json:"contact_designation"`
}

func (h *Handlers) createVendor(c *gin.Context) {
	var req createVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	vendor, err := h.Vendors.Create(c.Request.Context(), vendors.CreateParams{
		Name:               req.Name,
		Address:            req.Address,
		Email:              req.Email,
		Phone:              req.Phone,
		ContactName:        req.ContactName,
		ContactDesignation: req.ContactDesignation,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewVendor(vendor))
}

func (h *Handlers) listVendors(c *gin.Context) {
	list, err := h.Vendors.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]vendorView, 0, len(list))
	for _, v := range list {
		views = append(views, viewVendor(v))
	}
	c.JSON(http.StatusOK, gin.H{"vendors": views})
}

type createTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handlers) createType(c *gin.Context) {
	var req createTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondBadRequest(c, "name is required")
		return
	}

	t, err := h.Types.CreateType(c.Request.Context(), req.Name, req.Description, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handlers) listTypes(c *gin.Context) {
	types, err := h.Types.ListTypes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"types": types})
}

func (h *Handlers) deactivateType(c *gin.Context) {
	if err := h.Types.DeactivateType(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
