package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for the audit log.
type Handler struct {
	service AuditService
}

// NewHandler creates a new audit handler.
func NewHandler(service AuditService) *Handler {
	return &Handler{service: service}
}

// List returns the audit feed (GET /user/audit). With ?email= it returns
// the history of a single account instead of a page.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	if email := c.QueryParam("email"); email != "" {
		entries, err := h.service.ListForAccount(ctx, email)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []AuditEntry{}
		}
		return c.JSON(http.StatusOK, entries)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	result, err := h.service.List(ctx, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
