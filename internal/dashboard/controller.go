package dashboard

import (
	"strconv"

	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Controller handles dashboard HTTP endpoints.
type Controller struct {
	service *Service
}

// NewController creates a new Controller.
func NewController(service *Service) *Controller {
	return &Controller{service: service}
}

// RegisterRoutes mounts the dashboard endpoints on the given router group.
func (h *Controller) RegisterRoutes(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	users.GET("/:id/stats", h.GetUserStats)
}

// GetUserStats returns per-difficulty solve totals for one user.
func (h *Controller) GetUserStats(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid user id")
		return
	}

	stats, err := h.service.GetUserStats(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
