package controller

import (
	"strconv"

	"codearena/internal/problem/model"
	"codearena/internal/problem/service"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ProblemController handles problem HTTP endpoints.
type ProblemController struct {
	problemService *service.ProblemService
}

// NewProblemController creates a new ProblemController.
func NewProblemController(problemService *service.ProblemService) *ProblemController {
	return &ProblemController{problemService: problemService}
}

// RegisterRoutes mounts the problem endpoints on the given router group.
func (h *ProblemController) RegisterRoutes(rg *gin.RouterGroup) {
	problems := rg.Group("/problems")
	problems.POST("", h.Create)
	problems.GET("", h.List)
	problems.GET("/:id", h.Get)
	problems.PATCH("/:id", h.Update)
	problems.DELETE("/:id", h.Delete)
	problems.GET("/:id/boilerplate/:language", h.GetBoilerplate)
}

// Create handles problem creation.
func (h *ProblemController) Create(c *gin.Context) {
	var req model.CreateProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	problem, err := h.problemService.CreateProblem(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, problem)
}

// Get handles problem query. A numeric path segment looks up by id,
// anything else by slug.
func (h *ProblemController) Get(c *gin.Context) {
	raw := c.Param("id")
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		problem, err := h.problemService.GetProblem(c.Request.Context(), id)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, problem)
		return
	}

	problem, err := h.problemService.GetProblemBySlug(c.Request.Context(), raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, problem)
}

// List handles paged problem listing.
func (h *ProblemController) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	problems, err := h.problemService.ListProblems(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, problems)
}

// Update handles partial problem updates.
func (h *ProblemController) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req model.UpdateProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	problem, err := h.problemService.UpdateProblem(c.Request.Context(), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, problem)
}

// Delete handles problem deletion.
func (h *ProblemController) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.problemService.DeleteProblem(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Delete success", nil)
}

// GetBoilerplate returns the starter code for one language.
func (h *ProblemController) GetBoilerplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	snippet, err := h.problemService.GetBoilerplate(c.Request.Context(), id, c.Param("language"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, snippet)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid problem id")
		return 0, false
	}
	return id, true
}
