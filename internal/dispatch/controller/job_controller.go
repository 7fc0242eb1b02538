package controller

import (
	"time"

	"codearena/internal/dispatch/service"
	judgemodel "codearena/internal/judge/model"
	"codearena/internal/queue"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JobController handles execution scheduling and queue admin endpoints.
type JobController struct {
	dispatch *service.DispatchService
}

// NewJobController creates a new JobController.
func NewJobController(dispatch *service.DispatchService) *JobController {
	return &JobController{dispatch: dispatch}
}

// RegisterRoutes mounts the job endpoints on the given router group.
func (h *JobController) RegisterRoutes(rg *gin.RouterGroup) {
	jobs := rg.Group("/jobs")
	jobs.POST("/execute/:type", h.Execute)
	jobs.GET("/status/:jobId", h.Status)
	jobs.GET("/queue/stats", h.QueueStats)

	admin := jobs.Group("/queue")
	admin.POST("/pause", h.Pause)
	admin.POST("/resume", h.Resume)
	admin.POST("/clean", h.Clean)
	admin.POST("/drain", h.Drain)
	jobs.POST("/retry/:jobId", h.Retry)
	jobs.DELETE("/remove/:jobId", h.Remove)
}

// ExecuteRequest defines the execution scheduling payload.
type ExecuteRequest struct {
	ProblemID int64  `json:"problem_id" binding:"required"`
	UserID    int64  `json:"user_id"`
	Runtime   string `json:"runtime" binding:"required"`
	Code      string `json:"code" binding:"required"`
}

// ExecuteResponse carries the scheduled job identity.
type ExecuteResponse struct {
	JobID string      `json:"job_id"`
	State queue.State `json:"state"`
}

// Execute schedules a public or full execution of submitted code.
func (h *JobController) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	job, err := h.dispatch.Execute(c.Request.Context(), service.ExecuteInput{
		ProblemID: req.ProblemID,
		UserID:    req.UserID,
		Runtime:   req.Runtime,
		Code:      req.Code,
		Mode:      judgemodel.ExecutionMode(c.Param("type")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, ExecuteResponse{JobID: job.ID, State: job.State})
}

// Status returns the current status of one job.
func (h *JobController) Status(c *gin.Context) {
	status, err := h.dispatch.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// QueueStats returns per-state queue counts.
func (h *JobController) QueueStats(c *gin.Context) {
	counts, err := h.dispatch.QueueStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, counts)
}

// Pause halts job consumption.
func (h *JobController) Pause(c *gin.Context) {
	if err := h.dispatch.Pause(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Queue paused", nil)
}

// Resume restarts job consumption.
func (h *JobController) Resume(c *gin.Context) {
	if err := h.dispatch.Resume(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Queue resumed", nil)
}

// CleanRequest selects which terminal jobs to delete.
type CleanRequest struct {
	State      string `json:"state" binding:"required"`
	AgeSeconds int64  `json:"age_seconds"`
}

// Clean removes terminal jobs older than the given age.
func (h *JobController) Clean(c *gin.Context) {
	var req CleanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	removed, err := h.dispatch.Clean(c.Request.Context(),
		time.Duration(req.AgeSeconds)*time.Second, queue.State(req.State))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"removed": removed})
}

// Drain removes every job not currently executing.
func (h *JobController) Drain(c *gin.Context) {
	if err := h.dispatch.Drain(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Queue drained", nil)
}

// Retry requeues one failed job.
func (h *JobController) Retry(c *gin.Context) {
	if err := h.dispatch.Retry(c.Request.Context(), c.Param("jobId")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Job requeued", nil)
}

// Remove deletes a job that has not started yet.
func (h *JobController) Remove(c *gin.Context) {
	if err := h.dispatch.Remove(c.Request.Context(), c.Param("jobId")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Job removed", nil)
}
