package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/marketingest/internal/ingestion/application"
)

type IngestionHandler struct {
	service *application.IngestionService
}

func NewIngestionHandler(service *application.IngestionService) *IngestionHandler {
	return &IngestionHandler{service: service}
}

func (h *IngestionHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/v1/ingestion")
	{
		v1.POST("/jobs", h.SubmitJob)
		v1.GET("/jobs", h.ListJobs)
		v1.GET("/jobs/:id", h.GetJob)
		v1.POST("/jobs/:id/cancel", h.CancelJob)
		v1.DELETE("/jobs/:id", h.DeleteJob)
	}
}

func (h *IngestionHandler) SubmitJob(c *gin.Context) {
	var cmd application.SubmitJobCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := h.service.SubmitJob(c.Request.Context(), cmd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (h *IngestionHandler) GetJob(c *gin.Context) {
	jobID := c.Param("id")

	dto, err := h.service.GetJob(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if dto == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *IngestionHandler) ListJobs(c *gin.Context) {
	dtos, err := h.service.ListJobs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": dtos, "count": len(dtos)})
}

func (h *IngestionHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("id")

	if err := h.service.CancelJob(c.Request.Context(), jobID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": "cancelling"})
}

func (h *IngestionHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("id")

	if err := h.service.DeleteJob(c.Request.Context(), jobID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}
