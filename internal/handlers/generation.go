package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lectoria/storyforge-backend/internal/services"
	"github.com/lectoria/storyforge-backend/internal/story"
)

type GenerationHandler struct {
	svc services.GenerationService
}

func NewGenerationHandler(svc services.GenerationService) *GenerationHandler {
	return &GenerationHandler{svc: svc}
}

type startGenerationRequest struct {
	Level string `json:"level" binding:"required"`
	Kind  string `json:"kind" binding:"required"`
	Theme string `json:"theme"`
}

// POST /api/generations
func (h *GenerationHandler) Start(c *gin.Context) {
	var body startGenerationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	level, err := story.ParseLevel(body.Level)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := story.ParseKind(body.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handle, err := h.svc.Start(c.Request.Context(), story.GenerationRequest{Level: level, Kind: kind}, body.Theme)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, handle)
}

// GET /api/generations/:id
func (h *GenerationHandler) Status(c *gin.Context) {
	status, err := h.svc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}
