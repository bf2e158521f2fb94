package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hxinn/amazon-listing-ai-assistant/internal/domain"
	"github.com/hxinn/amazon-listing-ai-assistant/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	orchestrator *usecase.Orchestrator
	syncService  *usecase.SyncService
	repo         domain.ResultRepository
	log          *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orchestrator *usecase.Orchestrator,
	syncService *usecase.SyncService,
	repo domain.ResultRepository,
	log *zap.Logger,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		syncService:  syncService,
		repo:         repo,
		log:          log.Named("http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "listing-verifier",
		"version": "1.0.0",
	})
}

// StartVerification launches a full verification run in the background.
func (h *Handler) StartVerification(c *gin.Context) {
	state := h.orchestrator.State()
	if state.Status == usecase.RunRunning {
		c.JSON(http.StatusConflict, gin.H{"error": domain.ErrRunActive.Error()})
		return
	}

	go func() {
		// The run outlives the request.
		if _, err := h.orchestrator.Run(context.Background()); err != nil {
			h.log.Error("verification run failed", zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// PauseVerification requests a cooperative pause of the current run.
func (h *Handler) PauseVerification(c *gin.Context) {
	if err := h.orchestrator.Cancel(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "pausing"})
}

// GetStatus returns the current run state snapshot.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.State())
}

// RetryFailed re-runs the pipeline for failed records in the background.
func (h *Handler) RetryFailed(c *gin.Context) {
	state := h.orchestrator.State()
	if state.Status == usecase.RunRunning {
		c.JSON(http.StatusConflict, gin.H{"error": domain.ErrRunActive.Error()})
		return
	}

	go func() {
		if _, err := h.orchestrator.RetryFailed(context.Background()); err != nil {
			h.log.Error("retry run failed", zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "retrying"})
}

// CleanupResults removes duplicates and re-normalizes every stored record.
func (h *Handler) CleanupResults(c *gin.Context) {
	removed, promoted, normalized, err := h.orchestrator.Cleanup(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrRunActive) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"duplicatesRemoved": removed,
		"promoted":          promoted,
		"normalized":        normalized,
	})
}

// GetResults returns the grouped projection of stored results.
func (h *Handler) GetResults(c *gin.Context) {
	groups, err := h.orchestrator.Results(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": groups})
}

// GetStats returns aggregate store statistics.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// DeleteResult removes one result by its composite ID.
func (h *Handler) DeleteResult(c *gin.Context) {
	id := c.Param("id")
	if err := h.repo.DeleteByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrResultNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// SyncAll submits every grouped completed result to the remote system.
func (h *Handler) SyncAll(c *gin.Context) {
	report, err := h.syncService.SyncAll(c.Request.Context())
	if err != nil && report == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
