package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/application/orchestrator"
	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// RunStatus is the run snapshot returned by the run endpoints. Logs are
// newest first, the order clients display them in.
type RunStatus struct {
	RunID     string            `json:"run_id"`
	State     domain.State      `json:"state"`
	Progress  float64           `json:"progress"`
	Artifacts *domain.Artifacts `json:"artifacts"`
	Logs      []string          `json:"logs"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeError maps a domain error to its HTTP shape. Unauthorized splits on
// whether the caller presented an identity at all.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{Code: "VALIDATION", Message: err.Error()},
		})
	case errors.Is(err, domain.ErrUnauthorized):
		status := http.StatusForbidden
		code := "FORBIDDEN"
		if identity(c) == "" {
			status = http.StatusUnauthorized
			code = "UNAUTHORIZED"
		}
		c.JSON(status, ErrorResponse{
			Error: ErrorDetail{Code: code, Message: err.Error()},
		})
	case errors.Is(err, domain.ErrNotReady):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{Code: "NOT_READY", Message: err.Error()},
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{Code: "NOT_FOUND", Message: err.Error()},
		})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{Code: "INVALID_STATE", Message: err.Error()},
		})
	default:
		s.logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Code: "INTERNAL", Message: "internal error"},
		})
	}
}

func (s *Server) writeBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{Code: "INVALID_REQUEST", Message: message},
	})
}

func runStatus(run *domain.Run) RunStatus {
	artifacts := run.Artifacts
	return RunStatus{
		RunID:     run.ID,
		State:     run.State,
		Progress:  run.Progress,
		Artifacts: &artifacts,
		Logs:      run.LogsNewestFirst(),
	}
}

// handleHealth reports liveness and orchestrator readiness.
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if !s.manager.Ready() {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": gin.H{
			"orchestrator": status,
			"active_runs":  s.manager.ActiveRuns(),
		},
	})
}

// handleMintToken issues a development bearer token.
func (s *Server) handleMintToken(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err.Error())
		return
	}

	token, expiresAt, err := s.auth.Issue(req.UserID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// handleCreateRun creates a run and starts its pipeline.
func (s *Server) handleCreateRun(c *gin.Context) {
	var spec domain.RunSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		s.writeBadRequest(c, err.Error())
		return
	}

	run, err := s.manager.CreateRun(c.Request.Context(), spec, identity(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, runStatus(run))
}

// handleGetRun returns the run snapshot.
func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.manager.GetRun(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, runStatus(run))
}

// handleListRuns returns the caller's run summaries, newest first.
func (s *Server) handleListRuns(c *gin.Context) {
	summaries, err := s.manager.ListRuns(c.Request.Context(), identity(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if summaries == nil {
		summaries = []ports.RunSummary{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": summaries})
}

// handleDeleteRun removes a run and its catalog rows.
func (s *Server) handleDeleteRun(c *gin.Context) {
	runID := c.Param("run_id")
	if err := s.manager.DeleteRun(c.Request.Context(), runID, identity(c)); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"status": "deleted",
	})
}

// handleCancelRun cancels a run from any non-terminal state.
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("run_id")
	if err := s.manager.Cancel(c.Request.Context(), runID, identity(c)); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"state":  domain.StateCancelled,
	})
}

// handleGetPlot returns the plot artifact for review.
func (s *Server) handleGetPlot(c *gin.Context) {
	runID := c.Param("run_id")

	plot, err := s.manager.Plot(c.Request.Context(), runID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	run, err := s.manager.GetRun(c.Request.Context(), runID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"plot":   plot,
		"mode":   run.Spec.Mode,
	})
}

// plotConfirmRequest is the tagged plot checkpoint payload: the decision
// field makes edited and unedited confirms explicit.
type plotConfirmRequest struct {
	Decision string       `json:"decision"`
	Plot     *domain.Plot `json:"plot,omitempty"`
}

// handleConfirmPlot resolves the plot checkpoint.
func (s *Server) handleConfirmPlot(c *gin.Context) {
	var req plotConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err.Error())
		return
	}

	var confirm orchestrator.PlotConfirm
	switch req.Decision {
	case "unedited":
	case "edited":
		if req.Plot == nil {
			s.writeBadRequest(c, "edited confirm requires a plot payload")
			return
		}
		confirm = orchestrator.PlotConfirm{Edited: true, Plot: req.Plot}
	default:
		s.writeBadRequest(c, `decision must be "unedited" or "edited"`)
		return
	}

	if err := s.manager.ConfirmPlot(c.Request.Context(), c.Param("run_id"), identity(c), confirm); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Plot confirmed, proceeding to asset generation",
	})
}

// handleRegeneratePlot discards the plot and re-runs the plot stage.
func (s *Server) handleRegeneratePlot(c *gin.Context) {
	if err := s.manager.RegeneratePlot(c.Request.Context(), c.Param("run_id"), identity(c)); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Plot regeneration started",
	})
}

// handleGetAssets returns the scene assets and bgm for review.
func (s *Server) handleGetAssets(c *gin.Context) {
	runID := c.Param("run_id")

	scenes, bgm, err := s.manager.Assets(c.Request.Context(), runID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if scenes == nil {
		scenes = []domain.SceneAsset{}
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"scenes": scenes,
		"bgm":    bgm,
	})
}

// handleConfirmAssets releases the asset checkpoint.
func (s *Server) handleConfirmAssets(c *gin.Context) {
	if err := s.manager.ConfirmAssets(c.Request.Context(), c.Param("run_id"), identity(c)); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "confirmed",
		"next_state": domain.StateLayoutReview,
	})
}

// promptRequest carries the optional replacement prompt of a regeneration.
type promptRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) bindOptionalPrompt(c *gin.Context) (string, bool) {
	if c.Request.ContentLength == 0 {
		return "", true
	}
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err.Error())
		return "", false
	}
	return req.Prompt, true
}

// handleRegenerateImage replaces one scene's image.
func (s *Server) handleRegenerateImage(c *gin.Context) {
	prompt, ok := s.bindOptionalPrompt(c)
	if !ok {
		return
	}

	url, err := s.manager.RegenerateSceneImage(c.Request.Context(),
		c.Param("run_id"), identity(c), c.Param("scene_id"), prompt)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "regenerated",
		"image_url": url,
	})
}

// handleRegenerateBGM replaces the background music.
func (s *Server) handleRegenerateBGM(c *gin.Context) {
	prompt, ok := s.bindOptionalPrompt(c)
	if !ok {
		return
	}

	url, err := s.manager.RegenerateBGM(c.Request.Context(),
		c.Param("run_id"), identity(c), prompt)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "regenerated",
		"audio_url": url,
	})
}

// handleGetLayout returns the layout config and title for review.
func (s *Server) handleGetLayout(c *gin.Context) {
	runID := c.Param("run_id")

	layout, title, err := s.manager.Layout(c.Request.Context(), runID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":        runID,
		"layout_config": layout,
		"title":         title,
	})
}

// layoutConfirmRequest is the tagged layout checkpoint payload.
type layoutConfirmRequest struct {
	Decision string               `json:"decision"`
	Layout   *domain.LayoutConfig `json:"layout_config,omitempty"`
	Title    string               `json:"title,omitempty"`
}

// handleConfirmLayout resolves the layout checkpoint.
func (s *Server) handleConfirmLayout(c *gin.Context) {
	var req layoutConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, err.Error())
		return
	}

	var confirm orchestrator.LayoutConfirm
	switch req.Decision {
	case "unedited":
	case "edited":
		if req.Layout == nil && req.Title == "" {
			s.writeBadRequest(c, "edited confirm requires layout_config or title")
			return
		}
		confirm = orchestrator.LayoutConfirm{Edited: true, Layout: req.Layout, Title: req.Title}
	default:
		s.writeBadRequest(c, `decision must be "unedited" or "edited"`)
		return
	}

	if err := s.manager.ConfirmLayout(c.Request.Context(), c.Param("run_id"), identity(c), confirm); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Layout confirmed, proceeding to rendering",
	})
}

// handleRegenerateLayout discards the assets and re-runs the asset stage.
func (s *Server) handleRegenerateLayout(c *gin.Context) {
	if err := s.manager.RegenerateLayout(c.Request.Context(), c.Param("run_id"), identity(c)); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Asset regeneration started",
	})
}
