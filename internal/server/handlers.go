package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deliverd/internal/errclass"
	"github.com/fyrsmithlabs/deliverd/internal/fixtree"
	"github.com/fyrsmithlabs/deliverd/internal/flow"
	"github.com/fyrsmithlabs/deliverd/internal/risk"
)

// handleCreateFlow creates a delivery flow. POST /api/v1/flows.
func (s *Server) handleCreateFlow(c echo.Context) error {
	var cfg flow.Config
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	f, err := s.deps.Orchestrator.CreateFlow(c.Request().Context(), cfg)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, f)
}

// handleListFlows lists all flows. GET /api/v1/flows.
func (s *Server) handleListFlows(c echo.Context) error {
	flows, err := s.deps.Orchestrator.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list flows failed")
	}
	return c.JSON(http.StatusOK, flows)
}

// handleGetFlow returns one flow. GET /api/v1/flows/:id.
func (s *Server) handleGetFlow(c echo.Context) error {
	f, err := s.deps.Orchestrator.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return flowError(err)
	}
	return c.JSON(http.StatusOK, f)
}

// handleGetTimeline returns a flow's timeline. GET /api/v1/flows/:id/timeline.
func (s *Server) handleGetTimeline(c echo.Context) error {
	f, err := s.deps.Orchestrator.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return flowError(err)
	}
	return c.JSON(http.StatusOK, f.Timeline)
}

// ExecuteAccepted is the response body for POST /api/v1/flows/:id/execute.
type ExecuteAccepted struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleExecuteFlow starts executing a flow in the background and returns
// 202. Progress is visible via GET /flows/:id and the timeline.
func (s *Server) handleExecuteFlow(c echo.Context) error {
	id := c.Param("id")
	f, err := s.deps.Orchestrator.Get(c.Request().Context(), id)
	if err != nil {
		return flowError(err)
	}
	if f.Status.IsTerminal() {
		return echo.NewHTTPError(http.StatusConflict, "flow is terminal")
	}

	// Detached from the request: the delivery outlives this HTTP call.
	go func() {
		if _, err := s.deps.Orchestrator.ExecuteFlow(context.Background(), id, nil); err != nil {
			s.logger.Warn("flow execution ended with error",
				zap.String("flow_id", id),
				zap.Error(err))
		}
	}()
	return c.JSON(http.StatusAccepted, ExecuteAccepted{ID: id, Status: "executing"})
}

// handlePauseFlow pauses a flow before its next phase. POST /api/v1/flows/:id/pause.
func (s *Server) handlePauseFlow(c echo.Context) error {
	f, err := s.deps.Orchestrator.Pause(c.Request().Context(), c.Param("id"))
	if err != nil {
		return flowError(err)
	}
	return c.JSON(http.StatusOK, f)
}

// handleResumeFlow resumes a paused flow. POST /api/v1/flows/:id/resume.
func (s *Server) handleResumeFlow(c echo.Context) error {
	f, err := s.deps.Orchestrator.Resume(c.Request().Context(), c.Param("id"))
	if err != nil {
		return flowError(err)
	}
	return c.JSON(http.StatusOK, f)
}

// ClassifyRequest is the request body for POST /api/v1/errors/classify.
type ClassifyRequest struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// handleClassify classifies a raw error. Classification is total, so this
// endpoint always answers 200 for a well-formed request.
func (s *Server) handleClassify(c echo.Context) error {
	var req ClassifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ce := s.deps.Rules.Classifier().Classify(errclass.RawError{
		Code:    req.Code,
		Message: req.Message,
		Stack:   req.Stack,
	})
	return c.JSON(http.StatusOK, ce)
}

// handleStartFix classifies the error and starts a fix session in the
// background. POST /api/v1/fix, answers 202 with the fixing-status session.
func (s *Server) handleStartFix(c echo.Context) error {
	var req ClassifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" && req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code or message is required")
	}
	ce := s.deps.Rules.Classifier().Classify(errclass.RawError{
		Code:    req.Code,
		Message: req.Message,
		Stack:   req.Stack,
	})
	sess, err := s.deps.Fix.StartFixAsync(c.Request().Context(), ce)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "start fix failed")
	}
	return c.JSON(http.StatusAccepted, sess)
}

// handleGetFix returns one fix session. GET /api/v1/fix/:id.
func (s *Server) handleGetFix(c echo.Context) error {
	sess, err := s.deps.Fix.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fixError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// handleEscalateFix escalates a fix session to a human operator.
// POST /api/v1/fix/:id/escalate.
func (s *Server) handleEscalateFix(c echo.Context) error {
	sess, err := s.deps.Fix.Escalate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fixError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// AssessRequest is the request body for POST /api/v1/risk/assess.
type AssessRequest struct {
	risk.Config
	// Now overrides the assessment time, mainly for reproducible requests.
	Now *time.Time `json:"now,omitempty"`
}

// AssessResponse pairs the detection with the compensation offer it
// unlocks, if any.
type AssessResponse struct {
	Detection    risk.Detection         `json:"detection"`
	Compensation *risk.CompensationPlan `json:"compensation,omitempty"`
}

// handleAssess runs a delay risk assessment. POST /api/v1/risk/assess.
func (s *Server) handleAssess(c echo.Context) error {
	var req AssessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProjectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id is required")
	}
	now := time.Now().UTC()
	if req.Now != nil {
		now = *req.Now
	}
	d := risk.DetectDelay(req.Config, now)
	plan := risk.CalculateCompensationWith(s.deps.Rules.Tiers(), d.DaysOverdue, d.DelayReasons)
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveAssessment(d)
	}
	return c.JSON(http.StatusOK, AssessResponse{Detection: d, Compensation: plan})
}

// flowError maps store and orchestrator errors onto HTTP status codes.
func flowError(err error) error {
	switch {
	case errors.Is(err, flow.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "flow not found")
	case errors.Is(err, flow.ErrFlowTerminal):
		return echo.NewHTTPError(http.StatusConflict, "flow is terminal")
	case errors.Is(err, flow.ErrFlowExecuting):
		return echo.NewHTTPError(http.StatusConflict, "flow is already executing")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// fixError maps fix session errors onto HTTP status codes.
func fixError(err error) error {
	switch {
	case errors.Is(err, fixtree.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "fix session not found")
	case errors.Is(err, fixtree.ErrSessionTerminal):
		return echo.NewHTTPError(http.StatusConflict, "fix session is terminal")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
