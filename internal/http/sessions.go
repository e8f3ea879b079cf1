package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/casedata"
	"github.com/fyrsmithlabs/counselsim/internal/logging"
	"github.com/fyrsmithlabs/counselsim/internal/session"
)

// CreateSessionRequest is the request body for POST /api/v1/sessions.
// Either case_id or both intake_form and reason identify the client.
type CreateSessionRequest struct {
	CaseID             string `json:"case_id,omitempty"`
	IntakeForm         string `json:"intake_form,omitempty"`
	Reason             string `json:"reason,omitempty"`
	FirstClientMessage string `json:"first_client_message,omitempty"`
}

// SessionResponse describes a session's current state.
type SessionResponse struct {
	SessionID string              `json:"session_id"`
	Phase     string              `json:"phase"`
	Technique *string             `json:"technique"`
	Plan      string              `json:"plan"`
	History   []session.Utterance `json:"history"`
}

// MessageRequest is the request body for POST /api/v1/sessions/:id/messages.
type MessageRequest struct {
	Message string `json:"message"`
}

// MessageResponse carries the counselor's reply to one client message.
type MessageResponse struct {
	Reply string `json:"reply"`
	Phase string `json:"phase"`
}

func sessionResponse(id string, sess *session.Session) SessionResponse {
	return SessionResponse{
		SessionID: id,
		Phase:     string(sess.Phase()),
		Technique: sess.Technique(),
		Plan:      sess.Plan(),
		History:   sess.History(),
	}
}

// handleCreateSession starts a counseling session and registers it.
func (s *Server) handleCreateSession(c echo.Context) error {
	ctx := c.Request().Context()
	log := logging.FromContext(ctx)

	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid session request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	intake, reason, err := s.resolveIntake(req)
	if err != nil {
		return err
	}

	sess := s.newSession()
	if err := sess.Start(ctx, intake, reason, req.FirstClientMessage); err != nil {
		if errors.Is(err, session.ErrPrecondition) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		log.Error("session start failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "planning call failed")
	}

	id := s.registry.Add(sess)
	log.Info("session created",
		zap.String("session_id", id),
		zap.String("case_id", req.CaseID),
	)

	return c.JSON(http.StatusCreated, sessionResponse(id, sess))
}

// resolveIntake produces the intake form and counseling reason from either
// a case reference or inline fields.
func (s *Server) resolveIntake(req CreateSessionRequest) (string, string, error) {
	if req.CaseID != "" {
		if req.IntakeForm != "" || req.Reason != "" {
			return "", "", echo.NewHTTPError(http.StatusBadRequest,
				"case_id and intake_form are mutually exclusive")
		}
		rec, err := s.lookupCase(req.CaseID)
		if err != nil {
			return "", "", err
		}
		intake, reason := casedata.IntakeReason(rec)
		return intake, reason, nil
	}

	if req.IntakeForm == "" || req.Reason == "" {
		return "", "", echo.NewHTTPError(http.StatusBadRequest,
			"either case_id or both intake_form and reason are required")
	}
	return req.IntakeForm, req.Reason, nil
}

// lookupCase resolves a case id against the loaded case file.
func (s *Server) lookupCase(id string) (casedata.Record, error) {
	if s.cases == nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "no case file loaded")
	}
	rec, err := s.cases.Lookup(id)
	if err != nil {
		var notFound *casedata.NotFoundError
		if errors.As(err, &notFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, notFound.Error())
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "case lookup failed")
	}
	return rec, nil
}

// handleSessionMessage steps the session with one client message.
func (s *Server) handleSessionMessage(c echo.Context) error {
	ctx := c.Request().Context()
	log := logging.FromContext(ctx)

	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid message request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}

	id := c.Param("id")
	var resp MessageResponse
	err := s.registry.Do(id, func(sess *session.Session) error {
		reply, err := sess.Step(ctx, req.Message)
		if err != nil {
			return err
		}
		resp = MessageResponse{Reply: reply, Phase: string(sess.Phase())}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		log.Error("session step failed", zap.String("session_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "counselor call failed")
	}

	return c.JSON(http.StatusOK, resp)
}

// handleGetSession returns the session's current state.
func (s *Server) handleGetSession(c echo.Context) error {
	id := c.Param("id")

	var resp SessionResponse
	err := s.registry.Do(id, func(sess *session.Session) error {
		resp = sessionResponse(id, sess)
		return nil
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	return c.JSON(http.StatusOK, resp)
}

// handleDeleteSession removes the session from the registry.
func (s *Server) handleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if !s.registry.Remove(id) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	logging.FromContext(c.Request().Context()).Info("session removed",
		zap.String("session_id", id))
	return c.NoContent(http.StatusNoContent)
}
