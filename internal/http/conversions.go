package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/convert"
	"github.com/fyrsmithlabs/counselsim/internal/logging"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
)

// ConvertRequest is the request body for POST /api/v1/conversions. Either
// case_id or an inline record selects the input. A nil max_retries uses
// the converter default.
type ConvertRequest struct {
	CaseID     string         `json:"case_id,omitempty"`
	Record     map[string]any `json:"record,omitempty"`
	MaxRetries *int           `json:"max_retries,omitempty"`
}

// ConversionFailure is the response body when the repair budget runs out.
type ConversionFailure struct {
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
	Detail   string `json:"detail"`
}

// handleConvert converts a case record into the structured output format.
func (s *Server) handleConvert(c echo.Context) error {
	ctx := c.Request().Context()
	log := logging.FromContext(ctx)

	var req ConvertRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid conversion request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	record := map[string]any(nil)
	switch {
	case req.CaseID != "" && len(req.Record) > 0:
		return echo.NewHTTPError(http.StatusBadRequest, "case_id and record are mutually exclusive")
	case req.CaseID != "":
		rec, err := s.lookupCase(req.CaseID)
		if err != nil {
			return err
		}
		record = rec
	case len(req.Record) > 0:
		record = req.Record
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "either case_id or record is required")
	}

	systemPrompt, ok := s.prompts.Get(prompt.TemplateConvertSystem)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "conversion prompt not configured")
	}

	maxRetries := -1
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "max_retries must be non-negative")
		}
		maxRetries = *req.MaxRetries
	}

	out, err := s.converter.Convert(ctx, record, systemPrompt, maxRetries)
	if err != nil {
		var failed *convert.FailedError
		if errors.As(err, &failed) {
			return c.JSON(http.StatusUnprocessableEntity, ConversionFailure{
				Error:    "conversion failed",
				Attempts: failed.Attempts,
				Detail:   failed.Last.Error(),
			})
		}
		log.Error("conversion call failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "conversion call failed")
	}

	return c.JSON(http.StatusOK, out)
}
