package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"adyen-session-proxy/internal/metrics"
	"adyen-session-proxy/internal/model"
	"adyen-session-proxy/internal/service"
)

// SessionHandler exposes Adyen session creation to the browser.
type SessionHandler struct {
	service *service.SessionService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewSessionHandler creates a SessionHandler.
// The metrics parameter is optional; pass nil to disable outcome recording.
func NewSessionHandler(svc *service.SessionService, logger *slog.Logger, m *metrics.Metrics) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  logger.With("component", "session_handler"),
		metrics: m,
	}
}

// Create validates the browser request, forwards it to Adyen once and relays the outcome.
func (h *SessionHandler) Create(c echo.Context) error {
	req := c.Request()

	h.logger.Info("session creation request",
		"origin", req.Header.Get(echo.HeaderOrigin),
		"user_agent", req.UserAgent(),
	)

	// Only JSON bodies are parsed; anything else counts as an empty object.
	var body []byte
	if isJSON(req.Header.Get(echo.HeaderContentType)) {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			// Body limit exceeded or client went away; let the error handler render it.
			return err
		}
	}

	sr, err := model.DecodeSessionRequest(body)
	if err != nil {
		h.metrics.ObserveSession(metrics.OutcomeInvalidRequest)
		if errors.Is(err, model.ErrMalformedBody) {
			return fmt.Errorf("decode session request: %w", err)
		}
		return h.invalidRequest(c, err)
	}

	res, err := h.service.Create(req.Context(), sr)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusOK, model.SuccessResponse{
		Success: true,
		Data:    res.Data,
	})
}

func (h *SessionHandler) invalidRequest(c echo.Context, err error) error {
	h.logger.Warn("rejected session request", "err", err)

	if errors.Is(err, model.ErrInvalidAmount) {
		return c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "Invalid amount",
			Message: "amount must be a number in minor units",
			Code:    model.CodeInvalidAmount,
		})
	}
	return c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Error: "Amount is required",
		Code:  model.CodeMissingAmount,
	})
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == echo.MIMEApplicationJSON
}

func (h *SessionHandler) mapError(c echo.Context, err error) error {
	var ue *service.UpstreamError
	if errors.As(err, &ue) {
		h.logger.Error("error creating adyen session",
			"status", ue.StatusCode,
			"code", ue.Code(),
			"details", string(ue.Body),
		)
		return c.JSON(ue.StatusCode, model.ErrorResponse{
			Error:   "Adyen API Error",
			Message: ue.Message(),
			Code:    ue.Code(),
			Details: model.RawJSON(ue.Body),
		})
	}

	h.logger.Error("error creating adyen session", "err", err)
	return c.JSON(http.StatusInternalServerError, model.ErrorResponse{
		Error:   "Internal Server Error",
		Message: "Failed to create payment session",
		Code:    model.CodeInternalError,
	})
}
