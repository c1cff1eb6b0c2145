// Package service builds Adyen session requests and classifies their outcome.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"adyen-session-proxy/internal/client"
	"adyen-session-proxy/internal/config"
	"adyen-session-proxy/internal/metrics"
	"adyen-session-proxy/internal/model"
)

// ErrTransport is returned when Adyen could not be reached or no complete
// response was received.
var ErrTransport = errors.New("upstream request failed")

// UpstreamError is a non-2xx response delivered by Adyen.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	// PSPReference is Adyen's trace id for the failed call, if sent.
	PSPReference string

	payload map[string]any
}

func newUpstreamError(resp *model.UpstreamResponse) *UpstreamError {
	e := &UpstreamError{
		StatusCode:   resp.StatusCode,
		Body:         resp.Body,
		PSPReference: resp.Header.Get("pspReference"),
	}
	_ = json.Unmarshal(resp.Body, &e.payload)
	return e
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("adyen returned status %d: %s", e.StatusCode, e.Code())
}

// Message is the upstream "message", or a generic fallback.
func (e *UpstreamError) Message() string {
	if s, ok := e.payload["message"].(string); ok && s != "" {
		return s
	}
	return "Unknown API error"
}

// Code is the upstream "errorCode", or API_ERROR.
func (e *UpstreamError) Code() string {
	if s, ok := e.payload["errorCode"].(string); ok && s != "" {
		return s
	}
	return model.CodeAPIError
}

// SessionResult is a successfully created upstream session.
type SessionResult struct {
	StatusCode int
	Data       json.RawMessage
	Reference  string
	SessionID  string
}

// SessionService creates Adyen payment sessions on behalf of the browser.
type SessionService struct {
	client       *client.AdyenClient
	cfg          *config.Config
	logger       *slog.Logger
	metrics      *metrics.Metrics
	newReference ReferenceFunc
}

// NewSessionService creates a SessionService.
// The metrics parameter is optional; pass nil to disable outcome recording.
func NewSessionService(c *client.AdyenClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*SessionService, error) {
	ref, err := referenceFor(cfg.Adyen.ReferenceScheme)
	if err != nil {
		return nil, fmt.Errorf("session service: %w", err)
	}

	return &SessionService{
		client:       c,
		cfg:          cfg,
		logger:       logger.With("component", "session_service"),
		metrics:      m,
		newReference: ref,
	}, nil
}

// BuildUpstreamRequest derives the Adyen body from a validated request and
// the configured merchant account and return URL.
func (s *SessionService) BuildUpstreamRequest(req model.SessionRequest) *model.UpstreamSessionRequest {
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = s.cfg.Adyen.DefaultReturnURL
	}

	return &model.UpstreamSessionRequest{
		MerchantAccount: s.cfg.Adyen.MerchantAccount,
		Amount: model.Amount{
			Value:    req.Amount,
			Currency: req.Currency,
		},
		ReturnURL:   returnURL,
		Reference:   s.newReference(),
		CountryCode: req.CountryCode,
	}
}

// Create performs exactly one upstream call. It returns *UpstreamError when
// Adyen answered with a non-2xx status and an error wrapping ErrTransport
// when no response was received. Nothing is retried.
func (s *SessionService) Create(ctx context.Context, req model.SessionRequest) (*SessionResult, error) {
	body := s.BuildUpstreamRequest(req)

	s.logger.Debug("creating adyen session",
		"merchant_account", body.MerchantAccount,
		"amount", body.Amount.Value,
		"currency", body.Amount.Currency,
		"country_code", body.CountryCode,
		"return_url", body.ReturnURL,
		"reference", body.Reference,
	)

	resp, err := s.client.CreateSession(ctx, body)
	if err != nil {
		s.metrics.ObserveSession(metrics.OutcomeTransportError)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.metrics.ObserveSession(metrics.OutcomeUpstreamError)
		ue := newUpstreamError(resp)
		s.logger.Warn("adyen rejected session request",
			"status", ue.StatusCode,
			"code", ue.Code(),
			"psp_reference", ue.PSPReference,
			"reference", body.Reference,
		)
		return nil, ue
	}

	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(resp.Body, &created)

	s.metrics.ObserveSession(metrics.OutcomeCreated)
	s.logger.Info("adyen session created",
		"session_id", created.ID,
		"reference", body.Reference,
		"status", resp.StatusCode,
	)

	return &SessionResult{
		StatusCode: resp.StatusCode,
		Data:       model.RawJSON(resp.Body),
		Reference:  body.Reference,
		SessionID:  created.ID,
	}, nil
}
