package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"adyen-session-proxy/internal/model"
)

// ErrorHandler renders every error that escapes a handler as JSON.
// Unknown routes and unsupported methods both become 404 NOT_FOUND; other
// Echo HTTP errors keep their status; anything else is a 500.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := errorResponse(err, c.Request())
		if status >= http.StatusInternalServerError {
			logger.Error("unhandled error", "err", err, "path", c.Request().URL.Path)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error("writing error response", "err", werr)
		}
	}
}

func errorResponse(err error, req *http.Request) (int, model.ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			return http.StatusNotFound, model.ErrorResponse{
				Error:   "Not Found",
				Message: fmt.Sprintf("Route %s not found", req.RequestURI),
				Code:    model.CodeNotFound,
			}
		}
		if he.Code < http.StatusInternalServerError {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok && s != "" {
				msg = s
			}
			return he.Code, model.ErrorResponse{
				Error:   http.StatusText(he.Code),
				Message: msg,
				Code:    model.CodeInvalidRequest,
			}
		}
	}

	return http.StatusInternalServerError, model.ErrorResponse{
		Error:   "Internal Server Error",
		Message: "Something went wrong",
		Code:    model.CodeInternalError,
	}
}
