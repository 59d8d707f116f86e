package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	apperrors "github.com/hrygo/homesense/internal/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

var statusByCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeInvalidArgument:    http.StatusBadRequest,
	apperrors.ErrCodeRateLimitExceeded:  http.StatusTooManyRequests,
	apperrors.ErrCodeAdapterUnavailable: http.StatusServiceUnavailable,
	apperrors.ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	apperrors.ErrCodeAdapterFailed:      http.StatusBadGateway,
	apperrors.ErrCodeTimeout:            http.StatusGatewayTimeout,
	apperrors.ErrCodeContextCanceled:    http.StatusRequestTimeout,
}

// httpStatus maps an error to a status code and its error code.
func httpStatus(err error) (int, apperrors.ErrorCode) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, apperrors.ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, apperrors.ErrCodeContextCanceled
	}
	code := apperrors.GetCodeFromError(err, "INTERNAL")
	if status, ok := statusByCode[code]; ok {
		return status, code
	}
	return http.StatusInternalServerError, code
}

func writeError(c echo.Context, err error) error {
	status, code := httpStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "code", code, "error", err)
	}
	return c.JSON(status, ErrorResponse{Code: string(code), Error: err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return writeError(c, apperrors.InvalidArgument(msg, nil))
}
