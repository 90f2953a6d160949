package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/service"
)

// codeInvalidBody and codeValidation are returned for requests rejected
// before they reach a service.
const (
	codeInvalidBody = "INVALID_BODY"
	codeValidation  = "VALIDATION_ERROR"
)

// statusFor maps a service error kind to an HTTP status.
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err as {error, code}.  Internal errors are logged
// and never leak their message.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	kind := service.KindOf(err)
	if kind == service.KindInternal {
		log.Error("request failed",
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error", "code": "INTERNAL"})
	}
	return c.JSON(statusFor(kind), echo.Map{"error": err.Error(), "code": service.CodeOf(err)})
}

func badRequest(c echo.Context, code, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": code})
}
