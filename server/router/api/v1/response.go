package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meetwhenah/meetwhenah/internal/apperr"
)

// errorJSON renders an error as {"error": "<kind>: <msg>"} with the status
// the kind maps to. Causes wrapped inside an apperr are not exposed.
func errorJSON(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	msg := "internal error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		msg = appErr.Msg
	}
	return c.JSON(statusOf(kind), map[string]any{
		"error": fmt.Sprintf("%s: %s", kind, msg),
	})
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidState:
		return http.StatusConflict
	case apperr.Unauthorized:
		return http.StatusForbidden
	case apperr.Conflict:
		// Idempotent re-apply reads as success; handlers that want a
		// richer body intercept the kind before calling errorJSON.
		return http.StatusOK
	case apperr.Transient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func okJSON(c echo.Context, fields map[string]any) error {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(http.StatusOK, body)
}
