package handler

import (
	"net/http"

	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// writeError maps usecase error kinds to statuses. Anything else is a 500
// and its text is not sent to the client.
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if oe, ok := usecase.AsOrderError(err); ok && oe.Kind != usecase.KindInternal {
		return c.JSON(oe.Kind.HTTPStatus(), ErrorResponse{Error: oe.Message})
	}

	log.WithError(err).WithFields(log.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).Error("request failed")
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
