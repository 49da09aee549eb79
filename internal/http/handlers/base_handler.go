// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"roadaid/internal/modules/assignment"
	"roadaid/internal/modules/request"
	"roadaid/internal/modules/sos"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeRequestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, request.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, request.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, request.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, request.ErrInvalidState), errors.Is(err, request.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeAssignmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, assignment.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, assignment.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, assignment.ErrInvalidState), errors.Is(err, assignment.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeSOSError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sos.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, sos.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, sos.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, sos.ErrInvalidState), errors.Is(err, sos.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
