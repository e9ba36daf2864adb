package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"backend/internal/service"
	"backend/pkg/response"
)

// writeError maps service sentinel errors to HTTP status codes and the
// machine-readable codes of the response envelope.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, response.CodeValidation, err.Error()))
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, response.CodeUnauthorized, err.Error()))
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, response.CodeForbidden, err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, response.CodeNotFound, err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, response.CodeConflict, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, response.CodeInternal, "internal server error"))
	}
}

// actorFromContext builds the acting user from the claims the auth
// middleware stored on the request context.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	rawID, _ := c.Get("userID")
	idStr, _ := rawID.(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, response.CodeUnauthorized, "invalid user identity"))
		return service.Actor{}, false
	}

	rawRole, _ := c.Get("userRole")
	role, _ := rawRole.(string)

	return service.Actor{ID: id, Role: role}, true
}
