// Package response defines the JSON envelope and error-to-status mapping
// used by all handlers.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/widgetworks/service-subscription/internal/apperror"
)

// Success writes a 200 with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Created writes a 201 with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// BadRequest writes a 400 with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// Error maps an application error onto an HTTP status. NotFound → 404,
// Conflict → 409, Validation → 400; everything else is a 500 with the
// detail kept out of the body.
func Error(c *gin.Context, err error) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperror.KindNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": appErr.Message})
		case apperror.KindConflict:
			c.JSON(http.StatusConflict, gin.H{"error": appErr.Error()})
		case apperror.KindValidation:
			c.JSON(http.StatusBadRequest, gin.H{"error": appErr.Message})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
