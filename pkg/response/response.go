package response

import (
	"errors"
	"net/http"

	"casino-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the error envelope: a single human-readable message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse carries informational success messages.
type MessageResponse struct {
	Message string `json:"message"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Accepted sends a 202 response with data. Used for withdrawals that
// wait for authorization.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, data)
}

// Message sends a 200 response with a message body.
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MessageResponse{Message: msg})
}

// Error sends an error response. It checks if err is an
// *apperror.AppError and maps it accordingly, otherwise returns 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorResponse{Error: appErr.Message})
		return
	}

	// Unknown error -> 500
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Error interno del servidor"})
}
