package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/pkg/apperr"
)

// OK sends a 200 envelope. Extra keys are merged next to "success".
func OK(c *gin.Context, fields gin.H) {
	c.JSON(http.StatusOK, envelope(true, fields))
}

// Data sends {success:true, data}.
func Data(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created sends a 201 envelope with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// Error maps err to its status and sends {success:false, error}.
func Error(c *gin.Context, err error) {
	Fail(c, apperr.Status(err), apperr.Message(err))
}

// Fail sends {success:false, error} with an explicit status.
func Fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

// BadRequest sends a 400 envelope.
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 envelope.
func Unauthorized(c *gin.Context) {
	Fail(c, http.StatusUnauthorized, "authentication required")
}

// Forbidden sends a 403 envelope.
func Forbidden(c *gin.Context, message string) {
	Fail(c, http.StatusForbidden, message)
}

// NotFound sends a 404 envelope.
func NotFound(c *gin.Context) {
	Fail(c, http.StatusNotFound, "not found")
}

// MethodNotAllowed sends a 405 envelope.
func MethodNotAllowed(c *gin.Context) {
	Fail(c, http.StatusMethodNotAllowed, "method not allowed")
}

// TooManyRequests sends a 429 envelope.
func TooManyRequests(c *gin.Context, message string) {
	Fail(c, http.StatusTooManyRequests, message)
}

func envelope(success bool, fields gin.H) gin.H {
	out := gin.H{"success": success}
	for k, v := range fields {
		if k == "success" {
			continue
		}
		out[k] = v
	}
	return out
}
