package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	dom "taskmanager/internal/domain"
	"taskmanager/internal/dto"

	"github.com/gin-gonic/gin"
)

const msgInternal = "Internal Server Error"

// Responder writes envelopes and maps domain errors to status codes.
type Responder struct {
	log        *slog.Logger
	production bool
}

// NewResponder returns a Responder. In production, 500 responses carry no error detail.
func NewResponder(log *slog.Logger, production bool) *Responder {
	if log == nil {
		log = slog.Default()
	}
	return &Responder{log: log, production: production}
}

func (r *Responder) OK(c *gin.Context, status int, data any) {
	c.JSON(status, dto.OK(data))
}

// Message sends a successful envelope with only a message.
func (r *Responder) Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, dto.Envelope{Success: true, Message: msg})
}

// BadRequest reports a body or query that could not be decoded.
func (r *Responder) BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.Fail(fmt.Sprintf("Invalid request body: %v", err)))
}

// Error writes err with the status of its domain kind.
func (r *Responder) Error(c *gin.Context, err error) {
	status := StatusFor(err)
	if status != http.StatusInternalServerError {
		c.JSON(status, dto.Fail(dom.Message(err)))
		return
	}

	r.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	env := dto.Fail(msgInternal)
	if !r.production {
		env.Error = err.Error()
	}
	c.JSON(status, env)
}

// StatusFor maps the domain error taxonomy to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, dom.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, dom.ErrMissingCredential),
		errors.Is(err, dom.ErrInvalidToken),
		errors.Is(err, dom.ErrExpiredToken),
		errors.Is(err, dom.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, dom.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, dom.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dom.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
