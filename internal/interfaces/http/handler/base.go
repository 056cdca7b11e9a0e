// Package handler implements the HTTP API endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blingsync/backend/internal/domain/credential"
	"github.com/blingsync/backend/internal/domain/pricing"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
	"github.com/blingsync/backend/internal/interfaces/http/dto"
	"github.com/blingsync/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getTenantID extracts the authenticated tenant ID from the context
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	tenantID, ok := middleware.GetTenantID(c)
	if !ok {
		return uuid.Nil, errors.New("tenant not found in context")
	}
	return tenantID, nil
}

// parseIDParam parses a UUID path parameter
func parseIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// domainErrorCodes maps domain sentinel errors to API error codes. Order
// matters only for readability; errors.Is does the matching.
var domainErrorCodes = []struct {
	err  error
	code string
}{
	{syncdomain.ErrJobNotFound, dto.ErrCodeNotFound},
	{syncdomain.ErrConfigurationNotFound, dto.ErrCodeNotFound},
	{credential.ErrConnectionNotFound, dto.ErrCodeNotFound},
	{pricing.ErrConflictNotFound, dto.ErrCodeNotFound},
	{pricing.ErrPolicyNotFound, dto.ErrCodeNotFound},

	{syncdomain.ErrJobAlreadyRunning, dto.ErrCodeAlreadyExists},
	{credential.ErrConnectionAlreadyActive, dto.ErrCodeAlreadyExists},
	{credential.ErrVersionConflict, dto.ErrCodeConcurrencyConflict},

	{syncdomain.ErrJobTerminal, dto.ErrCodeInvalidState},
	{pricing.ErrConflictAlreadyResolved, dto.ErrCodeInvalidState},
	{credential.ErrInvalidStatusTransition, dto.ErrCodeInvalidState},
	{credential.ErrConnectionExpired, dto.ErrCodeConnectionUnusable},
	{credential.ErrConnectionRevoked, dto.ErrCodeConnectionUnusable},

	{pricing.ErrInvalidResolution, dto.ErrCodeInvalidInput},
	{pricing.ErrInvalidPolicyConfiguration, dto.ErrCodeInvalidInput},
	{pricing.ErrInvalidBaseline, dto.ErrCodeInvalidInput},
}

// HandleError converts domain errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	for _, mapping := range domainErrorCodes {
		if errors.Is(err, mapping.err) {
			h.Error(c, dto.GetHTTPStatus(mapping.code), mapping.code, err.Error())
			return
		}
	}
	h.InternalError(c, "An unexpected error occurred")
}
