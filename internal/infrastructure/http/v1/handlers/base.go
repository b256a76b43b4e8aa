package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"logibill/internal/core/apperror"
	appctx "logibill/internal/core/context"
	"logibill/internal/core/numbering"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// DocumentType parses a document type, registering a validation error on failure.
func (h *BaseHandler) DocumentType(c *gin.Context, raw string) (numbering.DocumentType, bool) {
	t, err := numbering.ParseDocumentType(raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("unknown document type").
			WithDetail("type", raw).
			WithDetail("allowed", numbering.DocumentTypes))
		return "", false
	}
	return t, true
}

// Error registers err on the gin context and aborts.
// The JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// GetClientID extracts the authenticated client id.
func (h *BaseHandler) GetClientID(c *gin.Context) string {
	return appctx.GetClientID(c.Request.Context())
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}
