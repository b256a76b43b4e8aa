package handlers

import (
	"github.com/gin-gonic/gin"

	"logibill/internal/domain/auth"
	"logibill/internal/infrastructure/http/v1/dto"
)

// AuthHandler handles token issuance.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Token handles POST /auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if !h.BindJSON(c, &req) {
		return
	}

	token, err := h.service.IssueToken(c.Request.Context(), req.ClientID, req.ClientSecret)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromToken(token))
}
