package handlers

import (
	"github.com/gin-gonic/gin"

	"logibill/internal/domain/numbering"
	"logibill/internal/infrastructure/http/v1/dto"
)

// NumberingHandler serves the numbering configuration store.
type NumberingHandler struct {
	*BaseHandler
	service *numbering.Service
}

// NewNumberingHandler creates a new numbering handler.
func NewNumberingHandler(base *BaseHandler, service *numbering.Service) *NumberingHandler {
	return &NumberingHandler{
		BaseHandler: base,
		service:     service,
	}
}

// ListConfigs handles GET /numbering/configs
func (h *NumberingHandler) ListConfigs(c *gin.Context) {
	cfgs, err := h.service.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromConfigs(cfgs))
}

// GetConfig handles GET /numbering/configs/:type
func (h *NumberingHandler) GetConfig(c *gin.Context) {
	docType, ok := h.DocumentType(c, c.Param("type"))
	if !ok {
		return
	}

	cfg, err := h.service.Get(c.Request.Context(), docType)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromConfig(cfg))
}

// Advance handles PUT /numbering/configs/:type/current
func (h *NumberingHandler) Advance(c *gin.Context) {
	docType, ok := h.DocumentType(c, c.Param("type"))
	if !ok {
		return
	}

	var req dto.AdvanceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cfg, err := h.service.Advance(c.Request.Context(), docType, req.CurrentNumber)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AdvanceResponse{Type: cfg.Type.String(), CurrentNumber: cfg.CurrentNumber})
}

// CheckDuplicate handles POST /numbering/duplicates/check
func (h *NumberingHandler) CheckDuplicate(c *gin.Context) {
	var req dto.DocumentNumberRequest
	if !h.BindJSON(c, &req) {
		return
	}
	docType, ok := h.DocumentType(c, req.Type)
	if !ok {
		return
	}

	dup, err := h.service.CheckDuplicate(c.Request.Context(), docType, req.Number)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.DuplicateCheckResponse{IsDuplicate: dup})
}

// SaveConfig handles POST /numbering/configs
func (h *NumberingHandler) SaveConfig(c *gin.Context) {
	var req dto.SaveConfigRequest
	if !h.BindJSON(c, &req) {
		return
	}
	docType, ok := h.DocumentType(c, req.Type)
	if !ok {
		return
	}

	cfg, err := h.service.Save(c.Request.Context(), docType, req.StartingNumber, req.Prefix)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromConfig(cfg))
}

// RecordDocument handles POST /numbering/documents
func (h *NumberingHandler) RecordDocument(c *gin.Context) {
	var req dto.DocumentNumberRequest
	if !h.BindJSON(c, &req) {
		return
	}
	docType, ok := h.DocumentType(c, req.Type)
	if !ok {
		return
	}

	if err := h.service.RecordDocument(c.Request.Context(), docType, req.Number); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.SuccessResponse{Success: true})
}
