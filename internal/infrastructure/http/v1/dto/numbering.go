package dto

import (
	"time"

	"logibill/internal/core/numbering"
)

// --- Request DTOs ---

// AdvanceRequest for PUT /numbering/configs/:type/current.
type AdvanceRequest struct {
	CurrentNumber int64 `json:"currentNumber" binding:"required,gt=1"`
}

// DocumentNumberRequest names one number of one document type.
// Used by duplicate checks and document registration.
type DocumentNumberRequest struct {
	Type   string `json:"type" binding:"required"`
	Number int64  `json:"number" binding:"required,gte=1"`
}

// SaveConfigRequest for POST /numbering/configs.
type SaveConfigRequest struct {
	Type           string `json:"type" binding:"required"`
	StartingNumber int64  `json:"startingNumber" binding:"required,gte=1"`
	Prefix         string `json:"prefix" binding:"max=16"`
}

// --- Response DTOs ---

// ConfigResponse is the wire form of a numbering config.
type ConfigResponse struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	StartingNumber int64     `json:"startingNumber"`
	CurrentNumber  int64     `json:"currentNumber"`
	Prefix         string    `json:"prefix"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// FromConfig converts a domain config.
func FromConfig(c numbering.Config) ConfigResponse {
	return ConfigResponse{
		ID:             c.ID,
		Type:           c.Type.String(),
		StartingNumber: c.StartingNumber,
		CurrentNumber:  c.CurrentNumber,
		Prefix:         c.Prefix,
		UpdatedAt:      c.UpdatedAt,
	}
}

// FromConfigs converts a list, never returning nil.
func FromConfigs(cfgs []numbering.Config) []ConfigResponse {
	out := make([]ConfigResponse, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, FromConfig(c))
	}
	return out
}

// AdvanceResponse acknowledges an applied advance.
type AdvanceResponse struct {
	Type          string `json:"type"`
	CurrentNumber int64  `json:"currentNumber"`
}

// DuplicateCheckResponse answers a duplicate check.
type DuplicateCheckResponse struct {
	IsDuplicate bool `json:"isDuplicate"`
}
