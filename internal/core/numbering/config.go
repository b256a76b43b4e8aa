// Package numbering provides domain contracts for business document numbering.
package numbering

import (
	"fmt"
	"strconv"
	"time"
)

// DocumentType is the category of business record that needs a unique sequential number.
type DocumentType string

const (
	// TypeInvoice numbers GST invoices (INV1001, INV1002, ...).
	TypeInvoice DocumentType = "invoice"
	// TypeConsignment numbers lorry receipts / consignment notes (LR5001, ...).
	TypeConsignment DocumentType = "consignment"
)

// DocumentTypes lists every supported type in a stable order.
var DocumentTypes = []DocumentType{TypeInvoice, TypeConsignment}

// Valid reports whether t is a supported document type.
func (t DocumentType) Valid() bool {
	switch t {
	case TypeInvoice, TypeConsignment:
		return true
	}
	return false
}

func (t DocumentType) String() string { return string(t) }

// ParseDocumentType converts s into a DocumentType.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown document type %q", s)
	}
	return t, nil
}

// Config is the numbering configuration of one document type.
// CurrentNumber is the next value to be allocated.
type Config struct {
	ID             string       `json:"id" db:"id"`
	Type           DocumentType `json:"type" db:"type"`
	StartingNumber int64        `json:"startingNumber" db:"starting_number"`
	CurrentNumber  int64        `json:"currentNumber" db:"current_number"`
	Prefix         string       `json:"prefix" db:"prefix"`
	UpdatedAt      time.Time    `json:"updatedAt" db:"updated_at"`
}

// Format renders number with the config prefix. No padding is applied.
func (c Config) Format(number int64) string {
	if c.Prefix == "" {
		return strconv.FormatInt(number, 10)
	}
	return c.Prefix + strconv.FormatInt(number, 10)
}

// DefaultConfigs returns the bootstrap configs used when the backend cannot be reached.
func DefaultConfigs() []Config {
	return []Config{
		{Type: TypeInvoice, StartingNumber: 1001, CurrentNumber: 1001, Prefix: "INV"},
		{Type: TypeConsignment, StartingNumber: 5001, CurrentNumber: 5001, Prefix: "LR"},
	}
}

// ValidationResult is the outcome of a manual number check.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}
