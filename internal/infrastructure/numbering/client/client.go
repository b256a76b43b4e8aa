// Package client implements numbering.Backend over the numbering HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"logibill/internal/core/apperror"
	appctx "logibill/internal/core/context"
	"logibill/internal/core/numbering"
)

const apiPrefix = "/api/v1/numbering"

// Client talks to the numbering backend. Every request carries a bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Tokens supplies the bearer credential. Required.
	Tokens TokenSource
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// New creates a new numbering backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("numbering client: base url is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("numbering client: token source is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     cfg.Tokens,
	}, nil
}

// Ensure compile-time interface compliance.
var _ numbering.Backend = (*Client)(nil)

// --- Wire types ---

type advanceRequest struct {
	CurrentNumber int64 `json:"currentNumber"`
}

type duplicateRequest struct {
	Type   numbering.DocumentType `json:"type"`
	Number int64                  `json:"number"`
}

type duplicateResponse struct {
	IsDuplicate bool `json:"isDuplicate"`
}

type saveRequest struct {
	Type           numbering.DocumentType `json:"type"`
	StartingNumber int64                  `json:"startingNumber"`
	Prefix         string                 `json:"prefix"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- numbering.Backend ---

// ListConfigs implements numbering.Backend.
func (c *Client) ListConfigs(ctx context.Context) ([]numbering.Config, error) {
	var cfgs []numbering.Config
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/configs", nil, &cfgs); err != nil {
		return nil, apperror.NewNumberingLoad(err).WithStatus(statusOf(err))
	}
	return cfgs, nil
}

// AdvanceNumber implements numbering.Backend.
func (c *Client) AdvanceNumber(ctx context.Context, docType numbering.DocumentType, newValue int64) error {
	path := fmt.Sprintf("%s/configs/%s/current", apiPrefix, url.PathEscape(docType.String()))
	if err := c.do(ctx, http.MethodPut, path, advanceRequest{CurrentNumber: newValue}, nil); err != nil {
		return apperror.NewNumberingUpdate(docType.String(), err).WithStatus(statusOf(err))
	}
	return nil
}

// CheckDuplicateNumber implements numbering.Backend.
func (c *Client) CheckDuplicateNumber(ctx context.Context, docType numbering.DocumentType, number int64) (bool, error) {
	var resp duplicateResponse
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/duplicates/check", duplicateRequest{Type: docType, Number: number}, &resp); err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return resp.IsDuplicate, nil
}

// SaveConfig implements numbering.Backend.
func (c *Client) SaveConfig(ctx context.Context, docType numbering.DocumentType, startingNumber int64, prefix string) (numbering.Config, error) {
	var cfg numbering.Config
	req := saveRequest{Type: docType, StartingNumber: startingNumber, Prefix: prefix}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/configs", req, &cfg); err != nil {
		return numbering.Config{}, apperror.NewNumberingSave(docType.String(), err).WithStatus(statusOf(err))
	}
	return cfg, nil
}

// RecordDocument registers a persisted document number so later duplicate checks see it.
func (c *Client) RecordDocument(ctx context.Context, docType numbering.DocumentType, number int64) error {
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/documents", duplicateRequest{Type: docType, Number: number}, nil); err != nil {
		return fmt.Errorf("record document: %w", err)
	}
	return nil
}

// --- transport ---

// do sends a JSON request and decodes a JSON response into out (if non-nil).
// Non-2xx responses become *apperror.AppError carrying the backend status and code.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtain token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID := appctx.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) *apperror.AppError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Code == "" {
		eb = errorBody{
			Code:    apperror.CodeUnavailable,
			Message: strings.TrimSpace(string(body)),
		}
		if eb.Message == "" {
			eb.Message = http.StatusText(status)
		}
	}
	return &apperror.AppError{
		Code:       eb.Code,
		Message:    eb.Message,
		Details:    eb.Details,
		HTTPStatus: status,
	}
}

// statusOf returns the backend status carried by err, or 502 for transport failures.
func statusOf(err error) int {
	if appErr, ok := apperror.AsAppError(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusBadGateway
}
