// Package genapi is a client for the gen-api.ru image networks. Jobs are
// asynchronous: Submit returns a request id and the result is posted later to
// the callback URL.
package genapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/neuroquiz/core/logger"
)

// ErrEmptyRequestID is returned when the provider accepted a job without an id.
var ErrEmptyRequestID = errors.New("genapi: response has no request_id")

// Config describes the provider endpoint and the image parameters.
type Config struct {
	BaseURL        string
	APIKey         string
	Network        string
	Width          int
	Height         int
	NumOutputs     int
	TranslateInput bool
}

// APIError is a non-2xx provider response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("genapi: status %d: %s", e.Status, e.Body)
}

// Code implements the error code lookup of the handler logs.
func (e *APIError) Code() string {
	return fmt.Sprintf("genapi_%d", e.Status)
}

// Client submits generation jobs.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client. A nil hc gets a client with a 30s timeout.
func New(cfg Config, hc *http.Client) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.gen-api.ru/api/v1"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Network == "" {
		cfg.Network = "sdxl"
	}
	if cfg.Width <= 0 {
		cfg.Width = 1024
	}
	if cfg.Height <= 0 {
		cfg.Height = 1024
	}
	if cfg.NumOutputs <= 0 {
		cfg.NumOutputs = 1
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, http: hc}
}

type submitRequest struct {
	Prompt         string `json:"prompt"`
	CallbackURL    string `json:"callback_url"`
	NumOutputs     int    `json:"num_outputs"`
	TranslateInput bool   `json:"translate_input"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

type submitResponse struct {
	RequestID RequestID `json:"request_id"`
}

// Submit starts a job for prompt and returns the provider request id.
func (c *Client) Submit(ctx context.Context, prompt, callbackURL string) (string, error) {
	start := time.Now()
	body, err := json.Marshal(submitRequest{
		Prompt:         prompt,
		CallbackURL:    callbackURL,
		NumOutputs:     c.cfg.NumOutputs,
		TranslateInput: c.cfg.TranslateInput,
		Width:          c.cfg.Width,
		Height:         c.cfg.Height,
	})
	if err != nil {
		return "", fmt.Errorf("genapi: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/networks/"+c.cfg.Network, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("genapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	id, err := c.do(req)
	logger.LogEvent(ctx, logger.Component("genapi"), levelFor(err), "genapi.submit",
		slog.String("status", logger.Status(err)),
		slog.String("request_id", id),
		slog.Duration("duration", logger.Took(start)),
		logger.Err(err),
	)
	return id, err
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("genapi: submit: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("genapi: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Body: logger.SanitizeLimit(string(raw), 256)}
	}
	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("genapi: decode response: %w", err)
	}
	if out.RequestID == "" {
		return "", ErrEmptyRequestID
	}
	return string(out.RequestID), nil
}

func levelFor(err error) slog.Level {
	if err != nil {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
