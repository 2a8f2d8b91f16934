package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iho/custodyledger/internal/adapter/http/dto"
	"github.com/iho/custodyledger/internal/adapter/http/middleware"
)

// apiClient calls the custody ledger HTTP API.
type apiClient struct {
	baseURL        string
	actor          string
	idempotencyKey string
	http           *http.Client
}

func newAPIClient(baseURL, actor string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		actor:   actor,
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx response decoded from the API error body.
type apiError struct {
	Status int
	Body   dto.ErrorResponse
}

func (e *apiError) Error() string {
	msg := e.Body.Error
	if e.Body.Message != "" {
		msg = e.Body.Message + ": " + msg
	}
	if e.Body.Code != "" {
		return fmt.Sprintf("%s (status %d, code %s)", msg, e.Status, e.Body.Code)
	}
	return fmt.Sprintf("%s (status %d)", msg, e.Status)
}

// do sends body as JSON and decodes a successful response into out.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.actor != "" {
		req.Header.Set(middleware.ActorHeader, c.actor)
	}
	if c.idempotencyKey != "" && method != http.MethodGet {
		req.Header.Set(middleware.IdempotencyKeyHeader, c.idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.Unmarshal(data, &apiErr.Body); err != nil || apiErr.Body.Error == "" {
			apiErr.Body.Error = truncate(strings.TrimSpace(string(data)), 200)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
