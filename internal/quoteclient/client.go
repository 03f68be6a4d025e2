// Package quoteclient talks to a running quote-server over its JSON API.
package quoteclient

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

	"github.com/joelkehle/legalquote/internal/estimate"
	"github.com/joelkehle/legalquote/internal/intake"
)

// APIError is a non-2xx answer carrying the server's error body.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("quote-server status=%d", e.Status)
	}
	return fmt.Sprintf("quote-server status=%d code=%s: %s", e.Status, e.Code, e.Message)
}

type Health struct {
	OK       bool `json:"ok"`
	Services int  `json:"catalog_services"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			// PDF rendering through chromium can take a while.
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, http.Header, error) {
	var body io.Reader
	if payload != nil {
		blob, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, err
		}
		body = bytes.NewReader(blob)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var wrapped struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(blob, &wrapped) == nil && wrapped.Error != nil {
			apiErr.Code = wrapped.Error.Code
			apiErr.Message = wrapped.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(blob))
		}
		return nil, nil, apiErr
	}
	return blob, resp.Header, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	blob, _, err := c.do(ctx, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(blob, &h); err != nil {
		return h, fmt.Errorf("decode health: %w", err)
	}
	return h, nil
}

// Estimate posts the request and returns the decoded envelope.
func (c *Client) Estimate(ctx context.Context, req intake.Request) (estimate.ResponseEnvelope, error) {
	var env estimate.ResponseEnvelope
	blob, _, err := c.do(ctx, http.MethodPost, "/v1/estimates", req)
	if err != nil {
		return env, err
	}
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return env, fmt.Errorf("decode estimate: %w", err)
	}
	return env, nil
}

// Report fetches the rendered report in format (markdown, html or pdf) and
// returns its bytes with the server's content type.
func (c *Client) Report(ctx context.Context, req intake.Request, format string) ([]byte, string, error) {
	q := url.Values{}
	q.Set("format", format)
	blob, header, err := c.do(ctx, http.MethodPost, "/v1/estimates/report?"+q.Encode(), req)
	if err != nil {
		return nil, "", err
	}
	return blob, header.Get("Content-Type"), nil
}
