package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"
)

// UserAgent identifies vidctl to the catalog, which classifies the request
// source from it.
const UserAgent = "vidctl/0.1"

// Client talks to the catalog API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithoutTimeout returns a copy suited to long uploads and downloads.
func (c *Client) WithoutTimeout() *Client {
	cp := *c
	cp.client = &http.Client{}
	return &cp
}

// APIError is a non-2xx response from the catalog.
type APIError struct {
	StatusCode int      `json:"-"`
	Message    string   `json:"error"`
	Code       string   `json:"code,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Violations) > 0 {
		msg += " (" + strings.Join(e.Violations, "; ") + ")"
	}
	return msg
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Vidstream-Source", "cli")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// send performs req and returns the response when its status is one of
// want. Any other status is decoded into an *APIError.
func (c *Client) send(req *http.Request, want ...int) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if slices.Contains(want, resp.StatusCode) {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return nil, apiErr
}

// doJSON sends in as a JSON body (nil for none) and decodes the response
// into out (nil to discard).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, want ...int) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.send(req, want...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the catalog. List and search
// answer 404 when nothing matches.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
