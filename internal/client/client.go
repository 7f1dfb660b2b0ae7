// Package client calls the etex server.
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
)

// Error is an error response of the server.
type Error struct {
	Status  int    `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

type Client struct {
	BaseURL    string       // required, e.g. "http://localhost:8000"
	HTTPClient *http.Client // default: http.DefaultClient
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

// Build sends the workspace archive to the server and returns the output archive.
// A non-successful response is returned as *Error.
func (c *Client) Build(ctx context.Context, makefileName string, outputPath string, archive []byte) ([]byte, error) {
	query := url.Values{
		"makefile_name": {makefileName},
		"output_path":   {outputPath},
	}
	u := strings.TrimSuffix(c.BaseURL, "/") + "/?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("client.Build: %w", err)
	}
	req.Header.Set("Content-Type", "application/zip")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("client.Build: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client.Build: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client.Build: %w", decodeError(resp, body))
	}
	return body, nil
}

func decodeError(resp *http.Response, body []byte) *Error {
	e := new(Error)
	if err := json.Unmarshal(body, e); err != nil || e.Kind == "" {
		return &Error{
			Status:  resp.StatusCode,
			Kind:    http.StatusText(resp.StatusCode),
			Message: strings.TrimSpace(string(body)),
		}
	}
	if e.Status == 0 {
		e.Status = resp.StatusCode
	}
	return e
}
