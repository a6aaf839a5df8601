package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dentaldesk/internal/models"
)

// HTTP Client

type client struct {
	baseURL    string
	tenant     string
	httpClient *http.Client
}

func newClient() *client {
	return &client{
		baseURL: endpoint,
		tenant:  tenant,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError carries the server's error body
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d)", e.Message, e.Status)
	}
	return fmt.Sprintf("API error (%d)", e.Status)
}

func (c *client) request(method, path string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.tenant != "" {
		req.Header.Set("X-Tenant", c.tenant)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var e models.ErrorResponse
		if json.Unmarshal(data, &e) == nil && (e.Message != "" || e.Error != "") {
			msg := e.Message
			if msg == "" {
				msg = e.Error
			}
			return nil, &apiError{Status: resp.StatusCode, Code: e.Error, Message: msg}
		}
		return nil, &apiError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(data))}
	}

	return data, nil
}

// call sends a request and decodes the JSON response into out (which may be nil)
func (c *client) call(method, path string, body, out interface{}) error {
	data, err := c.request(method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}
