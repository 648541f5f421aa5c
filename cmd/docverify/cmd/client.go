package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client handles API calls to the docverify daemon.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

type submitRequest struct {
	JobID     string `json:"job_id,omitempty"`
	SourceRef string `json:"source_ref"`
	RuleSetID string `json:"rule_set_id"`
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type fieldResponse struct {
	Value      string  `json:"value"`
	Normalized string  `json:"normalized"`
	Confidence float32 `json:"confidence"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type jobResponse struct {
	JobID             string                   `json:"job_id"`
	SourceRef         string                   `json:"source_ref"`
	RuleSetID         string                   `json:"rule_set_id"`
	Status            string                   `json:"status"`
	Attempts          map[string]int           `json:"attempts"`
	Fields            map[string]fieldResponse `json:"fields,omitempty"`
	OverallConfidence float32                  `json:"overall_confidence"`
	LastError         *errorResponse           `json:"last_error,omitempty"`
	CreatedAt         *time.Time               `json:"created_at"`
	CompletedAt       *time.Time               `json:"completed_at,omitempty"`
}

// SubmitJob sends POST /v1/jobs to enqueue a document for verification.
func (c *Client) SubmitJob(req submitRequest) (*submitResponse, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/v1/jobs", c.BaseURL), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result submitResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// GetJob sends GET /v1/jobs/{id} to retrieve a job snapshot.
func (c *Client) GetJob(jobID string) (*jobResponse, error) {
	httpReq, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/jobs/%s", c.BaseURL, jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result jobResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// CancelJob sends POST /v1/jobs/{id}/cancel.
func (c *Client) CancelJob(jobID string) error {
	httpReq, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/v1/jobs/%s/cancel", c.BaseURL, jobID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return nil
}

// ExportReview sends GET /v1/review/export and returns the workbook bytes.
func (c *Client) ExportReview() ([]byte, error) {
	httpReq, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/review/export", c.BaseURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return respBody, nil
}
