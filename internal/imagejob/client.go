// Package imagejob submits asynchronous jobs to the image-editing API and
// polls them to completion.
package imagejob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/psdglot/psdglot/internal/log"
	"github.com/psdglot/psdglot/internal/manifest"
)

const (
	requestTimeout = 60 * time.Second

	// EndpointManifest extracts the document's layer manifest.
	EndpointManifest = "/documentManifest"
	// EndpointOperations applies text edits to a document.
	EndpointOperations = "/documentOperations"
)

// Submission is the accepted response of an asynchronous job request.
type Submission struct {
	PollURL string
	Raw     json.RawMessage
}

// Output is one entry of a job status response.
type Output struct {
	Status string               `json:"status"`
	Layers []manifest.LayerNode `json:"layers,omitempty"`
	Errors json.RawMessage      `json:"errors,omitempty"`
}

// StatusResponse is the body returned by a job's polling endpoint.
type StatusResponse struct {
	Outputs []Output `json:"outputs"`
}

type submissionBody struct {
	Links struct {
		Self struct {
			Href string `json:"href"`
		} `json:"self"`
	} `json:"_links"`
}

// Client issues authenticated requests to the image-editing API. One Client
// is built per pipeline run, around that run's bearer token.
type Client struct {
	baseURL  string
	token    string
	clientID string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a Client for one run.
func NewClient(baseURL, token, clientID string) *Client {
	return &Client{
		baseURL:  baseURL,
		token:    token,
		clientID: clientID,
		http:     &http.Client{Timeout: requestTimeout},
		logger:   log.WithComponent("imagejob"),
	}
}

// Submit posts body to the given endpoint path. Any 2xx status, including
// the 202 the API uses for "accepted, poll for result", is success; anything
// else is a SubmissionError carrying the raw response body.
func (c *Client) Submit(ctx context.Context, endpoint string, body any) (*Submission, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build job request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read job response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SubmissionError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed submissionBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}

	c.logger.Debug("job submitted", "endpoint", endpoint, "status", resp.StatusCode)
	return &Submission{
		PollURL: parsed.Links.Self.Href,
		Raw:     respBody,
	}, nil
}

// FetchStatus queries a job's polling endpoint once. A non-2xx response is a
// TransportError, not a retryable condition.
func (c *Client) FetchStatus(ctx context.Context, pollURL, op string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch job status: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed StatusResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &parsed, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("x-api-key", c.clientID)
}
