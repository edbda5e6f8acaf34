// Package provisioning allocates meeting rooms through the provisioning service
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/navikt/roomswitch/internal/config"
	"github.com/navikt/roomswitch/internal/models"
)

// ProvisioningError is returned when a room could not be created
type ProvisioningError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ProvisioningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to create meeting: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("failed to create meeting: %s", e.Message)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// APIClient handles interactions with the provisioning API
type APIClient struct {
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new provisioning API client
func NewAPIClient(cfg config.ProvisioningConfig) *APIClient {
	return &APIClient{
		authToken: cfg.AuthToken,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// createMeetingResponse is the success body of POST /meetings
type createMeetingResponse struct {
	MeetingID string `json:"meetingId"`
}

// errorResponse is the error body of a non-2xx response
type errorResponse struct {
	Message string `json:"message"`
}

// CreateMeeting provisions a single room and returns its identifier
func (c *APIClient) CreateMeeting(ctx context.Context) (models.RoomID, error) {
	url := fmt.Sprintf("%s/meetings", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", &ProvisioningError{Message: "failed to create request", Err: err}
	}

	// The provisioning service takes the raw token, not a bearer scheme
	req.Header.Set("Authorization", c.authToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProvisioningError{Message: "failed to make request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1048576))
	if err != nil {
		return "", &ProvisioningError{StatusCode: resp.StatusCode, Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := http.StatusText(resp.StatusCode)
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
			message = errResp.Message
		}
		return "", &ProvisioningError{StatusCode: resp.StatusCode, Message: message}
	}

	var created createMeetingResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", &ProvisioningError{StatusCode: resp.StatusCode, Message: "failed to parse response", Err: err}
	}

	if created.MeetingID == "" {
		return "", &ProvisioningError{StatusCode: resp.StatusCode, Message: "response carried no meetingId"}
	}

	return models.RoomID(created.MeetingID), nil
}
