package volunteermatchsdk

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
)

// Client is a minimal volunteer matching HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	ActorID     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// StatusHistoryEntry is one recorded status change.
type StatusHistoryEntry struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	ChangedBy string `json:"changed_by"`
	Notes     string `json:"notes"`
}

type ScoreDetails struct {
	LocationScore     int `json:"location_score"`
	InterestsScore    int `json:"interests_score"`
	BackgroundScore   int `json:"background_score"`
	AvailabilityScore int `json:"availability_score"`
	FrequencyScore    int `json:"frequency_score"`
	TimingScore       int `json:"timing_score"`
	TotalScore        int `json:"total_score"`
}

// MatchResult is a ranked candidate snapshot.
type MatchResult struct {
	CandidateID       string       `json:"candidate_id"`
	CandidateName     string       `json:"candidate_name"`
	CandidateLocation string       `json:"candidate_location"`
	Score             int          `json:"score"`
	ScoreDetails      ScoreDetails `json:"score_details"`
	MatchedAt         string       `json:"matched_at"`
}

type Assignment struct {
	CandidateID string `json:"candidate_id"`
	Status      string `json:"status"`
	AssignedAt  string `json:"assigned_at"`
	ResponseAt  string `json:"response_at,omitempty"`
}

// JobRequest represents the API job request model.
type JobRequest struct {
	ID                     string               `json:"id"`
	Title                  string               `json:"title"`
	Description            string               `json:"description"`
	Location               string               `json:"location"`
	VolunteerField         string               `json:"volunteer_field"`
	ProfessionalBackground string               `json:"professional_background,omitempty"`
	Frequency              string               `json:"frequency,omitempty"`
	Timing                 string               `json:"timing,omitempty"`
	Days                   []string             `json:"days"`
	Status                 string               `json:"status"`
	StatusHistory          []StatusHistoryEntry `json:"status_history"`
	MatchResults           []MatchResult        `json:"match_results"`
	AssignedSeniors        []Assignment         `json:"assigned_seniors"`
	CreatedBy              string               `json:"created_by"`
	CreatedAt              string               `json:"created_at"`
	UpdatedAt              string               `json:"updated_at"`
}

// CreateJobRequestInput holds the fields of a new job request.
type CreateJobRequestInput struct {
	Title                  string   `json:"title"`
	Description            string   `json:"description,omitempty"`
	Location               string   `json:"location,omitempty"`
	VolunteerField         string   `json:"volunteer_field,omitempty"`
	ProfessionalBackground string   `json:"professional_background,omitempty"`
	Frequency              string   `json:"frequency,omitempty"`
	Timing                 string   `json:"timing,omitempty"`
	Days                   []string `json:"days,omitempty"`
}

// UpdateJobRequestInput changes only the non-nil fields.
type UpdateJobRequestInput struct {
	Title                  *string   `json:"title,omitempty"`
	Description            *string   `json:"description,omitempty"`
	Location               *string   `json:"location,omitempty"`
	VolunteerField         *string   `json:"volunteer_field,omitempty"`
	ProfessionalBackground *string   `json:"professional_background,omitempty"`
	Frequency              *string   `json:"frequency,omitempty"`
	Timing                 *string   `json:"timing,omitempty"`
	Days                   *[]string `json:"days,omitempty"`
	Status                 *string   `json:"status,omitempty"`
	StatusNotes            *string   `json:"status_notes,omitempty"`
}

// ListFilters narrow ListJobRequests by equality. A zero Limit returns
// every matching job request.
type ListFilters struct {
	Status         string
	Location       string
	VolunteerField string
	Limit          int
}

// Component explains one line of an inspected score.
type Component struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Max    int    `json:"max"`
	Reason string `json:"reason"`
}

type Inspection struct {
	JobRequest   JobRequest      `json:"job_request"`
	Candidate    json.RawMessage `json:"candidate"`
	ScoreDetails ScoreDetails    `json:"score_details"`
	Breakdown    []Component     `json:"breakdown"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateJobRequest creates a job request. The response carries the
// initial match results.
func (c *Client) CreateJobRequest(ctx context.Context, in CreateJobRequestInput) (JobRequest, error) {
	var resp JobRequest
	err := c.do(ctx, http.MethodPost, "job-requests", in, &resp)
	return resp, err
}

func (c *Client) GetJobRequest(ctx context.Context, id string) (JobRequest, error) {
	var resp JobRequest
	err := c.do(ctx, http.MethodGet, "job-requests/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListJobRequests returns job requests newest first.
func (c *Client) ListJobRequests(ctx context.Context, f ListFilters) ([]JobRequest, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	if f.VolunteerField != "" {
		q.Set("volunteer_field", f.VolunteerField)
	}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	endpoint := "job-requests"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []JobRequest `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) UpdateJobRequest(ctx context.Context, id string, in UpdateJobRequestInput) (JobRequest, error) {
	var resp JobRequest
	err := c.do(ctx, http.MethodPatch, "job-requests/"+url.PathEscape(id), in, &resp)
	return resp, err
}

func (c *Client) DeleteJobRequest(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "job-requests/"+url.PathEscape(id), nil, nil)
}

// RunMatching recomputes and returns the match results.
func (c *Client) RunMatching(ctx context.Context, id string) ([]MatchResult, error) {
	var resp struct {
		Items []MatchResult `json:"items"`
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("job-requests/%s/match", url.PathEscape(id)), nil, &resp)
	return resp.Items, err
}

func (c *Client) Invite(ctx context.Context, jobRequestID, candidateID string) (JobRequest, error) {
	var resp JobRequest
	endpoint := fmt.Sprintf("job-requests/%s/invitations", url.PathEscape(jobRequestID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"candidate_id": candidateID}, &resp)
	return resp, err
}

// Respond records "Accepted" or "Declined" for candidateID.
func (c *Client) Respond(ctx context.Context, jobRequestID, candidateID, response string) (JobRequest, error) {
	var resp JobRequest
	endpoint := fmt.Sprintf("job-requests/%s/invitations/%s/response", url.PathEscape(jobRequestID), url.PathEscape(candidateID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"response": response}, &resp)
	return resp, err
}

func (c *Client) Inspect(ctx context.Context, jobRequestID, candidateID string) (Inspection, error) {
	var resp Inspection
	endpoint := fmt.Sprintf("job-requests/%s/candidates/%s/inspection", url.PathEscape(jobRequestID), url.PathEscape(candidateID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
