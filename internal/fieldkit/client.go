package fieldkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client uploads queued drafts to the platform sync endpoint.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an API client. token is the assessor's bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type batchItem struct {
	ClientRef  string                 `json:"client_ref"`
	EntityID   string                 `json:"entity_id"`
	IncidentID string                 `json:"incident_id"`
	Sector     string                 `json:"sector"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Needs      []Need                 `json:"needs,omitempty"`
	CapturedAt string                 `json:"captured_at,omitempty"`
}

// ItemResult mirrors the server's per-item sync outcome.
type ItemResult struct {
	ClientRef    string `json:"client_ref"`
	Outcome      string `json:"outcome"`
	AssessmentID string `json:"assessment_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

type batchResponse struct {
	Created    int          `json:"created"`
	Duplicates int          `json:"duplicates"`
	Invalid    int          `json:"invalid"`
	Results    []ItemResult `json:"results"`
}

// Upload sends the drafts as one sync batch and returns per-item results.
func (c *Client) Upload(ctx context.Context, drafts []Draft) ([]ItemResult, error) {
	items := make([]batchItem, len(drafts))
	for i, d := range drafts {
		items[i] = batchItem{
			ClientRef:  d.ClientRef,
			EntityID:   d.EntityID,
			IncidentID: d.IncidentID,
			Sector:     d.Sector,
			Data:       d.Data,
			Needs:      d.Needs,
			CapturedAt: d.CapturedAt.UTC().Format(time.RFC3339),
		}
	}

	body, err := json.Marshal(map[string]interface{}{"items": items})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sync/assessments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}

	var out batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	return out.Results, nil
}
