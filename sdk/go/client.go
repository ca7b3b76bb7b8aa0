package upkeepsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Upkeep HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Location is the API location model.
type Location struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organization_id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
}

// AssetType is a named checklist template.
type AssetType struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Template    string `json:"template"`
}

// WorkArea is one generated checklist section.
type WorkArea struct {
	ID         int64  `json:"id"`
	AssetID    int64  `json:"asset_id"`
	Statement  string `json:"statement"`
	IsRelevant bool   `json:"is_relevant"`
}

// WorkItem is one generated checklist entry.
type WorkItem struct {
	ID         int64  `json:"id"`
	WorkAreaID int64  `json:"work_area_id"`
	Statement  string `json:"statement"`
}

// Update is an appended progress note.
type Update struct {
	ID         int64   `json:"id"`
	WorkItemID int64   `json:"work_item_id"`
	Narrative  string  `json:"narrative"`
	ReviewDate *string `json:"review_date,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// AttachResult is what attaching an asset type returns.
type AttachResult struct {
	Asset struct {
		ID          int64 `json:"id"`
		LocationID  int64 `json:"location_id"`
		AssetTypeID int64 `json:"asset_type_id"`
	} `json:"asset"`
	Areas []struct {
		Area  WorkArea   `json:"area"`
		Items []WorkItem `json:"items"`
	} `json:"areas"`
}

// DashboardStats are the headline counts.
type DashboardStats struct {
	OutstandingCount int `json:"outstanding_count"`
	DueSoonCount     int `json:"due_soon_count"`
	TotalItems       int `json:"total_items"`
}

// DashboardItem is an enriched work-item row.
type DashboardItem struct {
	ID                int64  `json:"id"`
	Statement         string `json:"statement"`
	WorkAreaStatement string `json:"work_area_statement"`
	LocationName      string `json:"location_name"`
	DaysSinceUpdate   *int   `json:"days_since_update,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodPost, "v0/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return err
	}
	c.BearerToken = resp.AccessToken
	return nil
}

// CreateLocation creates a location in the caller's organization.
func (c *Client) CreateLocation(ctx context.Context, name, address string) (Location, error) {
	var resp Location
	err := c.do(ctx, http.MethodPost, "v0/locations", map[string]any{
		"name":    name,
		"address": address,
	}, &resp)
	return resp, err
}

// CreateAssetType registers a checklist template.
func (c *Client) CreateAssetType(ctx context.Context, name, description, template string) (AssetType, error) {
	var resp AssetType
	err := c.do(ctx, http.MethodPost, "v0/asset-types", map[string]any{
		"name":        name,
		"description": description,
		"template":    template,
	}, &resp)
	return resp, err
}

// AttachAsset attaches an asset type to a location, generating its checklist.
func (c *Client) AttachAsset(ctx context.Context, locationID, assetTypeID int64) (AttachResult, error) {
	var resp AttachResult
	endpoint := fmt.Sprintf("v0/locations/%d/assets", locationID)
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{
		"asset_type_id": assetTypeID,
	}, &resp)
	return resp, err
}

// AddUpdate appends a progress note, optionally scheduling a review.
func (c *Client) AddUpdate(ctx context.Context, workItemID int64, narrative string, reviewDate *string) (Update, error) {
	body := map[string]any{"narrative": narrative}
	if reviewDate != nil {
		body["review_date"] = *reviewDate
	}
	var resp Update
	endpoint := fmt.Sprintf("v0/items/%d/updates", workItemID)
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// SetAreaRelevance marks a generated work area relevant or not.
func (c *Client) SetAreaRelevance(ctx context.Context, areaID int64, relevant bool) (WorkArea, error) {
	var resp WorkArea
	endpoint := fmt.Sprintf("v0/areas/%d/relevance", areaID)
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{
		"is_relevant": relevant,
	}, &resp)
	return resp, err
}

// DashboardStats fetches the headline counts.
func (c *Client) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var resp DashboardStats
	err := c.do(ctx, http.MethodGet, "v0/dashboard/stats", nil, &resp)
	return resp, err
}

// DashboardOutstanding lists items needing attention.
func (c *Client) DashboardOutstanding(ctx context.Context) ([]DashboardItem, error) {
	var resp []DashboardItem
	err := c.do(ctx, http.MethodGet, "v0/dashboard/outstanding", nil, &resp)
	return resp, err
}

// DashboardDueSoon lists items with a review date in the next 30 days.
func (c *Client) DashboardDueSoon(ctx context.Context) ([]DashboardItem, error) {
	var resp []DashboardItem
	err := c.do(ctx, http.MethodGet, "v0/dashboard/due-soon", nil, &resp)
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
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
