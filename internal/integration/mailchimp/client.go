// Package mailchimp implements the Mailchimp marketing API connector:
// audience listing, merge-field discovery, and member upsert.
package mailchimp

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/formbridge/internal/config"
	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/integration"
	"github.com/ignite/formbridge/internal/pkg/httpretry"
)

// Client is a Mailchimp marketing API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a Mailchimp client. The datacenter is taken from the
// API key suffix ("abc123-us14" → us14.api.mailchimp.com).
func NewClient(cfg config.MailchimpConfig) *Client {
	dc := "us1"
	if i := strings.LastIndex(cfg.APIKey, "-"); i >= 0 && i < len(cfg.APIKey)-1 {
		dc = cfg.APIKey[i+1:]
	}
	return &Client{
		baseURL: fmt.Sprintf("https://%s.api.mailchimp.com/3.0", dc),
		apiKey:  cfg.APIKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// NewClientWithBaseURL builds a client against an explicit endpoint,
// used by tests and API proxies.
func NewClientWithBaseURL(apiKey, baseURL string, doer httpretry.HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: doer}
}

// Provider identifies this connector.
func (c *Client) Provider() form.Provider { return form.ProviderMailchimp }

// Audience is a Mailchimp list.
type Audience struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

// MergeField is a named attribute on audience members.
type MergeField struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// apiError is Mailchimp's problem-detail error body.
type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// TestConnection verifies the API key against the ping endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	var out struct {
		HealthStatus string `json:"health_status"`
	}
	return c.doRequest(ctx, http.MethodGet, "/ping", nil, &out)
}

// Audiences lists the account's audiences.
func (c *Client) Audiences(ctx context.Context) ([]Audience, error) {
	var out struct {
		Lists []Audience `json:"lists"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/lists?count=100", nil, &out); err != nil {
		return nil, err
	}
	return out.Lists, nil
}

// MergeFields lists merge fields for one audience. EMAIL is implicit in
// the API, so it is prepended here for mapping UIs.
func (c *Client) MergeFields(ctx context.Context, audienceID string) ([]MergeField, error) {
	var out struct {
		MergeFields []MergeField `json:"merge_fields"`
	}
	path := fmt.Sprintf("/lists/%s/merge-fields?count=100", audienceID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return append([]MergeField{{Tag: "EMAIL", Name: "Email Address", Type: "email", Required: true}}, out.MergeFields...), nil
}

// SubscriberHash is Mailchimp's member id: MD5 of the lowercased email.
func SubscriberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// Push upserts an audience member with the mapped merge fields. With
// double opt-in the member enters as pending until they confirm.
func (c *Client) Push(ctx context.Context, req integration.PushRequest) error {
	if req.Target == "" {
		return integration.Errorf(integration.CategoryValidation, "no audience selected")
	}

	status := "subscribed"
	if req.DoubleOptIn {
		status = "pending"
	}

	merge := make(map[string]string, len(req.Properties))
	for tag, v := range req.Properties {
		if strings.EqualFold(tag, "EMAIL") {
			continue // identity travels in email_address
		}
		merge[tag] = v
	}

	body := map[string]any{
		"email_address": req.Email,
		"status_if_new": status,
	}
	if len(merge) > 0 {
		body["merge_fields"] = merge
	}

	path := fmt.Sprintf("/lists/%s/members/%s", req.Target, SubscriberHash(req.Email))
	return c.doRequest(ctx, http.MethodPut, path, body, nil)
}

// doRequest executes one API call, classifying failures per the
// dispatch error taxonomy.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth("formbridge", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return integration.Errorf(integration.CategoryNetwork, "executing request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return integration.Errorf(integration.CategoryNetwork, "reading response: %v", err)
	}

	if resp.StatusCode >= 400 {
		return classifyStatus(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func classifyStatus(status int, body []byte) *integration.Error {
	var ae apiError
	detail := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &ae); err == nil && ae.Title != "" {
		detail = ae.Title
		if ae.Detail != "" {
			detail += ": " + ae.Detail
		}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return integration.Errorf(integration.CategoryAuth, "mailchimp rejected credentials (%d): %s", status, detail)
	case status >= 500 || status == http.StatusTooManyRequests:
		return integration.Errorf(integration.CategoryNetwork, "mailchimp unavailable (%d): %s", status, detail)
	default:
		return integration.Errorf(integration.CategoryApplication, "mailchimp error (%d): %s", status, detail)
	}
}
