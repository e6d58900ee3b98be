// Package hubspot implements the HubSpot CRM v3 connector: property
// discovery and contact/deal/company object creation.
package hubspot

import (
	"bytes"
	"context"
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

// Client is a HubSpot CRM API client using private-app token auth.
type Client struct {
	baseURL    string
	token      string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a HubSpot client from configuration.
func NewClient(cfg config.HubSpotConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// NewClientWithBaseURL builds a client against an explicit endpoint,
// used by tests.
func NewClientWithBaseURL(token, baseURL string, doer httpretry.HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, httpClient: doer}
}

// Provider identifies this connector.
func (c *Client) Provider() form.Provider { return form.ProviderHubSpot }

// Property is a CRM object property definition.
type Property struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Type      string `json:"type"`
	FieldType string `json:"fieldType"`
}

// crmObject is the generic create/update payload and response shape.
type crmObject struct {
	ID         string            `json:"id,omitempty"`
	Properties map[string]string `json:"properties"`
}

// apiError is HubSpot's structured error body.
type apiError struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// objectTypes HubSpot accepts as a push target.
var objectTypes = map[string]bool{
	"contacts":  true,
	"deals":     true,
	"companies": true,
}

// TestConnection verifies the access token with a minimal read.
func (c *Client) TestConnection(ctx context.Context) error {
	var out struct {
		Results []crmObject `json:"results"`
	}
	return c.doRequest(ctx, http.MethodGet, "/crm/v3/objects/contacts?limit=1", nil, &out)
}

// Properties lists the property definitions for one object type, for
// mapping UIs.
func (c *Client) Properties(ctx context.Context, objectType string) ([]Property, error) {
	if !objectTypes[objectType] {
		return nil, integration.Errorf(integration.CategoryValidation, "unsupported object type %q", objectType)
	}
	var out struct {
		Results []Property `json:"results"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/crm/v3/properties/"+objectType, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Push creates or updates the target object from the mapped properties.
// Contacts upsert by email; deals and companies always create.
func (c *Client) Push(ctx context.Context, req integration.PushRequest) error {
	objectType := req.Target
	if objectType == "" {
		objectType = "contacts"
	}
	if !objectTypes[objectType] {
		return integration.Errorf(integration.CategoryValidation, "unsupported object type %q", objectType)
	}

	props := make(map[string]string, len(req.Properties)+1)
	for k, v := range req.Properties {
		props[k] = v
	}

	if objectType == "contacts" {
		props["email"] = req.Email
		return c.upsertContact(ctx, props)
	}
	return c.doRequest(ctx, http.MethodPost, "/crm/v3/objects/"+objectType, crmObject{Properties: props}, nil)
}

// upsertContact searches by email and patches the existing record, or
// creates a new one when the search comes back empty.
func (c *Client) upsertContact(ctx context.Context, props map[string]string) error {
	id, err := c.findContactByEmail(ctx, props["email"])
	if err != nil {
		return err
	}
	if id != "" {
		return c.doRequest(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+id, crmObject{Properties: props}, nil)
	}
	return c.doRequest(ctx, http.MethodPost, "/crm/v3/objects/contacts", crmObject{Properties: props}, nil)
}

func (c *Client) findContactByEmail(ctx context.Context, email string) (string, error) {
	search := map[string]any{
		"filterGroups": []map[string]any{{
			"filters": []map[string]any{{
				"propertyName": "email",
				"operator":     "EQ",
				"value":        email,
			}},
		}},
		"limit": 1,
	}
	var out struct {
		Total   int         `json:"total"`
		Results []crmObject `json:"results"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", search, &out); err != nil {
		return "", err
	}
	if len(out.Results) == 0 {
		return "", nil
	}
	return out.Results[0].ID, nil
}

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
	req.Header.Set("Authorization", "Bearer "+c.token)
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
	if err := json.Unmarshal(body, &ae); err == nil && ae.Message != "" {
		detail = ae.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return integration.Errorf(integration.CategoryAuth, "hubspot rejected credentials (%d): %s", status, detail)
	case status >= 500 || status == http.StatusTooManyRequests:
		return integration.Errorf(integration.CategoryNetwork, "hubspot unavailable (%d): %s", status, detail)
	default:
		return integration.Errorf(integration.CategoryApplication, "hubspot error (%d): %s", status, detail)
	}
}
