package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/integration"
)

func TestTestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/contacts", r.URL.Path)
		assert.Equal(t, "Bearer pat-na1-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("pat-na1-token", srv.URL, nil)
	assert.Equal(t, form.ProviderHubSpot, c.Provider())
	assert.NoError(t, c.TestConnection(context.Background()))
}

func TestTestConnectionExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(apiError{
			Status:   "error",
			Message:  "Authentication credentials not found.",
			Category: "INVALID_AUTHENTICATION",
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("expired", srv.URL, nil)
	err := c.TestConnection(context.Background())

	var ierr *integration.Error
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, integration.CategoryAuth, ierr.Category)
	assert.Contains(t, ierr.Message, "Authentication credentials not found")
}

func TestProperties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/properties/deals", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"results": []Property{
				{Name: "dealname", Label: "Deal Name", Type: "string", FieldType: "text"},
				{Name: "amount", Label: "Amount", Type: "number", FieldType: "number"},
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("token", srv.URL, nil)
	props, err := c.Properties(context.Background(), "deals")
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, "dealname", props[0].Name)
}

func TestPropertiesUnknownObjectType(t *testing.T) {
	c := NewClientWithBaseURL("token", "http://unused.invalid", nil)
	_, err := c.Properties(context.Background(), "tickets")

	var ierr *integration.Error
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, integration.CategoryValidation, ierr.Category)
}

func TestPushCreatesNewContact(t *testing.T) {
	var created crmObject
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crm/v3/objects/contacts/search":
			json.NewEncoder(w).Encode(map[string]any{"total": 0, "results": []any{}})
		case "/crm/v3/objects/contacts":
			assert.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(crmObject{ID: "501"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("token", srv.URL, nil)
	err := c.Push(context.Background(), integration.PushRequest{
		Target: "contacts",
		Email:  "jane@example.com",
		Properties: map[string]string{
			"firstname": "Jane",
			"lastname":  "Doe",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", created.Properties["email"])
	assert.Equal(t, "Jane", created.Properties["firstname"])
}

func TestPushUpdatesExistingContact(t *testing.T) {
	var patchedPath string
	var patched crmObject
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/crm/v3/objects/contacts/search":
			var search struct {
				FilterGroups []struct {
					Filters []struct {
						PropertyName string `json:"propertyName"`
						Value        string `json:"value"`
					} `json:"filters"`
				} `json:"filterGroups"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&search))
			assert.Equal(t, "jane@example.com", search.FilterGroups[0].Filters[0].Value)
			json.NewEncoder(w).Encode(map[string]any{
				"total":   1,
				"results": []crmObject{{ID: "501"}},
			})
		case r.Method == http.MethodPatch:
			patchedPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			json.NewEncoder(w).Encode(crmObject{ID: "501"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("token", srv.URL, nil)
	err := c.Push(context.Background(), integration.PushRequest{
		Target:     "contacts",
		Email:      "jane@example.com",
		Properties: map[string]string{"firstname": "Janet"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/crm/v3/objects/contacts/501", patchedPath)
	assert.Equal(t, "Janet", patched.Properties["firstname"])
}

func TestPushCreatesDeal(t *testing.T) {
	var created crmObject
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/deals", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(crmObject{ID: "77"})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("token", srv.URL, nil)
	err := c.Push(context.Background(), integration.PushRequest{
		Target:     "deals",
		Email:      "jane@example.com",
		Properties: map[string]string{"dealname": "Website inquiry"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Website inquiry", created.Properties["dealname"])
	_, hasEmail := created.Properties["email"]
	assert.False(t, hasEmail, "deals carry only mapped properties")
}

func TestPushEmptyTargetDefaultsToContacts(t *testing.T) {
	sawSearch := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crm/v3/objects/contacts/search":
			sawSearch = true
			json.NewEncoder(w).Encode(map[string]any{"total": 0, "results": []any{}})
		case "/crm/v3/objects/contacts":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(crmObject{ID: "1"})
		}
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("token", srv.URL, nil)
	err := c.Push(context.Background(), integration.PushRequest{Email: "jane@example.com"})
	require.NoError(t, err)
	assert.True(t, sawSearch)
}

func TestPushPropertyValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/crm/v3/objects/contacts/search" {
			json.NewEncoder(w).Encode(map[string]any{"total": 0, "results": []any{}})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiError{
			Status:   "error",
			Message:  `Property values were not valid: [{"isValid":false,"name":"amount"}]`,
			Category: "VALIDATION_ERROR",
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("token", srv.URL, nil)
	err := c.Push(context.Background(), integration.PushRequest{
		Target:     "contacts",
		Email:      "jane@example.com",
		Properties: map[string]string{"amount": "not-a-number"},
	})

	var ierr *integration.Error
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, integration.CategoryApplication, ierr.Category)
}
