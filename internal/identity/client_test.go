package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/gfranca/barberhub/pkg/errors"
)

func TestNewHTTPClientValidatesConfig(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{ServiceKey: "key"})
	require.Error(t, err)

	_, err = NewHTTPClient(HTTPConfig{BaseURL: "http://localhost"})
	require.Error(t, err)

	client, err := NewHTTPClient(HTTPConfig{BaseURL: "http://localhost/", ServiceKey: "key"})
	require.NoError(t, err)
	require.Equal(t, "http://localhost", client.baseURL)
}

func TestHTTPClientCreateUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/admin/users", r.URL.Path)
		require.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "a@x.com", body["email"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ProviderUser{ID: "prov-1", Email: body["email"]})
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPConfig{BaseURL: server.URL, ServiceKey: "service-key"})
	require.NoError(t, err)

	user, err := client.CreateUser(context.Background(), "a@x.com", "Abc123456!@#")
	require.NoError(t, err)
	require.Equal(t, "prov-1", user.ID)
	require.Equal(t, "a@x.com", user.Email)
}

func TestHTTPClientMapsErrorStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/users/verify":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPConfig{BaseURL: server.URL, ServiceKey: "key"})
	require.NoError(t, err)

	_, err = client.VerifyPassword(context.Background(), "a@x.com", "wrong")
	require.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized.Code))

	err = client.ResetPassword(context.Background(), "a@x.com")
	require.True(t, apperrors.IsCode(err, "EXTERNAL_SERVICE_ERROR"))
}

func TestStubClientRoundTrip(t *testing.T) {
	stub := NewStubClient()
	ctx := context.Background()

	user, err := stub.CreateUser(ctx, "Owner@Example.com", "Abc123456!@#")
	require.NoError(t, err)
	require.Equal(t, "owner@example.com", user.Email)

	_, err = stub.CreateUser(ctx, "owner@example.com", "Abc123456!@#")
	require.True(t, apperrors.IsCode(err, "DUPLICATE_EMAIL"))

	verified, err := stub.VerifyPassword(ctx, "owner@example.com", "Abc123456!@#")
	require.NoError(t, err)
	require.Equal(t, user.ID, verified.ID)

	_, err = stub.VerifyPassword(ctx, "owner@example.com", "wrong")
	require.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized.Code))

	require.NoError(t, stub.DeleteUser(ctx, user.ID))
	require.Contains(t, stub.Deleted, user.ID)

	_, err = stub.VerifyPassword(ctx, "owner@example.com", "Abc123456!@#")
	require.Error(t, err)
}
