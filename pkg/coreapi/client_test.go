package coreapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(&Config{
		BaseURL:      server.URL,
		Timeout:      5 * time.Second,
		ServiceToken: "service-token",
	}, zap.NewNop())
}

func TestGetDecodesResponse(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/things", r.URL.Path)
		assert.Equal(t, "st-1", r.URL.Query().Get("stationId"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"battery"}`))
	})

	var out struct {
		Name string `json:"name"`
	}
	err := client.Get(context.Background(), "/api/v1/things", url.Values{"stationId": {"st-1"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "battery", out.Name)
}

func TestUserTokenPreferredOverServiceToken(t *testing.T) {
	var gotAuth string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	ctx := WithUserToken(context.Background(), "user-token")
	require.NoError(t, client.Get(ctx, "/x", nil, nil))
	assert.Equal(t, "Bearer user-token", gotAuth)

	require.NoError(t, client.Get(context.Background(), "/x", nil, nil))
	assert.Equal(t, "Bearer service-token", gotAuth)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   *errors.AppError
	}{
		{http.StatusUnauthorized, errors.ErrCoreAuthExpired},
		{http.StatusForbidden, errors.ErrCoreForbidden},
		{http.StatusBadRequest, errors.ErrCoreValidation},
		{http.StatusUnprocessableEntity, errors.ErrCoreValidation},
		{http.StatusNotFound, errors.ErrCoreNotFound},
		{http.StatusConflict, errors.ErrSwapConflict},
		{http.StatusInternalServerError, errors.ErrCoreUnavailable},
		{http.StatusBadGateway, errors.ErrCoreUnavailable},
	}
	for _, tt := range tests {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		err := client.Get(context.Background(), "/x", nil, nil)
		assert.True(t, errors.Is(err, tt.want), "status=%d", tt.status)
	}
}

func TestUpstreamMessageSurfaces(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"vin already registered"}`))
	})

	err := client.Get(context.Background(), "/x", nil, nil)
	appErr := errors.GetAppError(err)
	assert.Equal(t, errors.ErrCoreValidation.Code, appErr.Code)
	assert.Equal(t, "vin already registered", appErr.Message)
}

func TestAuthExpiredHookFiresForUserToken(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	var expired []string
	client.OnAuthExpired(func(ctx context.Context, token string) {
		expired = append(expired, token)
	})

	ctx := WithUserToken(context.Background(), "user-token")
	err := client.Get(ctx, "/x", nil, nil)
	assert.True(t, errors.Is(err, errors.ErrCoreAuthExpired))
	assert.Equal(t, []string{"user-token"}, expired)
}

func TestAuthExpiredHookSkippedForServiceToken(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	called := false
	client.OnAuthExpired(func(ctx context.Context, token string) { called = true })

	// a rejected service token is a deployment problem, not a user session
	err := client.Get(context.Background(), "/x", nil, nil)
	assert.True(t, errors.Is(err, errors.ErrCoreAuthExpired))
	assert.False(t, called)
}

func TestConnectionErrorMapsToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // nothing listening anymore

	client := New(&Config{BaseURL: server.URL, Timeout: time.Second}, zap.NewNop())
	err := client.Get(context.Background(), "/x", nil, nil)
	assert.True(t, errors.Is(err, errors.ErrCoreUnavailable))
}

func TestDeleteSendsBody(t *testing.T) {
	var gotBody map[string]string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.Delete(context.Background(), "/x", map[string]string{"reason": "NoShow"})
	require.NoError(t, err)
	assert.Equal(t, "NoShow", gotBody["reason"])
}

func TestDoMultipart(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(8<<20))
		assert.Equal(t, "st-1", r.FormValue("stationId"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "card.jpg", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte("jpeg-bytes"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var out struct {
		OK bool `json:"ok"`
	}
	err := client.DoMultipart(context.Background(), "/scan",
		map[string]string{"stationId": "st-1"},
		[]FilePart{{FieldName: "image", FileName: "card.jpg", Data: []byte("jpeg-bytes")}},
		&out,
	)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"message":"plain"}`, "plain"},
		{`{"error":{"message":"nested"}}`, "nested"},
		{`{"title":"Bad Request","detail":"vin is required"}`, "vin is required"},
		{`{"title":"Bad Request"}`, "Bad Request"},
		{`not json`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractMessage([]byte(tt.body)), "body=%s", tt.body)
	}
}
