package tls

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryAfterFromResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		header     string
		wantNil    bool
	}{
		{name: "200 OK has no retry", statusCode: http.StatusOK, wantNil: true},
		{name: "202 with seconds header", statusCode: http.StatusAccepted, header: "5"},
		{name: "202 with no header defaults to 3s", statusCode: http.StatusAccepted},
		{name: "429 with seconds header", statusCode: http.StatusTooManyRequests, header: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.statusCode, Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}

			retry := retryAfterFromResponse(resp)
			if tt.wantNil {
				assert.Nil(t, retry)
				return
			}
			require.NotNil(t, retry)
			assert.True(t, retry.At.After(time.Now()))
		})
	}
}

func TestHTTPCASession_RegisterNewAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme/new-reg", r.URL.Path)
		w.Header().Set("Location", "https://ca.example.com/acct/1")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer server.Close()

	key, err := generateRSAKey()
	require.NoError(t, err)

	session, err := newHTTPCASession(context.Background(), server.URL, key)
	require.NoError(t, err)

	reg, err := session.Register(context.Background(), []string{"mailto:admin@example.com"})
	require.NoError(t, err)
	assert.Equal(t, RegistrationCreated, reg.Outcome)
	assert.Equal(t, "https://ca.example.com/acct/1", reg.Location)
}

func TestHTTPCASession_RegisterExistingAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://ca.example.com/acct/1")
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	key, err := generateRSAKey()
	require.NoError(t, err)

	session, err := newHTTPCASession(context.Background(), server.URL, key)
	require.NoError(t, err)

	reg, err := session.Register(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RegistrationBoundExisting, reg.Outcome)
}

func TestHTTPCASession_PollChallenge_RetryThenValid(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_ = json.NewEncoder(w).Encode(Challenge{Status: StatusValid})
	}))
	defer server.Close()

	key, err := generateRSAKey()
	require.NoError(t, err)
	session, err := newHTTPCASession(context.Background(), server.URL, key)
	require.NoError(t, err)

	httpSession := session.(*httpCASession)

	status, retry, err := httpSession.PollChallenge(context.Background(), "example.com", Challenge{Token: "tok"})
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, StatusPending, status)

	status, retry, err = httpSession.PollChallenge(context.Background(), "example.com", Challenge{Token: "tok"})
	require.NoError(t, err)
	assert.Nil(t, retry)
	assert.Equal(t, StatusValid, status)
}
