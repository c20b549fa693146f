//nolint:funlen // ok for tests
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Complete(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Push in T12.  "}}]}`))
	}))
	defer srv.Close()

	c, err := New(WithEndpoint(srv.URL), WithAPIKey("secret"))
	require.NoError(t, err)

	answer, err := c.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "hello"},
		},
		Temperature: 0.7,
		MaxTokens:   150,
	})
	require.NoError(t, err)
	assert.Equal(t, "Push in T12.", answer)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 150, got.MaxTokens)
	assert.Len(t, got.Messages, 2)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name: "api error", status: http.StatusTooManyRequests, body: "slow down",
			check: func(t *testing.T, err error) {
				t.Helper()
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
				assert.Equal(t, "slow down", apiErr.Body)
			},
		},
		{
			name: "no choices", status: http.StatusOK, body: `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.ErrorIs(t, err, ErrEmptyResponse)
			},
		},
		{
			name: "invalid json", status: http.StatusOK, body: `{"choices":`,
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.Error(t, err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			c, err := New(WithEndpoint(srv.URL), WithAPIKey("k"), WithModel("test-model"))
			require.NoError(t, err)
			_, err = c.Complete(context.Background(), Request{})
			tt.check(t, err)
		})
	}
}

func TestNew_MissingKey(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
