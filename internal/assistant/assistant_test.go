package assistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/velikandr/analyst-bot/internal/errs"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-key", srv.URL+"/v1", "test-model", 800, 5*time.Second, zap.NewNop())
}

func TestAskMissingCredential(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	c := New("", srv.URL+"/v1", "test-model", 800, 5*time.Second, zap.NewNop())
	_, err := c.Ask(context.Background(), "вопрос")

	var cfgErr *errs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "OPENROUTER_API_KEY", cfgErr.Key)
	require.False(t, called, "no network call may happen without a credential")
}

func TestAskReturnsFirstChoiceContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Привет!"}}]}`))
	})

	answer, err := c.Ask(context.Background(), "вопрос")
	require.NoError(t, err)
	require.Equal(t, "Привет!", answer)
}

func TestAskFallsBackToRawResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"resp-42","choices":[]}`))
	})

	answer, err := c.Ask(context.Background(), "вопрос")
	require.NoError(t, err)
	require.Contains(t, answer, "resp-42")
}

func TestAskServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})

	_, err := c.Ask(context.Background(), "вопрос")

	var svcErr *errs.ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "completion", svcErr.Service)
}
