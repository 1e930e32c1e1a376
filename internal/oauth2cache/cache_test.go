package oauth2cache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anandb/mockrelay/internal/model"
)

func newTokenServer(t *testing.T, hits *int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"T","expires_in":1}`)
	}))
}

func TestGetAccessTokenFirstCallReturnsUpstreamToken(t *testing.T) {
	var hits int64
	srv := newTokenServer(t, &hits)
	defer srv.Close()

	c := NewCache(zap.NewNop())
	cfg := &model.OAuth2Config{TokenURL: srv.URL, ClientID: "id", ClientSecret: "secret"}

	tok, err := c.GetAccessToken(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "T", tok)
	assert.EqualValues(t, 1, atomic.LoadInt64(&hits))
}

func TestGetAccessTokenCachedWithinWindowSkipsFetch(t *testing.T) {
	var hits int64
	srv := newTokenServer(t, &hits)
	defer srv.Close()

	fixedNow := time.Now()
	c := NewCache(zap.NewNop())
	c.now = func() time.Time { return fixedNow }
	cfg := &model.OAuth2Config{TokenURL: srv.URL, ClientID: "id", ClientSecret: "secret"}

	_, err := c.GetAccessToken(context.Background(), cfg)
	require.NoError(t, err)

	c.now = func() time.Time { return fixedNow.Add(3000 * time.Second) }
	_, err = c.GetAccessToken(context.Background(), cfg)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt64(&hits), "expected no second fetch inside the 3300s window")
}

func TestGetAccessTokenRefetchesAfterExpiry(t *testing.T) {
	var hits int64
	srv := newTokenServer(t, &hits)
	defer srv.Close()

	fixedNow := time.Now()
	c := NewCache(zap.NewNop())
	c.now = func() time.Time { return fixedNow }
	cfg := &model.OAuth2Config{TokenURL: srv.URL, ClientID: "id", ClientSecret: "secret"}

	_, err := c.GetAccessToken(context.Background(), cfg)
	require.NoError(t, err)

	c.now = func() time.Time { return fixedNow.Add(3301 * time.Second) }
	_, err = c.GetAccessToken(context.Background(), cfg)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt64(&hits))
}

func TestGetAccessTokenNon200Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewCache(zap.NewNop())
	cfg := &model.OAuth2Config{TokenURL: srv.URL, ClientID: "id", ClientSecret: "secret"}
	_, err := c.GetAccessToken(context.Background(), cfg)
	assert.Error(t, err)
}
