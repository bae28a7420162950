package moderation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analytics-go/internal/types"
)

func moderationServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body.Input)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url string, strict bool) *Client {
	t.Helper()
	c, err := New(Config{URL: url, APIKey: "k", Strict: strict, HTTPTimeout: 2 * time.Second, MaxRetryTime: 3 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(Config{URL: "http://x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCheckSafe(t *testing.T) {
	srv := moderationServer(t, `{"results":[{"flagged":false,"categories":{"hate":false},"category_scores":{"hate":0.05}}]}`)
	v, err := newTestClient(t, srv.URL, false).Check(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, types.Safe(), v)
}

func TestCheckFlaggedCategories(t *testing.T) {
	srv := moderationServer(t, `{"results":[{"flagged":true,"categories":{"violence":true,"harassment":true,"hate":false}}]}`)
	v, err := newTestClient(t, srv.URL, false).Check(context.Background(), "text")
	require.NoError(t, err)
	assert.True(t, v.IsFlagged())
	assert.Equal(t, []string{"harassment", "violence"}, v.Categories)
}

func TestCheckFlaggedWithoutCategory(t *testing.T) {
	srv := moderationServer(t, `{"results":[{"flagged":true,"categories":{}}]}`)
	v, err := newTestClient(t, srv.URL, false).Check(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []string{types.UnknownCategory}, v.Categories)
}

func TestCheckStrictMode(t *testing.T) {
	reply := `{"results":[{"flagged":false,"categories":{"hate":false},"category_scores":{"hate":0.25,"violence":0.02}}]}`

	v, err := newTestClient(t, moderationServer(t, reply).URL, true).Check(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []string{"hate_warning"}, v.Categories)

	v, err = newTestClient(t, moderationServer(t, reply).URL, false).Check(context.Background(), "text")
	require.NoError(t, err)
	assert.False(t, v.IsFlagged())
}

func TestCheckErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()
	_, err := newTestClient(t, srv.URL, false).Check(context.Background(), "text")
	assert.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())

	empty := moderationServer(t, `{"results":[]}`)
	_, err = newTestClient(t, empty.URL, false).Check(context.Background(), "text")
	assert.Error(t, err)

	garbled := moderationServer(t, `not json`)
	_, err = newTestClient(t, garbled.URL, false).Check(context.Background(), "text")
	assert.Error(t, err)
}

func TestCheckRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "oops", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"results":[{"flagged":false}]}`)
	}))
	defer srv.Close()

	v, err := newTestClient(t, srv.URL, false).Check(context.Background(), "text")
	require.NoError(t, err)
	assert.False(t, v.IsFlagged())
	assert.EqualValues(t, 2, hits.Load())
}

func TestMock(t *testing.T) {
	v, err := Mock{}.Check(context.Background(), "Thanks for your help today")
	require.NoError(t, err)
	assert.False(t, v.IsFlagged())

	v, err = Mock{}.Check(context.Background(), "You are an IDIOT and I will KILL this account")
	require.NoError(t, err)
	assert.Equal(t, []string{"harassment", "violence"}, v.Categories)

	v, err = Mock{Keywords: map[string]string{"refund": "policy"}}.Check(context.Background(), "I want a refund")
	require.NoError(t, err)
	assert.Equal(t, []string{"policy"}, v.Categories)
}
