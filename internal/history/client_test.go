package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/internal/models"
	"pairchat/internal/session"
)

func TestFetchHistoryMapsMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/bob", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[
			{"id":"m1","sender_id":"bob","recipient_id":"alice","text":"hi","timestamp":"2026-01-02T10:00:00Z"},
			{"id":"m2","sender_id":"alice","recipient_id":"bob","text":"hey","timestamp":"2026-01-02T10:00:05Z"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	msgs, err := c.FetchHistory(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, models.OriginHistory, msgs[0].Origin)
	assert.Equal(t, models.StatusDelivered, msgs[0].Status)
	assert.Equal(t, time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), msgs[0].Timestamp)
	assert.Equal(t, models.StatusDelivered, msgs[1].Status)
}

func TestFetchHistoryUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "expired")
	_, err := c.FetchHistory(context.Background(), "alice", "bob")
	require.ErrorIs(t, err, session.ErrUnauthorized)
}

func TestFetchHistoryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.FetchHistory(context.Background(), "alice", "bob")
	require.ErrorIs(t, err, session.ErrHistoryUnavailable)
}

func TestFetchHistoryConnectionRefused(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "tok")
	_, err := c.FetchHistory(context.Background(), "alice", "bob")
	require.ErrorIs(t, err, session.ErrHistoryUnavailable)
}

func TestFetchHistoryMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.FetchHistory(context.Background(), "alice", "bob")
	require.ErrorIs(t, err, session.ErrHistoryUnavailable)
}
