package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelper_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok", r.PostForm.Get("token"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	h := NewHelper(NewClientService(time.Second))
	resp, err := h.Post(context.Background(), server.URL, url.Values{"token": {"tok"}})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ok", string(resp.Body))
}

func TestHelper_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	h := NewHelper(NewClientService(time.Second))
	resp, err := h.Get(context.Background(), server.URL+"/status.php")
	require.NoError(t, err)
	assert.False(t, resp.OK())
}

func TestHelper_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	h := NewHelper(NewClientService(time.Second))
	_, err := h.Get(context.Background(), target)
	assert.Error(t, err)
}

func TestClientService_NewClient(t *testing.T) {
	s := NewClientService(3 * time.Second).WithTransport(http.DefaultTransport)
	c := s.NewClient()
	assert.Equal(t, 3*time.Second, c.Timeout)
	assert.Equal(t, http.DefaultTransport, c.Transport)
}
