package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPyroscope_ConfigErrors(t *testing.T) {
	_, err := NewPyroscope(PyroscopeConfig{AppName: "app"})
	assert.ErrorIs(t, err, ErrMissingServer)

	_, err = NewPyroscope(PyroscopeConfig{ServerAddress: "http://localhost:4040"})
	assert.ErrorIs(t, err, ErrMissingAppName)
}

func TestPyroscope_SendIngestRequest(t *testing.T) {
	type captured struct {
		path  string
		query map[string]string
		auth  string
		ctype string
	}
	var got atomic.Pointer[captured]

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		got.Store(&captured{
			path:  r.URL.Path,
			query: q,
			auth:  r.Header.Get("Authorization"),
			ctype: r.Header.Get("Content-Type"),
		})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewPyroscope(PyroscopeConfig{
		ServerAddress: srv.URL,
		AppName:       "myapp",
		AuthToken:     "token123",
		Labels:        map[string]string{"env": "prod", "az": "eu-1"},
		Options:       fastOptions(),
	})
	require.NoError(t, err)

	before := time.Now().Unix()
	p := testProfile(t)
	require.True(t, b.Send(context.Background(), p))

	req := got.Load()
	require.NotNil(t, req)
	assert.Equal(t, "/ingest", req.path)
	assert.Equal(t, "myapp", req.query["name"])
	assert.Equal(t, "az=eu-1,env=prod", req.query["labels"], "labels are comma-joined and key-sorted")
	assert.Equal(t, "Bearer token123", req.auth)
	assert.Equal(t, "text/plain", req.ctype, "default formatter is collapsed")

	from, err := strconv.ParseInt(req.query["from"], 10, 64)
	require.NoError(t, err)
	until, err := strconv.ParseInt(req.query["until"], 10, 64)
	require.NoError(t, err)
	assert.Equal(t, p.Timestamp().Unix(), from, "from is the profile capture timestamp")
	assert.GreaterOrEqual(t, until, before)
	assert.LessOrEqual(t, from, until)
}

func TestPyroscope_NoLabelsOmitsParameter(t *testing.T) {
	var hasLabels atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasLabels.Store(r.URL.Query().Has("labels"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewPyroscope(PyroscopeConfig{
		ServerAddress: srv.URL,
		AppName:       "myapp",
		Options:       fastOptions(),
	})
	require.NoError(t, err)

	require.True(t, b.Send(context.Background(), testProfile(t)))
	assert.False(t, hasLabels.Load())
}

func TestPyroscope_RetryBound(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b, err := NewPyroscope(PyroscopeConfig{
		ServerAddress: srv.URL,
		AppName:       "myapp",
		Options:       Options{MaxRetries: 1, RetryDelay: time.Millisecond},
	})
	require.NoError(t, err)

	assert.False(t, b.Send(context.Background(), testProfile(t)))
	assert.Equal(t, int64(2), attempts.Load())
}

func TestJoinLabels(t *testing.T) {
	assert.Empty(t, joinLabels(nil))
	assert.Equal(t, "a=1", joinLabels(map[string]string{"a": "1"}))
	assert.Equal(t, "a=1,b=2,c=3", joinLabels(map[string]string{"c": "3", "a": "1", "b": "2"}))
}
