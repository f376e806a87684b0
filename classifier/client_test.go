package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDecodesVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"allowed":false,"label":"not_a_card","score":0.93}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	verdict, err := client.Check(context.Background(), []byte("image-bytes"))
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, "not_a_card", verdict.Label)
	assert.InDelta(t, 0.93, verdict.Score, 0.001)
}

func TestCheckRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.Check(context.Background(), []byte("image-bytes"))
	assert.Error(t, err)
}

func TestCheckRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.Check(context.Background(), []byte("image-bytes"))
	assert.Error(t, err)
}
