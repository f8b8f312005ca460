package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func vec(fill float32) []float32 {
	v := make([]float32, Dimensions)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		out := embedResponse{Embeddings: make([][]float32, len(req.Texts))}
		for i := range req.Texts {
			out.Embeddings[i] = vec(float32(i))
		}
		require.NoError(t, json.NewEncoder(w).Encode(out))
	}))
	defer srv.Close()

	c := New(srv.URL)
	vectors, err := c.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	require.Len(t, vectors[0], Dimensions)
	require.Equal(t, float32(1), vectors[1][0])
}

func TestEmbedEmptyBatch(t *testing.T) {
	c := New("http://unused.invalid")
	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vectors)
}

func TestEmbedOversizedBatch(t *testing.T) {
	c := New("http://unused.invalid")
	_, err := c.Embed(context.Background(), make([]string, MaxBatch+1))
	require.Error(t, err)
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{vec(0.5)},
		}))
	}))
	defer srv.Close()

	c := New(srv.URL)
	vectors, err := c.Embed(context.Background(), []string{"retry me"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	require.Equal(t, 3, calls)
}

func TestEmbedDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Embed(context.Background(), []string{"bad"})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestEmbedVectorCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{vec(0)},
		}))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Embed(context.Background(), []string{"one", "two"})
	require.ErrorContains(t, err, "1 vectors for 2 texts")
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).Healthy(context.Background()))
}
