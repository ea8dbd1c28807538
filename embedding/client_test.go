package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Texts          []string `json:"texts"`
			Model          string   `json:"model"`
			InputType      string   `json:"input_type"`
			EmbeddingTypes []string `json:"embedding_types"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hello", "world"}, req.Texts)
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "search_document", req.InputType)
		assert.Equal(t, []string{"ubinary", "int8", "float"}, req.EmbeddingTypes)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": map[string]any{
				"float":   [][]float32{{0.1, -0.2}, {0.3, 0.4}},
				"int8":    [][]int{{12, -25}, {38, 51}},
				"ubinary": [][]int{{129}, {240}},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	})
	require.NoError(t, err)

	vectors, err := client.Embed(context.Background(), []string{"hello", "world"}, InputTypeDocument, []Format{FormatBinary, FormatInt8, FormatFloat})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{0.1, -0.2}, {0.3, 0.4}}, vectors.Float)
	assert.Equal(t, [][]int8{{12, -25}, {38, 51}}, vectors.Int8)
	assert.Equal(t, [][]byte{{0x81}, {0xF0}}, vectors.Binary)
}

func TestClientEmbedEmpty(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://invalid", APIKey: "k"})
	require.NoError(t, err)

	vectors, err := client.Embed(context.Background(), nil, InputTypeQuery, []Format{FormatFloat})
	require.NoError(t, err)
	assert.Empty(t, vectors.Float)
}

func TestClientRetriesOnTooManyRequests(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": map[string]any{
				"float": [][]float32{{1, 0}},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "k", MaxRetries: 2})
	require.NoError(t, err)

	vectors, err := client.Embed(context.Background(), []string{"x"}, InputTypeQuery, []Format{FormatFloat})
	require.NoError(t, err)
	require.Len(t, vectors.Float, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientFailsAfterMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "k", MaxRetries: 1})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"x"}, InputTypeQuery, []Format{FormatFloat})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClientNegativeMaxRetriesDisablesRetries(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "k", MaxRetries: -1})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"x"}, InputTypeQuery, []Format{FormatFloat})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 1, requests)
}

func TestClientResponseCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": map[string]any{
				"float": [][]float32{{1, 0}},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "k"})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"a", "b"}, InputTypeQuery, []Format{FormatFloat})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 float embeddings")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://x"})
	require.Error(t, err)

	_, err = NewClient(Config{APIKey: "k"})
	require.Error(t, err)

	client, err := NewClient(Config{BaseURL: "http://x", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "embed-multilingual-v3.0", client.Model())
}
