package faceclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkipModeIsDeterministic(t *testing.T) {
	c := New("", true)

	emb1, crop, err := c.Embed(context.Background(), []byte("same image"))
	require.NoError(t, err)
	require.Len(t, emb1, 8)
	assert.Equal(t, []byte("same image"), crop)

	emb2, _, err := c.Embed(context.Background(), []byte("same image"))
	require.NoError(t, err)
	assert.Equal(t, emb1, emb2)

	other, _, err := c.Embed(context.Background(), []byte("other image"))
	require.NoError(t, err)
	assert.NotEqual(t, emb1, other)

	assert.NoError(t, c.Health(context.Background()))
}

func TestEmbedDecodesServiceResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed", r.URL.Path)
		var in struct {
			ImageB64 string `json:"image_b64"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		raw, err := base64.StdEncoding.DecodeString(in.ImageB64)
		require.NoError(t, err)
		assert.Equal(t, "jpeg bytes", string(raw))

		json.NewEncoder(w).Encode(map[string]any{
			"embedding":      []float64{0.1, 0.2},
			"faces_detected": 1,
			"crop_b64":       base64.StdEncoding.EncodeToString([]byte("crop")),
		})
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	emb, crop, err := c.Embed(context.Background(), []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, emb)
	assert.Equal(t, []byte("crop"), crop)
}

func TestEmbedNoFaceIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{}, "faces_detected": 0})
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	emb, crop, err := c.Embed(context.Background(), []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Nil(t, emb)
	assert.Nil(t, crop)
}

func TestEmbedServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	_, _, err := c.Embed(context.Background(), []byte("jpeg bytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}
