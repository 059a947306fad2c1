package faceclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls the face detection/embedding microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip enabled no requests leave the process and
// Embed derives a deterministic embedding from the image bytes, so dev setups
// work without the service while distinct images still look distinct.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

// Embed detects faces in the image and returns the descriptor and cropped
// region of the first one. The service orders detections top-most then
// left-most, so "first" is deterministic. Empty results mean no face was
// found; that is not an error at this layer.
func (c *Client) Embed(ctx context.Context, image []byte) ([]float64, []byte, error) {
	if c.Skip {
		return stubEmbedding(image), image, nil
	}
	if len(image) == 0 {
		return nil, nil, fmt.Errorf("image required")
	}

	body, _ := json.Marshal(map[string]string{
		"image_b64": base64.StdEncoding.EncodeToString(image),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("face service error %s: %s", resp.Status, string(respBody))
	}

	var out struct {
		Embedding     []float64 `json:"embedding"`
		FacesDetected int       `json:"faces_detected"`
		CropB64       string    `json:"crop_b64"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.FacesDetected == 0 || len(out.Embedding) == 0 {
		return nil, nil, nil
	}
	var crop []byte
	if out.CropB64 != "" {
		if decoded, err := base64.StdEncoding.DecodeString(out.CropB64); err == nil {
			crop = decoded
		}
	}
	return out.Embedding, crop, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}

	return nil
}

// stubEmbedding maps the image hash onto an 8-dim vector. Identical images
// always produce identical embeddings; different images land far apart with
// overwhelming probability.
func stubEmbedding(image []byte) []float64 {
	sum := sha256.Sum256(image)
	emb := make([]float64, 8)
	for i := range emb {
		emb[i] = float64(sum[i]) / 255.0
	}
	return emb
}
