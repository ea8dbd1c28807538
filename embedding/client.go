package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Client is an Embedder backed by a Cohere-compatible HTTP embeddings
// endpoint (POST {base}/embed).
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// Config configures the embeddings client.
type Config struct {
	// BaseURL of the API, without the trailing /embed.
	BaseURL string
	// APIKey is sent as a bearer token. Required.
	APIKey string
	// Model identifies the embedding model. Defaults to
	// "embed-multilingual-v3.0".
	Model string
	// Timeout bounds a single HTTP request. Defaults to 30s.
	Timeout time.Duration
	// MaxRetries bounds retries on 429/5xx responses. The zero value
	// defaults to 5; a negative value disables retries entirely.
	MaxRetries int
	// RequestsPerSecond throttles outgoing requests. Zero disables
	// client-side throttling.
	RequestsPerSecond float64
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing API key")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("missing base URL")
	}
	if cfg.Model == "" {
		cfg.Model = "embed-multilingual-v3.0"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		client:     &http.Client{Timeout: timeout},
		limiter:    limiter,
		maxRetries: maxRetries,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

type embedRequest struct {
	Texts          []string `json:"texts"`
	Model          string   `json:"model"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
}

// Wire shapes: binary embeddings arrive as arrays of 0..255 integers, which
// must not be decoded into []byte (JSON would expect base64 there).
type embedResponse struct {
	Embeddings struct {
		Float   [][]float32 `json:"float"`
		Int8    [][]int8    `json:"int8"`
		UBinary [][]int16   `json:"ubinary"`
	} `json:"embeddings"`
}

// Embed implements Embedder.
func (c *Client) Embed(ctx context.Context, texts []string, input InputType, formats []Format) (*Vectors, error) {
	if len(texts) == 0 {
		return &Vectors{}, nil
	}

	types := make([]string, len(formats))
	for i, f := range formats {
		types[i] = string(f)
	}

	body, err := json.Marshal(embedRequest{
		Texts:          texts,
		Model:          c.model,
		InputType:      string(input),
		EmbeddingTypes: types,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, body)
	if err != nil {
		return nil, err
	}

	return c.decode(resp, len(texts), formats)
}

func (c *Client) do(ctx context.Context, body []byte) (*embedResponse, error) {
	url := c.baseURL + "/embed"

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < c.maxRetries && ctx.Err() == nil {
				if err := sleepCtx(ctx, retryDelay(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			// Respect Retry-After if provided.
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()

			if attempt < c.maxRetries {
				if err := sleepCtx(ctx, delay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("embed request failed: %s", resp.Status)
		}

		if resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("embed request failed: %s", resp.Status)
		}

		var decoded embedResponse
		err = json.NewDecoder(resp.Body).Decode(&decoded)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode embed response: %w", err)
		}
		return &decoded, nil
	}
}

func (c *Client) decode(resp *embedResponse, count int, formats []Format) (*Vectors, error) {
	out := &Vectors{}

	for _, f := range formats {
		switch f {
		case FormatFloat:
			if len(resp.Embeddings.Float) != count {
				return nil, fmt.Errorf("embed response: expected %d float embeddings, got %d", count, len(resp.Embeddings.Float))
			}
			out.Float = resp.Embeddings.Float
		case FormatInt8:
			if len(resp.Embeddings.Int8) != count {
				return nil, fmt.Errorf("embed response: expected %d int8 embeddings, got %d", count, len(resp.Embeddings.Int8))
			}
			out.Int8 = resp.Embeddings.Int8
		case FormatBinary:
			if len(resp.Embeddings.UBinary) != count {
				return nil, fmt.Errorf("embed response: expected %d binary embeddings, got %d", count, len(resp.Embeddings.UBinary))
			}
			out.Binary = make([][]byte, count)
			for i, vals := range resp.Embeddings.UBinary {
				code := make([]byte, len(vals))
				for j, v := range vals {
					if v < 0 || v > 255 {
						return nil, fmt.Errorf("embed response: binary byte out of range: %d", v)
					}
					code[j] = byte(v)
				}
				out.Binary[i] = code
			}
		default:
			return nil, fmt.Errorf("unknown embedding format: %q", f)
		}
	}

	return out, nil
}

func retryDelay(attempt int) time.Duration {
	d := time.Duration(1<<attempt) * 500 * time.Millisecond
	if d > 16*time.Second {
		d = 16 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
