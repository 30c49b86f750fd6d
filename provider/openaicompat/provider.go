// Package openaicompat implements corpus.EmbeddingProvider against any
// OpenAI-compatible embeddings endpoint (OpenAI, Azure, vLLM, Ollama,
// LM Studio, OpenRouter, and similar).
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	corpus "github.com/solumlabs/corpus"
)

// Option configures an Embedding provider.
type Option func(*Embedding)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Embedding) { e.httpClient = c }
}

// WithName overrides the provider name reported in errors and logs
// (default "openai-compat").
func WithName(name string) Option {
	return func(e *Embedding) { e.name = name }
}

// Embedding implements corpus.EmbeddingProvider over the POST /embeddings
// wire contract.
type Embedding struct {
	baseURL    string
	apiKey     string
	model      string
	dims       int
	name       string
	httpClient *http.Client
}

var _ corpus.EmbeddingProvider = (*Embedding)(nil)

// NewEmbedding creates an embedding provider. baseURL is the API root
// (e.g. "https://api.openai.com/v1"); apiKey may be empty for local servers.
func NewEmbedding(baseURL, apiKey, model string, dims int, opts ...Option) *Embedding {
	e := &Embedding{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		dims:       dims,
		name:       "openai-compat",
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Name returns the configured provider name.
func (e *Embedding) Name() string { return e.name }

// Model returns the embedding model identifier.
func (e *Embedding) Model() string { return e.model }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed sends all texts in one request and returns the vectors in input
// order. Non-2xx responses come back as *corpus.ErrHTTP so the retry
// middleware can read the status and Retry-After delay.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, &corpus.ErrProvider{Provider: e.name, Message: "marshal embed body: " + err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, &corpus.ErrProvider{Provider: e.name, Message: "create embed request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, &corpus.ErrProvider{Provider: e.name, Message: "embed request failed: " + err.Error()}
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &corpus.ErrProvider{Provider: e.name, Message: "read embed response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &corpus.ErrHTTP{
			Status:     resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: corpus.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &corpus.ErrProvider{Provider: e.name, Message: "parse embed response: " + err.Error()}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &corpus.ErrProvider{
			Provider: e.name,
			Message:  fmt.Sprintf("embed returned %d vectors for %d inputs", len(parsed.Data), len(texts)),
		}
	}

	// The API may return entries out of order; place each by index.
	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, &corpus.ErrProvider{
				Provider: e.name,
				Message:  fmt.Sprintf("embed returned out-of-range index %d", d.Index),
			}
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
