package embedding

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/pkg/jsonutil"
)

// httpProvider calls a remote, OpenAI-compatible embeddings endpoint.
// Grounded on the teacher's openAIProvider (memory-core/embedding/openai.go).
type httpProvider struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	headers   map[string]string
	client    *http.Client
}

// HTTPOptions configures the remote embedding provider.
type HTTPOptions struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Headers   map[string]string
}

// NewHTTP constructs a remote embedding provider over opts.
func NewHTTP(opts HTTPOptions) Provider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dim := opts.Dimension
	if dim == 0 {
		dim = 1536
	}
	return &httpProvider{
		baseURL:   baseURL,
		apiKey:    opts.APIKey,
		model:     model,
		dimension: dim,
		headers:   opts.Headers,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *httpProvider) ID() string     { return "http" }
func (p *httpProvider) Model() string  { return p.model }
func (p *httpProvider) Dimension() int { return p.dimension }

func (p *httpProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, entity.New(entity.KindProviderRequest, "embedding.EmbedQuery", "empty embedding response")
	}
	return out[0], nil
}

func (p *httpProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := jsonutil.Marshal(httpEmbeddingRequest{Input: texts, Model: p.model})
	if err != nil {
		return nil, entity.Wrap(entity.KindProviderRequest, "embedding.EmbedBatch", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, entity.Wrap(entity.KindProviderRequest, "embedding.EmbedBatch", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, entity.Wrap(entity.KindProviderRequest, "embedding.EmbedBatch", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, entity.Wrap(entity.KindProviderRequest, "embedding.EmbedBatch", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, entity.New(entity.KindProviderRequest, "embedding.EmbedBatch", "remote embedding request failed: "+string(respBody))
	}

	var result httpEmbeddingResponse
	if err := jsonutil.Unmarshal(respBody, &result); err != nil {
		return nil, entity.Wrap(entity.KindProviderRequest, "embedding.EmbedBatch", err)
	}

	out := make([][]float32, len(texts))
	for _, item := range result.Data {
		if item.Index >= 0 && item.Index < len(out) {
			out[item.Index] = item.Embedding
		}
	}
	return out, nil
}

type httpEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type httpEmbeddingResponse struct {
	Data []httpEmbeddingDatum `json:"data"`
}

type httpEmbeddingDatum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}
