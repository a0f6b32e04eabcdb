package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/hyperjump/kotae/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	defaultOpenAIModel       = "text-embedding-3-small"
	defaultOpenAIBatchSize   = 64
	defaultOpenAIConcurrency = 4
	defaultOpenAIBackoff     = 200 * time.Millisecond
)

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	Model       string
	BaseURL     string
	APIKey      string
	Dimensions  int
	BatchSize   int
	Concurrency int
	MaxRetries  uint64
	Backoff     time.Duration
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIEmbedder creates an embedder. Dimensions must be known up front so
// the index can be sized before the first request.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is not set")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultOpenAIBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultOpenAIConcurrency
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultOpenAIBackoff
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

// Embed returns the embedding of a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch splits texts into requests of BatchSize and runs up to
// Concurrency requests at once. Output order matches input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(e.cfg.Concurrency)
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))
		group.Go(func() error {
			vecs, err := e.request(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, input []string) ([][]float32, error) {
	backoff := retry.WithMaxRetries(e.cfg.MaxRetries, retry.NewExponential(e.cfg.Backoff))
	var resp openai.EmbeddingResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, callErr := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model:      openai.EmbeddingModel(e.cfg.Model),
			Input:      input,
			Dimensions: e.requestDimensions(),
		})
		if callErr != nil {
			if retryable(callErr) {
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(input), len(resp.Data))
	}
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != e.cfg.Dimensions {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(d.Embedding), e.cfg.Dimensions)
		}
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		utils.NormalizeL2(v)
		vecs[i] = v
	}
	return vecs, nil
}

// requestDimensions only asks for a reduced size on models that support it.
func (e *OpenAIEmbedder) requestDimensions() int {
	switch e.cfg.Model {
	case "text-embedding-3-small", "text-embedding-3-large":
		return e.cfg.Dimensions
	}
	return 0
}

// retryable reports whether err is a rate limit or server-side failure.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// ModelName returns "openai-" followed by the model name.
func (e *OpenAIEmbedder) ModelName() string {
	return "openai-" + e.cfg.Model
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
