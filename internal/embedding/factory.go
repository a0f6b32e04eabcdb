package embedding

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// New builds the embedder selected by cfg.Provider, wrapped in a
// CachedEmbedder when cfg.CacheSize is positive.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		inner Embedder
		err   error
	)
	switch cfg.Provider {
	case config.ProviderONNX:
		inner, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case config.ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(OpenAIConfig{
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey(),
			Dimensions:  cfg.Dimensions,
			BatchSize:   cfg.BatchSize,
			Concurrency: cfg.Concurrency,
			MaxRetries:  cfg.MaxRetries,
		})
	case config.ProviderMock:
		inner = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrInvalidConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s embedder: %w", cfg.Provider, err)
	}
	logger.Info("embedder ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", inner.ModelName()),
		zap.Int("dimensions", inner.Dimensions()))

	if cfg.CacheSize <= 0 {
		return inner, nil
	}
	cached, err := NewCachedEmbedder(inner, cfg.CacheSize)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	return cached, nil
}
