package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

func TestNew_mockWithCache(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: config.ProviderMock, Dimensions: 8, CacheSize: 4}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("New() = %T, want *CachedEmbedder", e)
	}
	if e.Dimensions() != 8 || e.ModelName() != "mock" {
		t.Errorf("Dimensions=%d ModelName=%q", e.Dimensions(), e.ModelName())
	}
	v, err := e.Embed(context.Background(), "hello")
	if err != nil || len(v) != 8 {
		t.Fatalf("Embed: %v len=%d", err, len(v))
	}
}

func TestNew_mockWithoutCache(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: config.ProviderMock, Dimensions: 8}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := e.(*MockEmbedder); !ok {
		t.Errorf("New() = %T, want *MockEmbedder", e)
	}
}

func TestNew_unknownProvider(t *testing.T) {
	_, err := New(config.EmbeddingConfig{Provider: "word2vec", Dimensions: 8}, nil)
	if !errors.Is(err, models.ErrInvalidConfiguration) {
		t.Errorf("New() error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestNew_openAIWithoutKey(t *testing.T) {
	t.Setenv("KOTAE_TEST_EMPTY_KEY", "")
	_, err := New(config.EmbeddingConfig{Provider: config.ProviderOpenAI, Dimensions: 8, APIKeyEnv: "KOTAE_TEST_EMPTY_KEY"}, nil)
	if err == nil {
		t.Fatal("expected error without api key")
	}
}
