package corpus

import (
	"context"
	"log/slog"
)

// EmbeddingProvider is a text-to-vector embedding backend.
type EmbeddingProvider interface {
	// Embed returns one embedding vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
	// Model returns the model identifier. It participates in cache key
	// derivation so a model change invalidates stale cache entries.
	Model() string
}

// EmbedFunc adapts a bare function to the Embed method signature so
// provider.Embed can be passed directly where a function is wanted.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// nopLogger discards all output. Components that accept an optional
// *slog.Logger fall back to it so logging is never a nil check at call sites.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
