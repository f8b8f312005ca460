// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/carrelhq/carrel/internal/blob"
	"github.com/carrelhq/carrel/internal/broker"
	"github.com/carrelhq/carrel/internal/config"
	"github.com/carrelhq/carrel/internal/embedder"
	"github.com/carrelhq/carrel/internal/pipeline"
	"github.com/carrelhq/carrel/internal/search"
	"github.com/carrelhq/carrel/internal/store"
	"github.com/carrelhq/carrel/internal/tika"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store        *store.Store
	Blob         *blob.Store
	Broker       *broker.Broker
	Embedder     *embedder.Client
	Tika         *tika.Client
	Orchestrator *pipeline.Orchestrator
	Search       *search.Engine
	Config       *config.Manager
	Logger       *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the relational store from context.
func StoreFrom(ctx context.Context) *store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// BlobFrom extracts the object store from context.
func BlobFrom(ctx context.Context) *blob.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Blob
	}
	return nil
}

// BrokerFrom extracts the queue and event broker from context.
func BrokerFrom(ctx context.Context) *broker.Broker {
	if s := ServicesFrom(ctx); s != nil {
		return s.Broker
	}
	return nil
}

// EmbedderFrom extracts the embedding client from context.
func EmbedderFrom(ctx context.Context) *embedder.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Embedder
	}
	return nil
}

// TikaFrom extracts the fallback extractor client from context.
func TikaFrom(ctx context.Context) *tika.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Tika
	}
	return nil
}

// OrchestratorFrom extracts the pipeline orchestrator from context.
func OrchestratorFrom(ctx context.Context) *pipeline.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// SearchFrom extracts the search engine from context.
func SearchFrom(ctx context.Context) *search.Engine {
	if s := ServicesFrom(ctx); s != nil {
		return s.Search
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
