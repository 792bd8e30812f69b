// Package handlers implements the public HTTP surface of the cleaning
// service.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"clearmark/internal/capability"
	"clearmark/internal/domain"
	"clearmark/internal/infra"
	"clearmark/internal/sse"
)

// BlobStore is the slice of the file store the API reads and writes.
type BlobStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// CapabilityReporter answers video authorization questions for the
// capability endpoints.
type CapabilityReporter interface {
	VideoStatus(ctx context.Context) (capability.Status, error)
	RequestVideoAccess(ctx context.Context) error
}

// AppOptions carries the dependencies of the HTTP handlers.
type AppOptions struct {
	Runs       domain.RunRepository
	Assets     domain.AssetRepository
	Store      BlobStore
	Hub        *sse.Hub
	Capability CapabilityReporter
	// MaxUploadBytes bounds the source media size. Defaults to 25 MiB.
	MaxUploadBytes int64
	Logger         *infra.Logger
}

// App holds the wired dependencies behind the route handlers.
type App struct {
	runs       domain.RunRepository
	assets     domain.AssetRepository
	store      BlobStore
	hub        *sse.Hub
	capability CapabilityReporter
	maxUpload  int64
	logger     *infra.Logger
}

const defaultMaxUploadBytes = 25 << 20

func NewApp(opts AppOptions) *App {
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &App{
		runs:       opts.Runs,
		assets:     opts.Assets,
		store:      opts.Store,
		hub:        opts.Hub,
		capability: opts.Capability,
		maxUpload:  maxUpload,
		logger:     logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorResponse{Error: code, Message: message})
}
