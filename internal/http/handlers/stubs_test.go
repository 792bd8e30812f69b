package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clearmark/internal/capability"
	"clearmark/internal/domain"
	"clearmark/internal/sse"
)

func newTestApp() (*App, *stubRunRepo, *stubAssetRepo, *memStore, *stubCapability, *sse.Hub) {
	runs := &stubRunRepo{runs: map[string]domain.Run{}}
	assets := &stubAssetRepo{}
	store := &memStore{files: map[string][]byte{}}
	caps := &stubCapability{}
	hub := sse.NewHub()
	app := NewApp(AppOptions{
		Runs:       runs,
		Assets:     assets,
		Store:      store,
		Hub:        hub,
		Capability: caps,
	})
	return app, runs, assets, store, caps, hub
}

// withRunID attaches the chi route parameter the handlers read.
func withRunID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type stubRunRepo struct {
	runs      map[string]domain.Run
	created   []domain.Run
	createErr error
	recent    []domain.Run
	recentErr error
	lastLimit int
}

func (s *stubRunRepo) Create(ctx context.Context, run *domain.Run) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.runs[run.ID] = *run
	s.created = append(s.created, *run)
	return nil
}

func (s *stubRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

func (s *stubRunRepo) ClaimNext(ctx context.Context) (*domain.Run, error) {
	return nil, domain.ErrNotFound
}

func (s *stubRunRepo) SaveProgress(ctx context.Context, id string, phase domain.Phase, message string, percent int, errMsg, resultAssetID string) error {
	return nil
}

func (s *stubRunRepo) ParkAwaitingAccess(ctx context.Context, id, message string) error { return nil }

func (s *stubRunRepo) ReleaseParked(ctx context.Context) (int64, error) { return 0, nil }

func (s *stubRunRepo) ListRecent(ctx context.Context, limit int) ([]domain.Run, error) {
	s.lastLimit = limit
	return s.recent, s.recentErr
}

func (s *stubRunRepo) ListUnsettled(ctx context.Context, since time.Time) ([]domain.Run, error) {
	return nil, nil
}

func (s *stubRunRepo) SweepFinished(ctx context.Context, before time.Time) ([]string, error) {
	return nil, nil
}

type stubAssetRepo struct {
	assets    []domain.Asset
	createErr error
}

func (s *stubAssetRepo) Create(ctx context.Context, asset *domain.Asset) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.assets = append(s.assets, *asset)
	return nil
}

func (s *stubAssetRepo) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	for _, asset := range s.assets {
		if asset.ID == id {
			return &asset, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubAssetRepo) ListByRun(ctx context.Context, runID string) ([]domain.Asset, error) {
	var out []domain.Asset
	for _, asset := range s.assets {
		if asset.RunID == runID {
			out = append(out, asset)
		}
	}
	return out, nil
}

type memStore struct {
	files    map[string][]byte
	writeErr error
}

func (s *memStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s.writeErr != nil {
		return "", s.writeErr
	}
	s.files[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.files[key]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", key, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type stubCapability struct {
	status     capability.Status
	statusErr  error
	requests   int
	requestErr error
}

func (s *stubCapability) VideoStatus(ctx context.Context) (capability.Status, error) {
	return s.status, s.statusErr
}

func (s *stubCapability) RequestVideoAccess(ctx context.Context) error {
	if s.requestErr != nil {
		return s.requestErr
	}
	s.requests++
	return nil
}
