package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"clearmark/internal/domain"
)

func TestCreateAsset(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewAssetRepository(exec)
	asset := &domain.Asset{
		ID:         "asset-1",
		RunID:      "run-1",
		Kind:       domain.MediaImage,
		Role:       domain.AssetRoleFrame,
		StorageKey: "runs/run-1/frame.png",
		MIME:       "image/png",
		Bytes:      2048,
		Width:      1280,
		Height:     720,
	}
	if err := repo.Create(context.Background(), asset); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	call := exec.calls[0]
	if !strings.Contains(call.query, "insert into run_assets") {
		t.Fatalf("unexpected statement: %q", call.query)
	}
	if len(call.args) != 9 {
		t.Fatalf("expected 9 args, got %d", len(call.args))
	}
	if call.args[3] != domain.AssetRoleFrame || call.args[4] != asset.StorageKey {
		t.Fatalf("role/key args = %v/%v", call.args[3], call.args[4])
	}
	if call.args[6] != int64(2048) {
		t.Fatalf("bytes arg = %v, want 2048", call.args[6])
	}
}

func TestGetAssetByID(t *testing.T) {
	exec := &stubExecutor{row: stubRow{values: []any{
		"asset-1",
		"run-1",
		domain.MediaVideo,
		domain.AssetRoleCleaned,
		"runs/run-1/cleaned.mp4",
		"video/mp4",
		int64(9000),
		0,
		0,
		time.Now(),
	}}}
	repo := NewAssetRepository(exec)

	asset, err := repo.GetByID(context.Background(), "asset-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if asset.Role != domain.AssetRoleCleaned || asset.MIME != "video/mp4" {
		t.Fatalf("asset = %+v", asset)
	}
	if asset.Bytes != 9000 {
		t.Fatalf("bytes = %d, want 9000", asset.Bytes)
	}
}

func TestGetAssetByIDNotFound(t *testing.T) {
	exec := &stubExecutor{row: stubRow{err: pgx.ErrNoRows}}
	repo := NewAssetRepository(exec)
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByRun(t *testing.T) {
	now := time.Now()
	exec := &stubExecutor{rows: &stubRows{values: [][]any{
		{"asset-1", "run-1", domain.MediaImage, domain.AssetRoleFrame, "runs/run-1/frame.png", "image/png", int64(100), 3, 2, now},
		{"asset-2", "run-1", domain.MediaVideo, domain.AssetRoleCleaned, "runs/run-1/cleaned.mp4", "video/mp4", int64(200), 0, 0, now},
	}}}
	repo := NewAssetRepository(exec)

	assets, err := repo.ListByRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("ListByRun error: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	if assets[0].Role != domain.AssetRoleFrame || assets[1].Role != domain.AssetRoleCleaned {
		t.Fatalf("roles = %s/%s", assets[0].Role, assets[1].Role)
	}
	if got := exec.calls[0].args[0]; got != "run-1" {
		t.Fatalf("run arg = %v, want run-1", got)
	}
}
