package repo

import (
	"context"
	"fmt"

	"clearmark/internal/domain"
	"clearmark/internal/infra"
	"clearmark/internal/sqlinline"
)

// AssetRepositoryPG implements domain.AssetRepository over PostgreSQL.
type AssetRepositoryPG struct {
	db infra.SQLExecutor
}

func NewAssetRepository(db infra.SQLExecutor) *AssetRepositoryPG {
	return &AssetRepositoryPG{db: db}
}

func (r *AssetRepositoryPG) Create(ctx context.Context, asset *domain.Asset) error {
	_, err := r.db.Exec(ctx, sqlinline.QInsertRunAsset,
		asset.ID,
		asset.RunID,
		asset.Kind,
		asset.Role,
		asset.StorageKey,
		asset.MIME,
		asset.Bytes,
		asset.Width,
		asset.Height,
	)
	if err != nil {
		return fmt.Errorf("repo: create asset: %w", err)
	}
	return nil
}

func (r *AssetRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	asset, err := scanAsset(r.db.QueryRow(ctx, sqlinline.QSelectRunAssetByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get asset: %w", err)
	}
	return asset, nil
}

func (r *AssetRepositoryPG) ListByRun(ctx context.Context, runID string) ([]domain.Asset, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListRunAssetsByRun, runID)
	if err != nil {
		return nil, fmt.Errorf("repo: list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("repo: scan asset: %w", err)
		}
		assets = append(assets, *asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: iterate assets: %w", err)
	}
	return assets, nil
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var asset domain.Asset
	if err := row.Scan(
		&asset.ID,
		&asset.RunID,
		&asset.Kind,
		&asset.Role,
		&asset.StorageKey,
		&asset.MIME,
		&asset.Bytes,
		&asset.Width,
		&asset.Height,
		&asset.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &asset, nil
}

var _ domain.AssetRepository = (*AssetRepositoryPG)(nil)
