package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"clearmark/internal/domain"
	"clearmark/internal/infra"
	"clearmark/internal/sqlinline"
)

// RunRepositoryPG implements domain.RunRepository over PostgreSQL.
type RunRepositoryPG struct {
	db infra.SQLExecutor
}

func NewRunRepository(db infra.SQLExecutor) *RunRepositoryPG {
	return &RunRepositoryPG{db: db}
}

// Create inserts a new run in the idle phase.
func (r *RunRepositoryPG) Create(ctx context.Context, run *domain.Run) error {
	_, err := r.db.Exec(ctx, sqlinline.QInsertRun,
		run.ID,
		run.Kind,
		run.Message,
		run.SourceKey,
		run.SourceMIME,
		run.Locale,
		run.Country,
	)
	if err != nil {
		return fmt.Errorf("repo: create run: %w", err)
	}
	return nil
}

func (r *RunRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	run, err := scanRun(r.db.QueryRow(ctx, sqlinline.QSelectRunByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get run: %w", err)
	}
	return run, nil
}

// ClaimNext atomically moves the oldest claimable idle run to processing and
// returns it. Runs parked for a video access grant are skipped. ErrNotFound
// means the queue is empty.
func (r *RunRepositoryPG) ClaimNext(ctx context.Context) (*domain.Run, error) {
	run, err := scanRun(r.db.QueryRow(ctx, sqlinline.QClaimNextRun))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: claim run: %w", err)
	}
	return run, nil
}

func (r *RunRepositoryPG) SaveProgress(ctx context.Context, id string, phase domain.Phase, message string, percent int, errMsg, resultAssetID string) error {
	_, err := r.db.Exec(ctx, sqlinline.QSaveRunProgress,
		id,
		phase,
		message,
		percent,
		errMsg,
		resultAssetID,
	)
	if err != nil {
		return fmt.Errorf("repo: save progress: %w", err)
	}
	return nil
}

func (r *RunRepositoryPG) ParkAwaitingAccess(ctx context.Context, id, message string) error {
	if _, err := r.db.Exec(ctx, sqlinline.QParkRunAwaitingAccess, id, message); err != nil {
		return fmt.Errorf("repo: park run: %w", err)
	}
	return nil
}

// ReleaseParked clears the access-requested flag on every parked run so the
// claim loop picks them up again. It returns the number of released runs.
func (r *RunRepositoryPG) ReleaseParked(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, sqlinline.QReleaseParkedRuns)
	if err != nil {
		return 0, fmt.Errorf("repo: release parked runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RunRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, sqlinline.QListRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: list recent runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

func (r *RunRepositoryPG) ListUnsettled(ctx context.Context, since time.Time) ([]domain.Run, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListUnsettledRuns, since)
	if err != nil {
		return nil, fmt.Errorf("repo: list unsettled runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// SweepFinished removes terminal runs older than the cutoff together with
// their asset rows and returns every storage key that backed them.
func (r *RunRepositoryPG) SweepFinished(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSweepFinishedRuns, before)
	if err != nil {
		return nil, fmt.Errorf("repo: sweep finished runs: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("repo: scan swept key: %w", err)
		}
		if key != "" {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: sweep finished runs: %w", err)
	}
	return keys, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	if err := row.Scan(
		&run.ID,
		&run.Kind,
		&run.Phase,
		&run.Message,
		&run.Percent,
		&run.ErrorMessage,
		&run.SourceKey,
		&run.SourceMIME,
		&run.ResultAssetID,
		&run.AccessRequested,
		&run.Locale,
		&run.Country,
		&run.CreatedAt,
		&run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &run, nil
}

func collectRuns(rows pgx.Rows) ([]domain.Run, error) {
	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("repo: scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: iterate runs: %w", err)
	}
	return runs, nil
}

var _ domain.RunRepository = (*RunRepositoryPG)(nil)
