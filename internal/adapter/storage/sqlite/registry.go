package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/port"
)

// Registry implements the job registry on top of the shared store. The single
// SQLite connection serializes writers, so every read-modify-write in Update
// runs without interleaving.
type Registry struct {
	db *sql.DB
}

func NewRegistry(store *Store) *Registry {
	return &Registry{db: store.db}
}

const jobColumns = "id, original_name, video_path, options, status, progress, result, error_kind, error_message, created_at, updated_at"

func (r *Registry) Create(ctx context.Context, job *domain.Job) error {
	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, original_name, video_path, options, status, progress, error_kind, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.OriginalName, job.VideoPath, string(options),
		string(job.Status), job.Progress, string(job.ErrorKind), job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	return scanJob(row)
}

// Update applies fn to the current row state and writes the mutated job back.
// Terminal jobs reject every mutation; progress may only decrease when the
// mutation moves the job to the error state.
func (r *Registry) Update(ctx context.Context, id string, fn func(*domain.Job) error) (*domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}

	if job.Status.IsTerminal() {
		return nil, domain.ErrTerminal
	}
	prevProgress := job.Progress

	if err := fn(job); err != nil {
		return nil, err
	}

	if job.Progress < prevProgress && job.Status != domain.StatusError {
		return nil, domain.ErrProgressRegression
	}
	job.UpdatedAt = time.Now().UTC()

	if err := writeJob(ctx, tx, job); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return job, nil
}

// ClaimNext takes the oldest queued job and moves it into the first pipeline
// stage in one statement, so concurrent workers never claim the same job.
func (r *Registry) ClaimNext(ctx context.Context) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = ?, progress = ?, updated_at = ?
		WHERE id = (SELECT id FROM jobs WHERE status = ? ORDER BY created_at LIMIT 1)
		RETURNING `+jobColumns,
		string(domain.StatusExtracting), 10, time.Now().UTC(), string(domain.StatusQueued),
	)
	job, err := scanJob(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoJobAvailable
	}
	return job, err
}

func (r *Registry) FailStalled(ctx context.Context, reason string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, error_kind = ?, error_message = ?, updated_at = ?
		WHERE status IN (?, ?, ?, ?)`,
		string(domain.StatusError), string(domain.KindInternal), reason, time.Now().UTC(),
		string(domain.StatusExtracting), string(domain.StatusTranscribing),
		string(domain.StatusAnalyzing), string(domain.StatusGenerating),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stalled jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *Registry) List(ctx context.Context) ([]*domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var (
		job       domain.Job
		options   string
		status    string
		result    sql.NullString
		errorKind string
	)
	err := row.Scan(
		&job.ID, &job.OriginalName, &job.VideoPath, &options,
		&status, &job.Progress, &result, &errorKind, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.Status = domain.JobStatus(status)
	job.ErrorKind = domain.ErrorKind(errorKind)
	if err := json.Unmarshal([]byte(options), &job.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	if result.Valid && result.String != "" {
		job.Result = &domain.JobResult{}
		if err := json.Unmarshal([]byte(result.String), job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return &job, nil
}

func writeJob(ctx context.Context, tx *sql.Tx, job *domain.Job) error {
	var result sql.NullString
	if job.Result != nil {
		data, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, progress = ?, result = ?, error_kind = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		string(job.Status), job.Progress, result, string(job.ErrorKind), job.ErrorMessage,
		job.UpdatedAt, job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

var _ port.JobRegistry = (*Registry)(nil)
