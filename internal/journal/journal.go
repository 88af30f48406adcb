// internal/journal/journal.go
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"print-service/internal/config"
	"print-service/internal/model"
)

// Journal records print jobs. The protocol engine itself is stateless; the
// journal is an optional service-level audit trail.
type Journal interface {
	RecordStart(ctx context.Context, job *model.PrintJob) error
	RecordResult(ctx context.Context, id uuid.UUID, result model.ResultCode) error
	GetJob(ctx context.Context, id uuid.UUID) (*model.PrintJob, error)
	ListRecent(ctx context.Context, limit int) ([]*model.PrintJob, error)
	HealthCheck() error
	Close() error
}

// Disabled is the no-op journal used when no database is configured.
type Disabled struct{}

func (Disabled) RecordStart(context.Context, *model.PrintJob) error { return nil }
func (Disabled) RecordResult(context.Context, uuid.UUID, model.ResultCode) error {
	return nil
}
func (Disabled) GetJob(context.Context, uuid.UUID) (*model.PrintJob, error) {
	return nil, sql.ErrNoRows
}
func (Disabled) ListRecent(context.Context, int) ([]*model.PrintJob, error) {
	return nil, nil
}
func (Disabled) HealthCheck() error { return nil }
func (Disabled) Close() error       { return nil }

// Postgres is the journal backed by a PostgreSQL database.
type Postgres struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to the journal database and applies the connection pool
// settings.
func Open(cfg *config.JournalConfig, dsn string, logger *zap.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	logger.Info("Journal database connected",
		zap.String("host", cfg.Host), zap.String("dbname", cfg.DBName))
	return &Postgres{db: db, logger: logger}, nil
}

// RecordStart inserts the job in running state.
func (p *Postgres) RecordStart(ctx context.Context, job *model.PrintJob) error {
	job.State = model.JobRunning
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO print_jobs (id, destination, family, state, status_only, bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.Destination, string(job.Family), string(job.State),
		job.StatusOnly, job.Bytes, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record job start: %w", err)
	}
	return nil
}

// RecordResult marks the job resolved with its terminal code.
func (p *Postgres) RecordResult(ctx context.Context, id uuid.UUID, result model.ResultCode) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE print_jobs
		SET state = $2, result = $3, resolved_at = $4
		WHERE id = $1`,
		id, string(model.JobResolved), string(result), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record job result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}

// GetJob fetches one job by ID.
func (p *Postgres) GetJob(ctx context.Context, id uuid.UUID) (*model.PrintJob, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, destination, family, state, COALESCE(result, ''), status_only,
		       bytes, created_at, resolved_at
		FROM print_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ListRecent returns the newest jobs first.
func (p *Postgres) ListRecent(ctx context.Context, limit int) ([]*model.PrintJob, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, destination, family, state, COALESCE(result, ''), status_only,
		       bytes, created_at, resolved_at
		FROM print_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.PrintJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.PrintJob, error) {
	var job model.PrintJob
	var family, state, result string
	var resolvedAt sql.NullTime
	err := row.Scan(&job.ID, &job.Destination, &family, &state, &result,
		&job.StatusOnly, &job.Bytes, &job.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	job.Family = model.PrinterFamily(family)
	job.State = model.JobState(state)
	job.Result = model.ResultCode(result)
	if resolvedAt.Valid {
		job.ResolvedAt = &resolvedAt.Time
	}
	return &job, nil
}

// HealthCheck pings the database.
func (p *Postgres) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}

// Stats exposes connection pool statistics.
func (p *Postgres) Stats() sql.DBStats { return p.db.Stats() }

// Close releases the database handle.
func (p *Postgres) Close() error { return p.db.Close() }
