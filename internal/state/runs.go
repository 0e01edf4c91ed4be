package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leaprun/pkg/core"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveRun stores a finished run with its model outcomes and log in one
// transaction. Models are stored in execution order.
func (s *SQLiteStore) SaveRun(ctx context.Context, env string, summary *core.Summary, logs []core.LogEntry) (err error) {
	if s.db == nil {
		return errNotOpened
	}
	if summary == nil {
		return errors.New("save run: nil summary")
	}

	s.logger.Debug("saving run", slog.String("id", summary.RunID), slog.String("environment", env))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	status := RunStatusSuccess
	if !summary.Succeeded() {
		status = RunStatusFailed
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, environment, status, started_at, duration_ms, total_models, successes, failures, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, env, string(status), summary.StartedAt.UTC().Format(timeLayout),
		summary.TotalExecutionTime.Milliseconds(), summary.TotalModels,
		summary.Successes, summary.Failures, summary.Skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for pos, name := range summary.ExecutionOrder {
		res, ok := summary.PerModel[name]
		if !ok {
			res = core.ModelResult{Status: core.StatusPending}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO model_runs (run_id, model, position, status, kind, execution_ms, rows_affected, error, error_kind)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			summary.RunID, name, pos, string(res.Status), res.Kind.String(),
			res.ExecutionTime.Milliseconds(), res.Rows, res.Error, string(res.ErrorKind),
		)
		if err != nil {
			return fmt.Errorf("failed to insert model run %s: %w", name, err)
		}
	}

	for seq, entry := range logs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_logs (run_id, seq, logged_at, severity, model, message) VALUES (?, ?, ?, ?, ?, ?)`,
			summary.RunID, seq, entry.Time.UTC().Format(timeLayout), string(entry.Severity), entry.Model, entry.Message,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run log: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, environment, status, started_at, duration_ms, total_models, successes, failures, skipped`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r          Run
		status     string
		startedAt  string
		durationMS int64
	)
	if err := row.Scan(&r.ID, &r.Environment, &status, &startedAt, &durationMS,
		&r.TotalModels, &r.Successes, &r.Failures, &r.Skipped); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad started_at %q: %w", r.ID, startedAt, err)
	}
	r.Status = RunStatus(status)
	r.StartedAt = t
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return &r, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetModelRuns returns the model outcomes of a run in execution order.
func (s *SQLiteStore) GetModelRuns(ctx context.Context, runID string) ([]*ModelRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, model, position, status, kind, execution_ms, rows_affected, error, error_kind
		 FROM model_runs WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ModelRun
	for rows.Next() {
		var (
			mr          ModelRun
			status      string
			errKind     string
			executionMS int64
		)
		if err := rows.Scan(&mr.RunID, &mr.Model, &mr.Position, &status, &mr.Kind,
			&executionMS, &mr.Rows, &mr.Error, &errKind); err != nil {
			return nil, fmt.Errorf("failed to scan model run: %w", err)
		}
		mr.Status = core.ModelStatus(status)
		mr.ErrorKind = core.ErrorKind(errKind)
		mr.ExecutionTime = time.Duration(executionMS) * time.Millisecond
		out = append(out, &mr)
	}
	return out, rows.Err()
}

// GetRunLogs returns the run log in the order it was written.
func (s *SQLiteStore) GetRunLogs(ctx context.Context, runID string) ([]core.LogEntry, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT logged_at, severity, model, message FROM run_logs WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.LogEntry
	for rows.Next() {
		var (
			e        core.LogEntry
			loggedAt string
			severity string
		)
		if err := rows.Scan(&loggedAt, &severity, &e.Model, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		if e.Time, err = time.Parse(timeLayout, loggedAt); err != nil {
			return nil, fmt.Errorf("bad log time %q: %w", loggedAt, err)
		}
		e.Severity = core.Severity(severity)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteRunsBefore removes runs that started before cutoff and returns
// how many were removed.
func (s *SQLiteStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, errNotOpened
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return res.RowsAffected()
}
