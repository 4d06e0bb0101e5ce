package repositories

import (
	"database/sql"
	"errors"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/models"
)

var ErrRunNotFound = errors.New("reconciliation run not found")

type RunRepository interface {
	CreateRun(run *models.ReconciliationRun) error
	FinishRun(run *models.ReconciliationRun, report *models.RunReport) error
	GetRunByRunID(runID string) (*models.ReconciliationRun, error)
}

type runRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) CreateRun(run *models.ReconciliationRun) error {
	query := `
		INSERT INTO reconciliation_runs (run_id, dry_run, started_at)
		VALUES (?, ?, ?)
	`
	result, err := r.db.Exec(query, run.RunID, run.DryRun, run.StartedAt)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

func (r *runRepository) FinishRun(run *models.ReconciliationRun, report *models.RunReport) error {
	now := time.Now()
	query := `
		UPDATE reconciliation_runs
		SET checked_count = ?, settled_count = ?, returned_count = ?,
		    in_flight_count = ?, stale_count = ?, error_count = ?,
		    warning_count = ?, finished_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query,
		report.Checked,
		report.Settled,
		report.Returned,
		report.InFlight,
		report.Stale,
		report.Errors,
		report.Warnings,
		now,
		run.ID,
	)
	if err != nil {
		return err
	}

	run.Checked = report.Checked
	run.Settled = report.Settled
	run.Returned = report.Returned
	run.InFlight = report.InFlight
	run.Stale = report.Stale
	run.Errors = report.Errors
	run.Warnings = report.Warnings
	run.FinishedAt = &now
	return nil
}

func (r *runRepository) GetRunByRunID(runID string) (*models.ReconciliationRun, error) {
	run := &models.ReconciliationRun{}
	query := `
		SELECT id, run_id, dry_run, checked_count, settled_count,
		       returned_count, in_flight_count, stale_count, error_count,
		       warning_count, started_at, finished_at
		FROM reconciliation_runs
		WHERE run_id = ?
	`
	err := r.db.QueryRow(query, runID).Scan(
		&run.ID,
		&run.RunID,
		&run.DryRun,
		&run.Checked,
		&run.Settled,
		&run.Returned,
		&run.InFlight,
		&run.Stale,
		&run.Errors,
		&run.Warnings,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}
