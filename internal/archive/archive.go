// Package archive persists finished screening reports for audit
// retrieval.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// SQLArchive implements domain.Archive using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLArchive struct {
	db     *sql.DB
	driver string
}

// New creates an archive based on configuration.
func New(cfg domain.ArchiveConfig) (domain.Archive, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	arch := &SQLArchive{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := arch.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return arch, nil
}

func (a *SQLArchive) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := a.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveReport stores a finished report. The summary columns let
// operators query risk levels without parsing the report body.
func (a *SQLArchive) SaveReport(ctx context.Context, report *domain.ScreeningReport) error {
	if report == nil {
		return fmt.Errorf("%w: report is required", domain.ErrInvalidInput)
	}
	if report.ReportID == "" {
		return fmt.Errorf("%w: report id is required", domain.ErrInvalidInput)
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	contributing := ""
	if report.Risk.ContributingTypology != nil {
		contributing = string(report.Risk.ContributingTypology.Typology)
	}

	query := `
		INSERT INTO reports (
			id, generated_at, transaction_count, risk_score,
			contributing_typology, match_count, report
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = a.db.ExecContext(ctx, a.rebind(query),
		report.ReportID, report.GeneratedAt,
		report.TransactionCount, report.Risk.RiskScore,
		contributing, len(report.TypologyMatches),
		string(data),
	)
	return err
}

// GetReport retrieves a report by id.
func (a *SQLArchive) GetReport(ctx context.Context, reportID string) (*domain.ScreeningReport, error) {
	if reportID == "" {
		return nil, fmt.Errorf("%w: report id is required", domain.ErrInvalidInput)
	}

	query := `SELECT report FROM reports WHERE id = ?`

	var data string
	err := a.db.QueryRowContext(ctx, a.rebind(query), reportID).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var report domain.ScreeningReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to parse archived report %s: %w", reportID, err)
	}

	return &report, nil
}

// ListReports returns reports generated at or after since, newest
// first, capped at limit.
func (a *SQLArchive) ListReports(ctx context.Context, since time.Time, limit int) ([]*domain.ScreeningReport, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT report FROM reports
		WHERE generated_at >= ?
		ORDER BY generated_at DESC
		LIMIT ?
	`

	rows, err := a.db.QueryContext(ctx, a.rebind(query), since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*domain.ScreeningReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var report domain.ScreeningReport
		if err := json.Unmarshal([]byte(data), &report); err != nil {
			return nil, fmt.Errorf("failed to parse archived report: %w", err)
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// Ping checks database connectivity.
func (a *SQLArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database connection.
func (a *SQLArchive) Close() error {
	return a.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (a *SQLArchive) rebind(query string) string {
	if a.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
