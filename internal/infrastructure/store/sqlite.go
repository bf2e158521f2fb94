// Package store implements the durable verification result store on top of
// SQLite. The composite key site-productType-property is the primary key,
// so every write is an idempotent upsert: re-processing a pair after a
// failure overwrites the old record instead of appending a new one.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hxinn/amazon-listing-ai-assistant/internal/domain"
)

// SQLiteStore implements domain.ResultRepository backed by a local SQLite
// database in WAL mode. A single connection keeps key-scoped upserts atomic.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// ensures the schema and indexes exist.
func NewSQLiteStore(path string, log *zap.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn("failed to apply pragma", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info("result store ready", zap.String("path", path))
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS verification_results (
		id             TEXT PRIMARY KEY,
		site           TEXT NOT NULL,
		product_type   TEXT NOT NULL,
		property       TEXT NOT NULL,
		generated_data TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		error_message  TEXT NOT NULL DEFAULT '',
		marketplace    TEXT NOT NULL DEFAULT '',
		language_tag   TEXT NOT NULL DEFAULT '',
		sync_status    TEXT NOT NULL DEFAULT '',
		sync_error     TEXT NOT NULL DEFAULT '',
		synced_at      TIMESTAMP,
		created_at     TIMESTAMP NOT NULL,
		updated_at     TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_property ON verification_results(property);
	CREATE INDEX IF NOT EXISTS idx_results_site ON verification_results(site);
	CREATE INDEX IF NOT EXISTS idx_results_status ON verification_results(status);
	CREATE INDEX IF NOT EXISTS idx_results_site_property ON verification_results(site, property);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert writes the result under its composite key, overwriting any
// existing record. created_at of an existing record is preserved.
func (s *SQLiteStore) Upsert(ctx context.Context, result *domain.VerificationResult) error {
	now := time.Now().UTC()
	if result.ID == "" {
		result.ID = result.Key().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now

	query := `
	INSERT INTO verification_results
		(id, site, product_type, property, generated_data, status, error_message,
		 marketplace, language_tag, sync_status, sync_error, synced_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		generated_data = excluded.generated_data,
		status         = excluded.status,
		error_message  = excluded.error_message,
		marketplace    = excluded.marketplace,
		language_tag   = excluded.language_tag,
		sync_status    = excluded.sync_status,
		sync_error     = excluded.sync_error,
		synced_at      = excluded.synced_at,
		updated_at     = excluded.updated_at;
	`
	_, err := s.db.ExecContext(ctx, query,
		result.ID,
		result.Site,
		result.ProductType,
		result.Property,
		result.GeneratedData,
		result.Status,
		result.ErrorMessage,
		result.Marketplace,
		result.LanguageTag,
		result.SyncStatus,
		result.SyncError,
		nullTime(result.SyncedAt),
		result.CreatedAt,
		result.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert result %s: %w", result.ID, err)
	}
	return nil
}

const selectColumns = `id, site, product_type, property, generated_data, status, error_message,
	marketplace, language_tag, sync_status, sync_error, synced_at, created_at, updated_at`

// Get returns the record stored under the composite key.
func (s *SQLiteStore) Get(ctx context.Context, key domain.ResultKey) (*domain.VerificationResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM verification_results WHERE id = ?`, key.String())
	result, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result %s: %w", key, err)
	}
	return result, nil
}

// ExistsCompleted reports whether a completed record exists for the key.
// A failed record does not count.
func (s *SQLiteStore) ExistsCompleted(ctx context.Context, key domain.ResultKey) (bool, error) {
	return s.exists(ctx,
		`SELECT COUNT(1) FROM verification_results WHERE id = ? AND status = ?`,
		key.String(), domain.StatusCompleted)
}

// ExistsAny reports whether any record exists for the key, regardless of status.
func (s *SQLiteStore) ExistsAny(ctx context.Context, key domain.ResultKey) (bool, error) {
	return s.exists(ctx,
		`SELECT COUNT(1) FROM verification_results WHERE id = ?`, key.String())
}

func (s *SQLiteStore) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return count > 0, nil
}

// GetAll returns every stored record ordered by property, site.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]domain.VerificationResult, error) {
	return s.query(ctx,
		`SELECT `+selectColumns+` FROM verification_results ORDER BY property, site`)
}

// GetByProperty returns every record for one property.
func (s *SQLiteStore) GetByProperty(ctx context.Context, property string) ([]domain.VerificationResult, error) {
	return s.query(ctx,
		`SELECT `+selectColumns+` FROM verification_results WHERE property = ? ORDER BY site`, property)
}

// GetAllByPropertyAndSite returns every record for one property on one site.
func (s *SQLiteStore) GetAllByPropertyAndSite(ctx context.Context, property, site string) ([]domain.VerificationResult, error) {
	return s.query(ctx,
		`SELECT `+selectColumns+` FROM verification_results WHERE property = ? AND site = ? ORDER BY updated_at DESC`,
		property, site)
}

// GetFailed returns every record with failed status.
func (s *SQLiteStore) GetFailed(ctx context.Context) ([]domain.VerificationResult, error) {
	return s.query(ctx,
		`SELECT `+selectColumns+` FROM verification_results WHERE status = ? ORDER BY property, site`,
		domain.StatusFailed)
}

// DeleteByID removes one record.
func (s *SQLiteStore) DeleteByID(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM verification_results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete result %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrResultNotFound
	}
	return nil
}

// Stats returns aggregate counts over the store.
func (s *SQLiteStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{}
	var last sql.NullTime
	// The newest updated_at is read through a scalar subquery rather than
	// MAX(); a bare aggregate loses the column's TIMESTAMP affinity and
	// scans back as a string.
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       (SELECT updated_at FROM verification_results ORDER BY updated_at DESC LIMIT 1)
		FROM verification_results`,
		domain.StatusCompleted, domain.StatusFailed,
	).Scan(&stats.Total, &stats.Completed, &stats.Failed, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	if last.Valid {
		stats.LastUpdated = last.Time
	}
	return stats, nil
}

// UpdateSyncStatus updates the sync bookkeeping of one record. A synced
// status stamps synced_at with the current time.
func (s *SQLiteStore) UpdateSyncStatus(ctx context.Context, id, syncStatus, syncError string) error {
	var syncedAt interface{}
	if syncStatus == domain.SyncSynced {
		syncedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE verification_results
		SET sync_status = ?, sync_error = ?, synced_at = COALESCE(?, synced_at), updated_at = ?
		WHERE id = ?`,
		syncStatus, syncError, syncedAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update sync status for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrResultNotFound
	}
	return nil
}

// FindDuplicateGroups finds records colliding on (site, property) across
// different productType values. These are legacy rows where the same
// logical attribute was materialized under two categories.
func (s *SQLiteStore) FindDuplicateGroups(ctx context.Context) ([]domain.DuplicateGroup, error) {
	results, err := s.query(ctx, `
		SELECT `+selectColumns+` FROM verification_results
		WHERE (site, property) IN (
			SELECT site, property FROM verification_results
			GROUP BY site, property HAVING COUNT(1) > 1
		)
		ORDER BY site, property, updated_at DESC`)
	if err != nil {
		return nil, err
	}

	var groups []domain.DuplicateGroup
	index := make(map[string]int)
	for _, r := range results {
		gk := r.Site + "\x00" + r.Property
		i, ok := index[gk]
		if !ok {
			groups = append(groups, domain.DuplicateGroup{Site: r.Site, Property: r.Property})
			i = len(groups) - 1
			index[gk] = i
		}
		groups[i].Results = append(groups[i].Results, r)
	}
	return groups, nil
}

// RemoveDuplicates deletes all but the most recently updated record in each
// duplicate group and returns the number of deleted rows.
func (s *SQLiteStore) RemoveDuplicates(ctx context.Context) (int, error) {
	groups, err := s.FindDuplicateGroups(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, g := range groups {
		// Results are ordered newest first; everything past the head loses.
		for _, loser := range g.Results[1:] {
			if err := s.DeleteByID(ctx, loser.ID); err != nil {
				s.log.Warn("failed to remove duplicate",
					zap.String("id", loser.ID), zap.Error(err))
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("removed duplicate results", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]domain.VerificationResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []domain.VerificationResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner) (*domain.VerificationResult, error) {
	var r domain.VerificationResult
	var syncedAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.Site, &r.ProductType, &r.Property,
		&r.GeneratedData, &r.Status, &r.ErrorMessage,
		&r.Marketplace, &r.LanguageTag,
		&r.SyncStatus, &r.SyncError, &syncedAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if syncedAt.Valid {
		r.SyncedAt = syncedAt.Time
	}
	return &r, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
