package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/subhamsarangi/polymathscurse/internal/model"
)

// MetricsStore aggregates business counters for the admin dashboard. Paying
// users and revenue count settled exports only (PAID or CONSUMED) and ignore
// zero-amount free-mode purchases.
type MetricsStore struct {
	db *sql.DB
}

func NewMetricsStore(db *sql.DB) *MetricsStore {
	return &MetricsStore{db: db}
}

func (s *MetricsStore) countRow(query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("metrics query: %w", err)
	}
	return n, nil
}

func (s *MetricsStore) TotalUsers() (int, error) {
	return s.countRow(`SELECT COUNT(*) FROM users`)
}

func (s *MetricsStore) NewUsersBetween(start, end time.Time) (int, error) {
	return s.countRow(
		`SELECT COUNT(*) FROM users WHERE created_at >= ? AND created_at < ?`,
		start, end,
	)
}

func (s *MetricsStore) PayingUsers() (int, error) {
	return s.countRow(
		`SELECT COUNT(DISTINCT user_id) FROM export_downloads
		  WHERE status IN (?, ?) AND amount_cents > 0`,
		model.ExportPaid, model.ExportConsumed,
	)
}

func (s *MetricsStore) PayingUsersBetween(start, end time.Time) (int, error) {
	return s.countRow(
		`SELECT COUNT(DISTINCT user_id) FROM export_downloads
		  WHERE status IN (?, ?) AND amount_cents > 0
		    AND paid_at >= ? AND paid_at < ?`,
		model.ExportPaid, model.ExportConsumed, start, end,
	)
}

func (s *MetricsStore) RevenueCents() (int, error) {
	return s.countRow(
		`SELECT COALESCE(SUM(amount_cents), 0) FROM export_downloads
		  WHERE status IN (?, ?) AND amount_cents > 0`,
		model.ExportPaid, model.ExportConsumed,
	)
}

func (s *MetricsStore) RevenueCentsBetween(start, end time.Time) (int, error) {
	return s.countRow(
		`SELECT COALESCE(SUM(amount_cents), 0) FROM export_downloads
		  WHERE status IN (?, ?) AND amount_cents > 0
		    AND paid_at >= ? AND paid_at < ?`,
		model.ExportPaid, model.ExportConsumed, start, end,
	)
}
