package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/subhamsarangi/polymathscurse/internal/model"
)

// SettingsStore reads and writes the single global admin settings row, which
// the initial migration seeds under key='default'.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get() (*model.AdminSettings, error) {
	row := s.db.QueryRow(
		`SELECT id, key, free_exports_enabled, free_exports_until, created_at, updated_at
		   FROM admin_settings WHERE key = 'default'`,
	)
	var set model.AdminSettings
	var until sql.NullTime
	err := row.Scan(&set.ID, &set.Key, &set.FreeExportsEnabled, &until, &set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if until.Valid {
		set.FreeExportsUntil = &until.Time
	}
	return &set, nil
}

// SetFreeExportsEnabled flips the manual free-export override.
func (s *SettingsStore) SetFreeExportsEnabled(enabled bool) (*model.AdminSettings, error) {
	_, err := s.db.Exec(
		`UPDATE admin_settings SET free_exports_enabled = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE key = 'default'`,
		enabled,
	)
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return s.Get()
}

// ExtendPromo starts or extends a free-export promo window by the given
// duration. When a window is already running the extension is added on top of
// its remaining time, otherwise it counts from now. Starting a promo clears
// the manual override flag so the window alone decides when free mode ends.
func (s *SettingsStore) ExtendPromo(d time.Duration) (*model.AdminSettings, error) {
	current, err := s.Get()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	base := now
	if current.FreeExportsUntil != nil && current.FreeExportsUntil.After(now) {
		base = *current.FreeExportsUntil
	}
	until := base.Add(d)

	_, err = s.db.Exec(
		`UPDATE admin_settings
		    SET free_exports_enabled = 0, free_exports_until = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE key = 'default'`,
		until,
	)
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return s.Get()
}

// ClearPromo ends any promo window immediately.
func (s *SettingsStore) ClearPromo() (*model.AdminSettings, error) {
	_, err := s.db.Exec(
		`UPDATE admin_settings SET free_exports_until = NULL, updated_at = CURRENT_TIMESTAMP
		  WHERE key = 'default'`,
	)
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return s.Get()
}
