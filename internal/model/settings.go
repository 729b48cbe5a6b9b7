package model

import "time"

// AdminSettings is the single-row global configuration (key='default').
type AdminSettings struct {
	ID                 int64      `json:"-"`
	Key                string     `json:"-"`
	FreeExportsEnabled bool       `json:"free_exports_enabled"`
	FreeExportsUntil   *time.Time `json:"free_exports_until"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ExportsFreeAt reports whether exports are free at the given instant, either
// via the manual override flag or an active promo window.
func (s *AdminSettings) ExportsFreeAt(now time.Time) bool {
	if s.FreeExportsEnabled {
		return true
	}
	return s.FreeExportsUntil != nil && now.Before(*s.FreeExportsUntil)
}
