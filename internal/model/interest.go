package model

import "time"

// Interest status values. FocusState is only meaningful while status is FOCUS.
const (
	StatusFocus   = "FOCUS"
	StatusBacklog = "BACKLOG"

	FocusActive = "ACTIVE"
	FocusPaused = "PAUSED"
)

// MaxFocusInterests is the number of concurrent focus slots per user.
const MaxFocusInterests = 4

type Interest struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"-"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	FocusState string    `json:"focus_state"`
	SortOrder  int       `json:"sort_order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Interactive reports whether the interest accepts mutations to its tree.
// Targets, bullets and todos are frozen while the interest is backlogged or paused.
func (i *Interest) Interactive() bool {
	return i.Status == StatusFocus && i.FocusState == FocusActive
}

// FocusStint is one contiguous period an interest spent in focus.
// An open stint has a nil EndedAt.
type FocusStint struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"-"`
	InterestID int64      `json:"interest_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	Note       string     `json:"note,omitempty"`
}

// PauseInterval is a paused span within a stint. Open while ResumedAt is nil.
type PauseInterval struct {
	ID        int64      `json:"id"`
	StintID   int64      `json:"-"`
	PausedAt  time.Time  `json:"paused_at"`
	ResumedAt *time.Time `json:"resumed_at"`
}

// TimelineStint is a stint with its interest name and pauses, as returned by
// the timeline endpoint.
type TimelineStint struct {
	ID           int64           `json:"id"`
	InterestID   int64           `json:"interest_id"`
	InterestName string          `json:"interest_name"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at"`
	Pauses       []PauseInterval `json:"pauses"`
}
