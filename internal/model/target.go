package model

import "time"

// Todo status values. DONE is terminal.
const (
	TodoActive  = "ACTIVE"
	TodoBacklog = "BACKLOG"
	TodoDone    = "DONE"
)

// Per-target caps.
const (
	MaxBulletsPerTarget = 3
	MaxActiveTodos      = 2
	MaxBacklogTodos     = 3
)

type Target struct {
	ID         int64     `json:"id"`
	InterestID int64     `json:"interest_id"`
	Name       string    `json:"name"`
	SortOrder  int       `json:"sort_order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type TargetBullet struct {
	ID        int64     `json:"id"`
	TargetID  int64     `json:"target_id"`
	Category  *string   `json:"category"`
	Content   string    `json:"content"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Todo struct {
	ID        int64      `json:"id"`
	TargetID  int64      `json:"target_id"`
	Status    string     `json:"status"`
	Content   string     `json:"content"`
	SortOrder int        `json:"sort_order"`
	CreatedAt time.Time  `json:"created_at"`
	DoneAt    *time.Time `json:"done_at"`
}

// GroupedTodos partitions a target's todos by status.
type GroupedTodos struct {
	Active  []Todo `json:"active"`
	Backlog []Todo `json:"backlog"`
	Done    []Todo `json:"done"`
}

// TodoCounts holds aggregate counts per partition.
type TodoCounts struct {
	Active  int `json:"active"`
	Backlog int `json:"backlog"`
	Done    int `json:"done"`
}

// TargetDetail is a target with its bullets and grouped todos.
type TargetDetail struct {
	ID         int64          `json:"id"`
	InterestID int64          `json:"interest_id"`
	Name       string         `json:"name"`
	SortOrder  int            `json:"sort_order"`
	Bullets    []TargetBullet `json:"bullets"`
	Todos      GroupedTodos   `json:"todos"`
}

// InterestExport is the full snapshot returned by a successful token redemption.
type InterestExport struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	FocusState string         `json:"focus_state"`
	ExportedAt time.Time      `json:"exported_at"`
	Targets    []TargetDetail `json:"targets"`
	Totals     TodoCounts     `json:"totals"`
}
