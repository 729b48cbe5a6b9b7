package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/subhamsarangi/polymathscurse/internal/model"
)

// InterestStore owns the focus state machine: transitions between BACKLOG and
// FOCUS, ACTIVE and PAUSED within FOCUS, and the stint/pause timeline rows.
// Every transition runs in one transaction so state fields and timeline rows
// commit together.
type InterestStore struct {
	db *sql.DB
}

func NewInterestStore(db *sql.DB) *InterestStore {
	return &InterestStore{db: db}
}

func scanInterest(scanner interface{ Scan(...any) error }) (*model.Interest, error) {
	var i model.Interest
	err := scanner.Scan(
		&i.ID, &i.UserID, &i.Name, &i.Status, &i.FocusState,
		&i.SortOrder, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

const interestCols = `id, user_id, name, status, focus_state, sort_order, created_at, updated_at`

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

func getOwnedInterest(q querier, userID, interestID int64) (*model.Interest, error) {
	row := q.QueryRow(
		`SELECT `+interestCols+` FROM interests WHERE id = ? AND user_id = ?`,
		interestID, userID,
	)
	i, err := scanInterest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get interest: %w", err)
	}
	return i, nil
}

func countFocus(q querier, userID int64) (int, error) {
	var n int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM interests WHERE user_id = ? AND status = ?`,
		userID, model.StatusFocus,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count focus interests: %w", err)
	}
	return n, nil
}

// openStint returns the interest's open stint id, or 0 when none is open.
func openStint(q querier, userID, interestID int64) (int64, error) {
	var id int64
	err := q.QueryRow(
		`SELECT id FROM focus_stints WHERE user_id = ? AND interest_id = ? AND ended_at IS NULL`,
		userID, interestID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get open stint: %w", err)
	}
	return id, nil
}

// openPause returns the stint's open pause interval id, or 0 when none is open.
func openPause(q querier, stintID int64) (int64, error) {
	var id int64
	err := q.QueryRow(
		`SELECT id FROM pause_intervals WHERE stint_id = ? AND resumed_at IS NULL`,
		stintID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get open pause: %w", err)
	}
	return id, nil
}

func setInterestState(q querier, interestID int64, status, focusState string) error {
	_, err := q.Exec(
		`UPDATE interests SET status = ?, focus_state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, focusState, interestID,
	)
	if err != nil {
		return fmt.Errorf("update interest state: %w", err)
	}
	return nil
}

// Create inserts a new interest for the user. If fewer than four interests are
// in focus it starts at FOCUS/ACTIVE with a fresh open stint, otherwise it
// starts backlogged.
func (s *InterestStore) Create(userID int64, name string) (*model.Interest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	focusCount, err := countFocus(tx, userID)
	if err != nil {
		return nil, err
	}

	status := model.StatusBacklog
	if focusCount < model.MaxFocusInterests {
		status = model.StatusFocus
	}

	result, err := tx.Exec(
		`INSERT INTO interests (user_id, name, status, focus_state) VALUES (?, ?, ?, ?)`,
		userID, name, status, model.FocusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("insert interest: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if status == model.StatusFocus {
		if _, err := tx.Exec(
			`INSERT INTO focus_stints (user_id, interest_id, started_at) VALUES (?, ?, ?)`,
			userID, id, time.Now().UTC(),
		); err != nil {
			return nil, fmt.Errorf("insert stint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetOwned(userID, id)
}

// GetOwned returns the interest if it exists and belongs to the user.
func (s *InterestStore) GetOwned(userID, interestID int64) (*model.Interest, error) {
	return getOwnedInterest(s.db, userID, interestID)
}

// List returns the user's interests, focus first, then by sort order and recency.
// statusFilter may be empty, FOCUS, or BACKLOG.
func (s *InterestStore) List(userID int64, statusFilter string) ([]model.Interest, error) {
	query := `SELECT ` + interestCols + ` FROM interests WHERE user_id = ?`
	args := []any{userID}
	if statusFilter != "" {
		query += ` AND status = ?`
		args = append(args, statusFilter)
	}
	query += ` ORDER BY status DESC, sort_order ASC, updated_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list interests: %w", err)
	}
	defer rows.Close()

	var interests []model.Interest
	for rows.Next() {
		i, err := scanInterest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		interests = append(interests, *i)
	}
	return interests, rows.Err()
}

// Rename updates the interest's display name. Returns ErrNotFound if the
// interest is missing or not owned by the user.
func (s *InterestStore) Rename(userID, interestID int64, name string) (*model.Interest, error) {
	result, err := s.db.Exec(
		`UPDATE interests SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		name, interestID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("rename interest: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetOwned(userID, interestID)
}

// Delete removes the interest; stints, pauses, targets, bullets and todos go
// with it via cascade.
func (s *InterestStore) Delete(userID, interestID int64) error {
	result, err := s.db.Exec(
		`DELETE FROM interests WHERE id = ? AND user_id = ?`,
		interestID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete interest: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MoveToFocus transitions BACKLOG -> FOCUS/ACTIVE and opens a new stint.
// A no-op when the interest is already in focus (any sub-state). Returns
// ErrFocusLimitReached when all four slots are taken.
func (s *InterestStore) MoveToFocus(userID, interestID int64) (*model.Interest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	interest, err := getOwnedInterest(tx, userID, interestID)
	if err != nil {
		return nil, err
	}
	if interest == nil {
		return nil, ErrNotFound
	}

	if interest.Status == model.StatusFocus {
		// Already in focus; a paused interest stays paused and keeps its stint.
		return interest, tx.Commit()
	}

	focusCount, err := countFocus(tx, userID)
	if err != nil {
		return nil, err
	}
	if focusCount >= model.MaxFocusInterests {
		return nil, ErrFocusLimitReached
	}

	if err := setInterestState(tx, interestID, model.StatusFocus, model.FocusActive); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(
		`INSERT INTO focus_stints (user_id, interest_id, started_at) VALUES (?, ?, ?)`,
		userID, interestID, time.Now().UTC(),
	); err != nil {
		return nil, fmt.Errorf("insert stint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetOwned(userID, interestID)
}

// Pause transitions FOCUS/ACTIVE -> FOCUS/PAUSED, opening a pause interval on
// the current stint. A no-op when already paused; ErrNotInFocus when the
// interest is backlogged; ErrNoOpenStint signals timeline corruption.
func (s *InterestStore) Pause(userID, interestID int64) (*model.Interest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	interest, err := getOwnedInterest(tx, userID, interestID)
	if err != nil {
		return nil, err
	}
	if interest == nil {
		return nil, ErrNotFound
	}
	if interest.Status != model.StatusFocus {
		return nil, ErrNotInFocus
	}
	if interest.FocusState == model.FocusPaused {
		return interest, tx.Commit()
	}

	stintID, err := openStint(tx, userID, interestID)
	if err != nil {
		return nil, err
	}
	if stintID == 0 {
		return nil, ErrNoOpenStint
	}

	pauseID, err := openPause(tx, stintID)
	if err != nil {
		return nil, err
	}
	if pauseID == 0 {
		if _, err := tx.Exec(
			`INSERT INTO pause_intervals (stint_id, paused_at) VALUES (?, ?)`,
			stintID, time.Now().UTC(),
		); err != nil {
			return nil, fmt.Errorf("insert pause: %w", err)
		}
	}

	if err := setInterestState(tx, interestID, model.StatusFocus, model.FocusPaused); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetOwned(userID, interestID)
}

// Resume transitions FOCUS/PAUSED -> FOCUS/ACTIVE, closing the open pause
// interval. A no-op when already active; ErrNotInFocus when backlogged.
func (s *InterestStore) Resume(userID, interestID int64) (*model.Interest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	interest, err := getOwnedInterest(tx, userID, interestID)
	if err != nil {
		return nil, err
	}
	if interest == nil {
		return nil, ErrNotFound
	}
	if interest.Status != model.StatusFocus {
		return nil, ErrNotInFocus
	}
	if interest.FocusState == model.FocusActive {
		return interest, tx.Commit()
	}

	stintID, err := openStint(tx, userID, interestID)
	if err != nil {
		return nil, err
	}
	if stintID == 0 {
		return nil, ErrNoOpenStint
	}

	pauseID, err := openPause(tx, stintID)
	if err != nil {
		return nil, err
	}
	if pauseID != 0 {
		if _, err := tx.Exec(
			`UPDATE pause_intervals SET resumed_at = ? WHERE id = ?`,
			time.Now().UTC(), pauseID,
		); err != nil {
			return nil, fmt.Errorf("close pause: %w", err)
		}
	}

	if err := setInterestState(tx, interestID, model.StatusFocus, model.FocusActive); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetOwned(userID, interestID)
}

// MoveToBacklog transitions FOCUS -> BACKLOG, closing any open pause interval
// and the open stint in the same transaction so neither is left dangling.
// A no-op when already backlogged. Focus state resets to ACTIVE as the default
// for a later re-entry.
func (s *InterestStore) MoveToBacklog(userID, interestID int64) (*model.Interest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	interest, err := getOwnedInterest(tx, userID, interestID)
	if err != nil {
		return nil, err
	}
	if interest == nil {
		return nil, ErrNotFound
	}
	if interest.Status != model.StatusFocus {
		return interest, tx.Commit()
	}

	now := time.Now().UTC()

	stintID, err := openStint(tx, userID, interestID)
	if err != nil {
		return nil, err
	}
	if stintID != 0 {
		pauseID, err := openPause(tx, stintID)
		if err != nil {
			return nil, err
		}
		if pauseID != 0 {
			if _, err := tx.Exec(
				`UPDATE pause_intervals SET resumed_at = ? WHERE id = ?`,
				now, pauseID,
			); err != nil {
				return nil, fmt.Errorf("close pause: %w", err)
			}
		}
		if _, err := tx.Exec(
			`UPDATE focus_stints SET ended_at = ? WHERE id = ?`,
			now, stintID,
		); err != nil {
			return nil, fmt.Errorf("close stint: %w", err)
		}
	}

	if err := setInterestState(tx, interestID, model.StatusBacklog, model.FocusActive); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetOwned(userID, interestID)
}

// Timeline returns all of the user's stints, newest first, each with its
// interest name and pause intervals in chronological order.
func (s *InterestStore) Timeline(userID int64) ([]model.TimelineStint, error) {
	rows, err := s.db.Query(
		`SELECT fs.id, fs.interest_id, i.name, fs.started_at, fs.ended_at
		   FROM focus_stints fs
		   JOIN interests i ON i.id = fs.interest_id
		  WHERE fs.user_id = ?
		  ORDER BY fs.started_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stints: %w", err)
	}
	defer rows.Close()

	var stints []model.TimelineStint
	var ids []any
	for rows.Next() {
		var st model.TimelineStint
		var endedAt sql.NullTime
		if err := rows.Scan(&st.ID, &st.InterestID, &st.InterestName, &st.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan stint: %w", err)
		}
		if endedAt.Valid {
			st.EndedAt = &endedAt.Time
		}
		st.Pauses = []model.PauseInterval{}
		stints = append(stints, st)
		ids = append(ids, st.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stints) == 0 {
		return stints, nil
	}

	placeholders := "?"
	for range ids[1:] {
		placeholders += ", ?"
	}
	pauseRows, err := s.db.Query(
		`SELECT id, stint_id, paused_at, resumed_at FROM pause_intervals
		  WHERE stint_id IN (`+placeholders+`) ORDER BY paused_at ASC`,
		ids...,
	)
	if err != nil {
		return nil, fmt.Errorf("list pauses: %w", err)
	}
	defer pauseRows.Close()

	byStint := make(map[int64]int, len(stints))
	for idx, st := range stints {
		byStint[st.ID] = idx
	}
	for pauseRows.Next() {
		var p model.PauseInterval
		var resumedAt sql.NullTime
		if err := pauseRows.Scan(&p.ID, &p.StintID, &p.PausedAt, &resumedAt); err != nil {
			return nil, fmt.Errorf("scan pause: %w", err)
		}
		if resumedAt.Valid {
			p.ResumedAt = &resumedAt.Time
		}
		if idx, ok := byStint[p.StintID]; ok {
			stints[idx].Pauses = append(stints[idx].Pauses, p)
		}
	}
	return stints, pauseRows.Err()
}

// OpenStintID exposes the open stint lookup for assertions and diagnostics.
func (s *InterestStore) OpenStintID(userID, interestID int64) (int64, error) {
	return openStint(s.db, userID, interestID)
}

// OpenPauseID exposes the open pause lookup for assertions and diagnostics.
func (s *InterestStore) OpenPauseID(stintID int64) (int64, error) {
	return openPause(s.db, stintID)
}
