package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/subhamsarangi/polymathscurse/internal/model"
)

// TargetStore persists targets and their bullets and todos. Count caps
// (3 bullets, 2 active todos, 3 backlog todos per target) are enforced inside
// transactions here; ownership and interactivity guards live in the handlers.
type TargetStore struct {
	db *sql.DB
}

func NewTargetStore(db *sql.DB) *TargetStore {
	return &TargetStore{db: db}
}

func scanTarget(scanner interface{ Scan(...any) error }) (*model.Target, error) {
	var t model.Target
	err := scanner.Scan(&t.ID, &t.InterestID, &t.Name, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const targetCols = `id, interest_id, name, sort_order, created_at, updated_at`

func scanBullet(scanner interface{ Scan(...any) error }) (*model.TargetBullet, error) {
	var b model.TargetBullet
	var category sql.NullString
	err := scanner.Scan(&b.ID, &b.TargetID, &category, &b.Content, &b.SortOrder, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if category.Valid {
		b.Category = &category.String
	}
	return &b, nil
}

const bulletCols = `id, target_id, category, content, sort_order, created_at, updated_at`

func scanTodo(scanner interface{ Scan(...any) error }) (*model.Todo, error) {
	var t model.Todo
	var doneAt sql.NullTime
	err := scanner.Scan(&t.ID, &t.TargetID, &t.Status, &t.Content, &t.SortOrder, &t.CreatedAt, &doneAt)
	if err != nil {
		return nil, err
	}
	if doneAt.Valid {
		t.DoneAt = &doneAt.Time
	}
	return &t, nil
}

const todoCols = `id, target_id, status, content, sort_order, created_at, done_at`

// GetOwned returns the target if its interest belongs to the user.
func (s *TargetStore) GetOwned(userID, targetID int64) (*model.Target, error) {
	row := s.db.QueryRow(
		`SELECT t.id, t.interest_id, t.name, t.sort_order, t.created_at, t.updated_at
		   FROM targets t
		   JOIN interests i ON i.id = t.interest_id
		  WHERE t.id = ? AND i.user_id = ?`,
		targetID, userID,
	)
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

// InterestForTarget resolves the owning interest of a target, scoped to the user.
func (s *TargetStore) InterestForTarget(userID, targetID int64) (*model.Interest, error) {
	row := s.db.QueryRow(
		`SELECT i.id, i.user_id, i.name, i.status, i.focus_state, i.sort_order, i.created_at, i.updated_at
		   FROM interests i
		   JOIN targets t ON t.interest_id = i.id
		  WHERE t.id = ? AND i.user_id = ?`,
		targetID, userID,
	)
	i, err := scanInterest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("interest for target: %w", err)
	}
	return i, nil
}

func (s *TargetStore) ListForInterest(interestID int64) ([]model.Target, error) {
	rows, err := s.db.Query(
		`SELECT `+targetCols+` FROM targets WHERE interest_id = ?
		  ORDER BY sort_order ASC, updated_at DESC`,
		interestID,
	)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, *t)
	}
	return targets, rows.Err()
}

func (s *TargetStore) Create(interestID int64, name string) (*model.Target, error) {
	result, err := s.db.Exec(
		`INSERT INTO targets (interest_id, name) VALUES (?, ?)`,
		interestID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert target: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getByID(id)
}

func (s *TargetStore) getByID(id int64) (*model.Target, error) {
	row := s.db.QueryRow(`SELECT `+targetCols+` FROM targets WHERE id = ?`, id)
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *TargetStore) Rename(targetID int64, name string) (*model.Target, error) {
	_, err := s.db.Exec(
		`UPDATE targets SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, targetID,
	)
	if err != nil {
		return nil, fmt.Errorf("rename target: %w", err)
	}
	return s.getByID(targetID)
}

func (s *TargetStore) Delete(targetID int64) error {
	result, err := s.db.Exec(`DELETE FROM targets WHERE id = ?`, targetID)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
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

// --- Bullets ---

// BulletInput is one bullet in a bulk replace.
type BulletInput struct {
	Content   string  `json:"content"`
	Category  *string `json:"category"`
	SortOrder *int    `json:"sort_order"`
}

func (s *TargetStore) ListBullets(targetID int64) ([]model.TargetBullet, error) {
	rows, err := s.db.Query(
		`SELECT `+bulletCols+` FROM target_bullets WHERE target_id = ?
		  ORDER BY sort_order ASC, updated_at DESC`,
		targetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bullets: %w", err)
	}
	defer rows.Close()

	var bullets []model.TargetBullet
	for rows.Next() {
		b, err := scanBullet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bullet: %w", err)
		}
		bullets = append(bullets, *b)
	}
	return bullets, rows.Err()
}

// ReplaceBullets atomically replaces the target's bullets with the given set.
// Returns ErrBulletLimit when more than three bullets are supplied.
func (s *TargetStore) ReplaceBullets(targetID int64, bullets []BulletInput) ([]model.TargetBullet, error) {
	if len(bullets) > model.MaxBulletsPerTarget {
		return nil, ErrBulletLimit
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM target_bullets WHERE target_id = ?`, targetID); err != nil {
		return nil, fmt.Errorf("clear bullets: %w", err)
	}

	for i, b := range bullets {
		sortOrder := i
		if b.SortOrder != nil {
			sortOrder = *b.SortOrder
		}
		var category sql.NullString
		if b.Category != nil {
			category = sql.NullString{String: *b.Category, Valid: true}
		}
		if _, err := tx.Exec(
			`INSERT INTO target_bullets (target_id, category, content, sort_order) VALUES (?, ?, ?, ?)`,
			targetID, category, b.Content, sortOrder,
		); err != nil {
			return nil, fmt.Errorf("insert bullet: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.ListBullets(targetID)
}

// --- Todos ---

func countTodos(q querier, targetID int64, status string) (int, error) {
	var n int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM todos WHERE target_id = ? AND status = ?`,
		targetID, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count todos: %w", err)
	}
	return n, nil
}

func checkTodoCap(q querier, targetID int64, status string) error {
	switch status {
	case model.TodoActive:
		n, err := countTodos(q, targetID, model.TodoActive)
		if err != nil {
			return err
		}
		if n >= model.MaxActiveTodos {
			return ErrActiveTodoLimit
		}
	case model.TodoBacklog:
		n, err := countTodos(q, targetID, model.TodoBacklog)
		if err != nil {
			return err
		}
		if n >= model.MaxBacklogTodos {
			return ErrBacklogTodoLimit
		}
	}
	return nil
}

// ListTodos returns the target's todos, active first, then backlog, then done,
// newest first within each group.
func (s *TargetStore) ListTodos(targetID int64) ([]model.Todo, error) {
	rows, err := s.db.Query(
		`SELECT `+todoCols+` FROM todos WHERE target_id = ?
		  ORDER BY CASE status WHEN 'ACTIVE' THEN 0 WHEN 'BACKLOG' THEN 1 ELSE 2 END,
		           created_at DESC`,
		targetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	var todos []model.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, *t)
	}
	return todos, rows.Err()
}

// CreateTodo inserts a todo in ACTIVE or BACKLOG, enforcing the per-target cap
// for that bucket in the same transaction.
func (s *TargetStore) CreateTodo(targetID int64, status, content string) (*model.Todo, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkTodoCap(tx, targetID, status); err != nil {
		return nil, err
	}

	result, err := tx.Exec(
		`INSERT INTO todos (target_id, status, content) VALUES (?, ?, ?)`,
		targetID, status, content,
	)
	if err != nil {
		return nil, fmt.Errorf("insert todo: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.getTodoByID(id)
}

func (s *TargetStore) getTodoByID(id int64) (*model.Todo, error) {
	row := s.db.QueryRow(`SELECT `+todoCols+` FROM todos WHERE id = ?`, id)
	t, err := scanTodo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return t, nil
}

// GetOwnedTodo returns the todo if its target's interest belongs to the user.
func (s *TargetStore) GetOwnedTodo(userID, todoID int64) (*model.Todo, error) {
	row := s.db.QueryRow(
		`SELECT td.id, td.target_id, td.status, td.content, td.sort_order, td.created_at, td.done_at
		   FROM todos td
		   JOIN targets t ON t.id = td.target_id
		   JOIN interests i ON i.id = t.interest_id
		  WHERE td.id = ? AND i.user_id = ?`,
		todoID, userID,
	)
	t, err := scanTodo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return t, nil
}

// EditTodo rewrites the todo's content.
func (s *TargetStore) EditTodo(todoID int64, content string) (*model.Todo, error) {
	_, err := s.db.Exec(`UPDATE todos SET content = ? WHERE id = ?`, content, todoID)
	if err != nil {
		return nil, fmt.Errorf("edit todo: %w", err)
	}
	return s.getTodoByID(todoID)
}

// MarkDone transitions the todo to DONE and stamps done_at. DONE is terminal.
func (s *TargetStore) MarkDone(todoID int64) (*model.Todo, error) {
	_, err := s.db.Exec(
		`UPDATE todos SET status = ?, done_at = ? WHERE id = ?`,
		model.TodoDone, time.Now().UTC(), todoID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark todo done: %w", err)
	}
	return s.getTodoByID(todoID)
}

// MoveTodo switches a todo between ACTIVE and BACKLOG, enforcing the
// destination cap. Returns ErrTodoDone for DONE todos (no reverse transition).
func (s *TargetStore) MoveTodo(todoID int64, newStatus string) (*model.Todo, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+todoCols+` FROM todos WHERE id = ?`, todoID)
	todo, err := scanTodo(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get todo: %w", err)
	}

	if todo.Status == model.TodoDone {
		return nil, ErrTodoDone
	}
	if todo.Status == newStatus {
		return todo, tx.Commit()
	}

	if err := checkTodoCap(tx, todo.TargetID, newStatus); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(`UPDATE todos SET status = ? WHERE id = ?`, newStatus, todoID); err != nil {
		return nil, fmt.Errorf("move todo: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.getTodoByID(todoID)
}

// Detail returns the target with its bullets and grouped todos.
func (s *TargetStore) Detail(targetID int64) (*model.TargetDetail, error) {
	target, err := s.getByID(targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, nil
	}

	bullets, err := s.ListBullets(targetID)
	if err != nil {
		return nil, err
	}
	if bullets == nil {
		bullets = []model.TargetBullet{}
	}

	todos, err := s.ListTodos(targetID)
	if err != nil {
		return nil, err
	}

	grouped := model.GroupedTodos{Active: []model.Todo{}, Backlog: []model.Todo{}, Done: []model.Todo{}}
	for _, td := range todos {
		switch td.Status {
		case model.TodoActive:
			grouped.Active = append(grouped.Active, td)
		case model.TodoBacklog:
			grouped.Backlog = append(grouped.Backlog, td)
		default:
			grouped.Done = append(grouped.Done, td)
		}
	}

	return &model.TargetDetail{
		ID:         target.ID,
		InterestID: target.InterestID,
		Name:       target.Name,
		SortOrder:  target.SortOrder,
		Bullets:    bullets,
		Todos:      grouped,
	}, nil
}
