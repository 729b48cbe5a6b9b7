package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/subhamsarangi/polymathscurse/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var jti sql.NullString
	err := scanner.Scan(&u.ID, &u.Email, &u.PasswordHash, &jti, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if jti.Valid {
		u.RefreshJTI = &jti.String
	}
	return &u, nil
}

const userCols = `id, email, password_hash, refresh_jti, created_at, updated_at`

// Create inserts a user with the given password hash and initial refresh jti.
// Returns ErrEmailTaken if the email is already registered.
func (s *UserStore) Create(email, passwordHash, refreshJTI string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, password_hash, refresh_jti) VALUES (?, ?, ?)`,
		email, passwordHash, refreshJTI,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// RotateRefreshJTI replaces the stored refresh rotation id, invalidating every
// previously issued refresh token for the user.
func (s *UserStore) RotateRefreshJTI(id int64, jti string) error {
	_, err := s.db.Exec(
		`UPDATE users SET refresh_jti = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		jti, id,
	)
	if err != nil {
		return fmt.Errorf("rotate refresh jti: %w", err)
	}
	return nil
}

// ClearRefreshJTI revokes the user's refresh token on logout.
func (s *UserStore) ClearRefreshJTI(id int64) error {
	_, err := s.db.Exec(
		`UPDATE users SET refresh_jti = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clear refresh jti: %w", err)
	}
	return nil
}

// isUniqueViolation detects a sqlite UNIQUE constraint failure. The modernc
// driver surfaces constraint errors as plain error strings.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
