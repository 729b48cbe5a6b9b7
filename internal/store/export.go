package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/subhamsarangi/polymathscurse/internal/model"
)

// ExportStore owns the PENDING -> PAID -> CONSUMED export lifecycle: purchase
// records, single-use token minting and redemption, and webhook fulfillment.
// SQLite has no SELECT FOR UPDATE, so the settle/consume writes are guarded by
// compare-and-swap updates on status; zero rows affected means the race was
// lost to a concurrent attempt.
type ExportStore struct {
	db *sql.DB
}

func NewExportStore(db *sql.DB) *ExportStore {
	return &ExportStore{db: db}
}

func scanExport(scanner interface{ Scan(...any) error }) (*model.ExportDownload, error) {
	var e model.ExportDownload
	var provider, providerRef, token sql.NullString
	var tokenIssuedAt, paidAt, consumedAt sql.NullTime
	err := scanner.Scan(
		&e.ID, &e.UserID, &e.InterestID, &e.Status, &provider, &providerRef,
		&e.AmountCents, &e.Currency, &token, &tokenIssuedAt,
		&paidAt, &consumedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if provider.Valid {
		e.Provider = &provider.String
	}
	if providerRef.Valid {
		e.ProviderRef = &providerRef.String
	}
	if token.Valid {
		e.Token = &token.String
	}
	if tokenIssuedAt.Valid {
		e.TokenIssuedAt = &tokenIssuedAt.Time
	}
	if paidAt.Valid {
		e.PaidAt = &paidAt.Time
	}
	if consumedAt.Valid {
		e.ConsumedAt = &consumedAt.Time
	}
	return &e, nil
}

const exportCols = `id, user_id, interest_id, status, provider, provider_ref,
	amount_cents, currency, token, token_issued_at, paid_at, consumed_at, created_at, updated_at`

// generateToken returns a cryptographically random URL-safe download token.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreatePending inserts a PENDING purchase at the given price.
func (s *ExportStore) CreatePending(userID, interestID int64, amountCents int, currency string) (*model.ExportDownload, error) {
	result, err := s.db.Exec(
		`INSERT INTO export_downloads (user_id, interest_id, status, amount_cents, currency)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, interestID, model.ExportPending, amountCents, currency,
	)
	if err != nil {
		return nil, fmt.Errorf("insert export: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getByID(id)
}

// CreateFree inserts a purchase that is immediately PAID at amount zero,
// used while the free-export override is active. No token is minted here.
func (s *ExportStore) CreateFree(userID, interestID int64, currency string) (*model.ExportDownload, error) {
	result, err := s.db.Exec(
		`INSERT INTO export_downloads (user_id, interest_id, status, amount_cents, currency, provider, paid_at)
		 VALUES (?, ?, ?, 0, ?, ?, ?)`,
		userID, interestID, model.ExportPaid, currency, model.ProviderFreeMode, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert free export: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getByID(id)
}

// Get returns the export regardless of owner, for webhook fulfillment and
// admin use.
func (s *ExportStore) Get(exportID int64) (*model.ExportDownload, error) {
	return s.getByID(exportID)
}

func (s *ExportStore) getByID(id int64) (*model.ExportDownload, error) {
	row := s.db.QueryRow(`SELECT `+exportCols+` FROM export_downloads WHERE id = ?`, id)
	e, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get export: %w", err)
	}
	return e, nil
}

// GetForUser returns the export if it belongs to the user.
func (s *ExportStore) GetForUser(exportID, userID int64) (*model.ExportDownload, error) {
	row := s.db.QueryRow(
		`SELECT `+exportCols+` FROM export_downloads WHERE id = ? AND user_id = ?`,
		exportID, userID,
	)
	e, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get export: %w", err)
	}
	return e, nil
}

// MintToken issues the export's single-use download token. Minting is
// idempotent: a PAID export with a token returns the same token on every call,
// so one purchase can never hold two live tokens. PENDING exports fail with
// ErrPaymentRequired, CANCELED with ErrExportCanceled, CONSUMED with
// ErrExportConsumed.
func (s *ExportStore) MintToken(exportID, userID int64) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT `+exportCols+` FROM export_downloads WHERE id = ? AND user_id = ?`,
		exportID, userID,
	)
	rec, err := scanExport(row)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get export: %w", err)
	}

	switch rec.Status {
	case model.ExportPending:
		return "", ErrPaymentRequired
	case model.ExportCanceled:
		return "", ErrExportCanceled
	case model.ExportConsumed:
		return "", ErrExportConsumed
	}

	if rec.Token != nil {
		return *rec.Token, tx.Commit()
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(
		`UPDATE export_downloads SET token = ?, token_issued_at = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ?`,
		token, time.Now().UTC(), exportID,
	); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return token, nil
}

// Redeem exchanges a token for the export payload, exactly once. The status
// flip to CONSUMED and the snapshot read happen in one transaction, and the
// flip is a compare-and-swap on status=PAID so a token can satisfy only a
// single successful redemption.
func (s *ExportStore) Redeem(token string, userID int64) (*model.InterestExport, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+exportCols+` FROM export_downloads WHERE token = ?`, token)
	rec, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get export by token: %w", err)
	}

	if rec.UserID != userID {
		return nil, ErrTokenForbidden
	}
	if rec.Status != model.ExportPaid {
		return nil, ErrNotRedeemable
	}

	interest, err := getOwnedInterest(tx, userID, rec.InterestID)
	if err != nil {
		return nil, err
	}
	if interest == nil {
		return nil, ErrNotFound
	}
	if interest.Status != model.StatusFocus {
		return nil, ErrNotExportable
	}

	result, err := tx.Exec(
		`UPDATE export_downloads SET status = ?, consumed_at = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ? AND status = ?`,
		model.ExportConsumed, time.Now().UTC(), rec.ID, model.ExportPaid,
	)
	if err != nil {
		return nil, fmt.Errorf("consume export: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotRedeemable
	}

	payload, err := buildExportSnapshot(tx, interest)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return payload, nil
}

// buildExportSnapshot assembles the interest's full target/bullet/todo tree:
// targets by (sort_order, updated_at desc), bullets likewise, todos
// partitioned by status and ordered newest first, with aggregate counts.
func buildExportSnapshot(tx *sql.Tx, interest *model.Interest) (*model.InterestExport, error) {
	targetRows, err := tx.Query(
		`SELECT `+targetCols+` FROM targets WHERE interest_id = ?
		  ORDER BY sort_order ASC, updated_at DESC`,
		interest.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot targets: %w", err)
	}
	defer targetRows.Close()

	var targets []model.TargetDetail
	byTarget := make(map[int64]int)
	for targetRows.Next() {
		t, err := scanTarget(targetRows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		byTarget[t.ID] = len(targets)
		targets = append(targets, model.TargetDetail{
			ID:         t.ID,
			InterestID: t.InterestID,
			Name:       t.Name,
			SortOrder:  t.SortOrder,
			Bullets:    []model.TargetBullet{},
			Todos:      model.GroupedTodos{Active: []model.Todo{}, Backlog: []model.Todo{}, Done: []model.Todo{}},
		})
	}
	if err := targetRows.Err(); err != nil {
		return nil, err
	}

	bulletRows, err := tx.Query(
		`SELECT b.id, b.target_id, b.category, b.content, b.sort_order, b.created_at, b.updated_at
		   FROM target_bullets b
		   JOIN targets t ON t.id = b.target_id
		  WHERE t.interest_id = ?
		  ORDER BY b.target_id ASC, b.sort_order ASC, b.updated_at DESC`,
		interest.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot bullets: %w", err)
	}
	defer bulletRows.Close()

	for bulletRows.Next() {
		b, err := scanBullet(bulletRows)
		if err != nil {
			return nil, fmt.Errorf("scan bullet: %w", err)
		}
		if idx, ok := byTarget[b.TargetID]; ok {
			targets[idx].Bullets = append(targets[idx].Bullets, *b)
		}
	}
	if err := bulletRows.Err(); err != nil {
		return nil, err
	}

	todoRows, err := tx.Query(
		`SELECT td.id, td.target_id, td.status, td.content, td.sort_order, td.created_at, td.done_at
		   FROM todos td
		   JOIN targets t ON t.id = td.target_id
		  WHERE t.interest_id = ?
		  ORDER BY td.target_id ASC, td.created_at DESC`,
		interest.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot todos: %w", err)
	}
	defer todoRows.Close()

	var totals model.TodoCounts
	for todoRows.Next() {
		td, err := scanTodo(todoRows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		idx, ok := byTarget[td.TargetID]
		if !ok {
			continue
		}
		switch td.Status {
		case model.TodoActive:
			targets[idx].Todos.Active = append(targets[idx].Todos.Active, *td)
			totals.Active++
		case model.TodoBacklog:
			targets[idx].Todos.Backlog = append(targets[idx].Todos.Backlog, *td)
			totals.Backlog++
		default:
			targets[idx].Todos.Done = append(targets[idx].Todos.Done, *td)
			totals.Done++
		}
	}
	if err := todoRows.Err(); err != nil {
		return nil, err
	}

	if targets == nil {
		targets = []model.TargetDetail{}
	}
	return &model.InterestExport{
		ID:         interest.ID,
		Name:       interest.Name,
		Status:     interest.Status,
		FocusState: interest.FocusState,
		ExportedAt: time.Now().UTC(),
		Targets:    targets,
		Totals:     totals,
	}, nil
}

// FulfillPayment settles a PENDING export from a verified provider event.
// Reports ErrAlreadySettled for PAID/CONSUMED records (duplicate delivery,
// safe to acknowledge), ErrUnexpectedStatus for anything else that is not
// PENDING, and mismatch errors when the paid amount or currency disagrees
// with the stored purchase. The PENDING -> PAID flip is a compare-and-swap;
// losing the race to a concurrent delivery also reports ErrAlreadySettled.
func (s *ExportStore) FulfillPayment(exportID int64, provider, providerRef string, amountCents int, currency string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+exportCols+` FROM export_downloads WHERE id = ?`, exportID)
	rec, err := scanExport(row)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get export: %w", err)
	}

	switch rec.Status {
	case model.ExportPaid, model.ExportConsumed:
		return ErrAlreadySettled
	case model.ExportPending:
	default:
		return ErrUnexpectedStatus
	}

	if amountCents != rec.AmountCents {
		return ErrAmountMismatch
	}
	if currency != rec.Currency {
		return ErrCurrencyMismatch
	}

	result, err := tx.Exec(
		`UPDATE export_downloads
		    SET status = ?, paid_at = ?, provider = ?, provider_ref = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ? AND status = ?`,
		model.ExportPaid, time.Now().UTC(), provider, providerRef, exportID, model.ExportPending,
	)
	if err != nil {
		return fmt.Errorf("settle export: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadySettled
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Cancel is the administrative escape hatch: PENDING or PAID exports move to
// CANCELED, consumed or already-canceled ones report ErrNotCancelable.
func (s *ExportStore) Cancel(exportID int64) (*model.ExportDownload, error) {
	result, err := s.db.Exec(
		`UPDATE export_downloads SET status = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ? AND status IN (?, ?)`,
		model.ExportCanceled, exportID, model.ExportPending, model.ExportPaid,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel export: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		rec, err := s.getByID(exportID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, ErrNotFound
		}
		return nil, ErrNotCancelable
	}
	return s.getByID(exportID)
}
