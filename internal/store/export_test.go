package store

import (
	"errors"
	"testing"

	"github.com/subhamsarangi/polymathscurse/internal/database"
	"github.com/subhamsarangi/polymathscurse/internal/model"
)

type exportTestEnv struct {
	exports   *ExportStore
	interests *InterestStore
	targets   *TargetStore
	userID    int64
	interest  *model.Interest
}

func setupExportTestDB(t *testing.T) *exportTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user, err := NewUserStore(db).Create("test@example.com", "hash", "jti")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	interests := NewInterestStore(db)
	interest, err := interests.Create(user.ID, "Piano")
	if err != nil {
		t.Fatalf("create interest: %v", err)
	}
	return &exportTestEnv{
		exports:   NewExportStore(db),
		interests: interests,
		targets:   NewTargetStore(db),
		userID:    user.ID,
		interest:  interest,
	}
}

func TestExportPendingLifecycle(t *testing.T) {
	env := setupExportTestDB(t)

	export, err := env.exports.CreatePending(env.userID, env.interest.ID, 100, "USD")
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if export.Status != model.ExportPending {
		t.Errorf("status = %q, want PENDING", export.Status)
	}
	if export.AmountCents != 100 || export.Currency != "USD" {
		t.Errorf("price = %d %s, want 100 USD", export.AmountCents, export.Currency)
	}

	// No token before payment.
	if _, err := env.exports.MintToken(export.ID, env.userID); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("mint pending: expected ErrPaymentRequired, got %v", err)
	}

	if err := env.exports.FulfillPayment(export.ID, "stripe", "cs_test_1", 100, "USD"); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	paid, err := env.exports.GetForUser(export.ID, env.userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if paid.Status != model.ExportPaid || paid.PaidAt == nil {
		t.Fatalf("paid = %+v, want PAID with paid_at", paid)
	}
	if paid.Provider == nil || *paid.Provider != "stripe" {
		t.Errorf("provider = %v, want stripe", paid.Provider)
	}
	if paid.ProviderRef == nil || *paid.ProviderRef != "cs_test_1" {
		t.Errorf("provider_ref = %v, want cs_test_1", paid.ProviderRef)
	}
}

func TestExportFreeMode(t *testing.T) {
	env := setupExportTestDB(t)

	export, err := env.exports.CreateFree(env.userID, env.interest.ID, "USD")
	if err != nil {
		t.Fatalf("create free: %v", err)
	}
	if export.Status != model.ExportPaid {
		t.Errorf("status = %q, want PAID", export.Status)
	}
	if export.AmountCents != 0 {
		t.Errorf("amount = %d, want 0", export.AmountCents)
	}
	if export.Provider == nil || *export.Provider != model.ProviderFreeMode {
		t.Errorf("provider = %v, want FREE_MODE", export.Provider)
	}
	if export.PaidAt == nil {
		t.Error("expected paid_at to be set")
	}
	if export.Token != nil {
		t.Error("free purchase must not auto-mint a token")
	}
}

func TestExportMintTokenIdempotent(t *testing.T) {
	env := setupExportTestDB(t)

	export, err := env.exports.CreateFree(env.userID, env.interest.ID, "USD")
	if err != nil {
		t.Fatalf("create free: %v", err)
	}

	first, err := env.exports.MintToken(export.ID, env.userID)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if first == "" {
		t.Fatal("empty token")
	}
	second, err := env.exports.MintToken(export.ID, env.userID)
	if err != nil {
		t.Fatalf("mint again: %v", err)
	}
	if second != first {
		t.Errorf("second mint = %q, want same token %q", second, first)
	}

	// Another user's id never reaches this export.
	if _, err := env.exports.MintToken(export.ID, env.userID+1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mint as other user: expected ErrNotFound, got %v", err)
	}
}

func TestExportMintTokenStatusGates(t *testing.T) {
	env := setupExportTestDB(t)

	export, err := env.exports.CreateFree(env.userID, env.interest.ID, "USD")
	if err != nil {
		t.Fatalf("create free: %v", err)
	}
	if _, err := env.exports.Cancel(export.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := env.exports.MintToken(export.ID, env.userID); !errors.Is(err, ErrExportCanceled) {
		t.Fatalf("mint canceled: expected ErrExportCanceled, got %v", err)
	}

	consumed, err := env.exports.CreateFree(env.userID, env.interest.ID, "USD")
	if err != nil {
		t.Fatalf("create free: %v", err)
	}
	token, err := env.exports.MintToken(consumed.ID, env.userID)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := env.exports.Redeem(token, env.userID); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := env.exports.MintToken(consumed.ID, env.userID); !errors.Is(err, ErrExportConsumed) {
		t.Fatalf("mint consumed: expected ErrExportConsumed, got %v", err)
	}
}

func TestExportRedeemExactlyOnce(t *testing.T) {
	env := setupExportTestDB(t)

	target, err := env.targets.Create(env.interest.ID, "Learn scales")
	if err != nil {
		t.Fatalf("create target: %v", err)
	}
	if _, err := env.targets.ReplaceBullets(target.ID, []BulletInput{{Content: "major scales"}}); err != nil {
		t.Fatalf("bullets: %v", err)
	}
	if _, err := env.targets.CreateTodo(target.ID, model.TodoActive, "practice"); err != nil {
		t.Fatalf("todo: %v", err)
	}
	done, err := env.targets.CreateTodo(target.ID, model.TodoBacklog, "recital")
	if err != nil {
		t.Fatalf("todo: %v", err)
	}
	if _, err := env.targets.MarkDone(done.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	export, err := env.exports.CreateFree(env.userID, env.interest.ID, "USD")
	if err != nil {
		t.Fatalf("create free: %v", err)
	}
	token, err := env.exports.MintToken(export.ID, env.userID)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	payload, err := env.exports.Redeem(token, env.userID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if payload.Name != "Piano" {
		t.Errorf("name = %q, want Piano", payload.Name)
	}
	if len(payload.Targets) != 1 {
		t.Fatalf("targets len = %d, want 1", len(payload.Targets))
	}
	tgt := payload.Targets[0]
	if len(tgt.Bullets) != 1 {
		t.Errorf("bullets len = %d, want 1", len(tgt.Bullets))
	}
	if len(tgt.Todos.Active) != 1 || len(tgt.Todos.Done) != 1 {
		t.Errorf("todos = %d active / %d done, want 1/1", len(tgt.Todos.Active), len(tgt.Todos.Done))
	}
	if payload.Totals.Active != 1 || payload.Totals.Done != 1 || payload.Totals.Backlog != 0 {
		t.Errorf("totals = %+v, want 1 active / 0 backlog / 1 done", payload.Totals)
	}

	// The token is spent.
	if _, err := env.exports.Redeem(token, env.userID); !errors.Is(err, ErrNotRedeemable) {
		t.Fatalf("second redeem: expected ErrNotRedeemable, got %v", err)
	}
	rec, err := env.exports.GetForUser(export.ID, env.userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != model.ExportConsumed || rec.ConsumedAt == nil {
		t.Fatalf("record = %+v, want CONSUMED with consumed_at", rec)
	}
}

func TestExportRedeemGuards(t *testing.T) {
	env := setupExportTestDB(t)

	export, err := env.exports.CreateFree(env.userID, env.interest.ID, "USD")
	if err != nil {
		t.Fatalf("create free: %v", err)
	}
	token, err := env.exports.MintToken(export.ID, env.userID)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := env.exports.Redeem("no-such-token", env.userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token: expected ErrNotFound, got %v", err)
	}
	if _, err := env.exports.Redeem(token, env.userID+1); !errors.Is(err, ErrTokenForbidden) {
		t.Fatalf("wrong owner: expected ErrTokenForbidden, got %v", err)
	}

	// The interest must still be in focus at redemption time.
	if _, err := env.interests.MoveToBacklog(env.userID, env.interest.ID); err != nil {
		t.Fatalf("move to backlog: %v", err)
	}
	if _, err := env.exports.Redeem(token, env.userID); !errors.Is(err, ErrNotExportable) {
		t.Fatalf("backlogged interest: expected ErrNotExportable, got %v", err)
	}

	// Nothing was consumed by the failed attempts.
	rec, err := env.exports.GetForUser(export.ID, env.userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != model.ExportPaid {
		t.Fatalf("status = %q, want PAID untouched", rec.Status)
	}
}

func TestExportFulfillPaymentGuards(t *testing.T) {
	env := setupExportTestDB(t)

	export, err := env.exports.CreatePending(env.userID, env.interest.ID, 100, "USD")
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}

	if err := env.exports.FulfillPayment(export.ID, "stripe", "cs_1", 50, "USD"); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("amount mismatch: expected ErrAmountMismatch, got %v", err)
	}
	if err := env.exports.FulfillPayment(export.ID, "stripe", "cs_1", 100, "EUR"); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("currency mismatch: expected ErrCurrencyMismatch, got %v", err)
	}
	if err := env.exports.FulfillPayment(export.ID+100, "stripe", "cs_1", 100, "USD"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing export: expected ErrNotFound, got %v", err)
	}

	if err := env.exports.FulfillPayment(export.ID, "stripe", "cs_1", 100, "USD"); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	// A duplicate delivery reports already settled, never a second write.
	if err := env.exports.FulfillPayment(export.ID, "stripe", "cs_1", 100, "USD"); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("duplicate: expected ErrAlreadySettled, got %v", err)
	}

	canceled, err := env.exports.CreatePending(env.userID, env.interest.ID, 100, "USD")
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if _, err := env.exports.Cancel(canceled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := env.exports.FulfillPayment(canceled.ID, "stripe", "cs_2", 100, "USD"); !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("canceled: expected ErrUnexpectedStatus, got %v", err)
	}
}

func TestExportCancel(t *testing.T) {
	env := setupExportTestDB(t)

	export, err := env.exports.CreatePending(env.userID, env.interest.ID, 100, "USD")
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	rec, err := env.exports.Cancel(export.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if rec.Status != model.ExportCanceled {
		t.Errorf("status = %q, want CANCELED", rec.Status)
	}

	// CANCELED is terminal.
	if _, err := env.exports.Cancel(export.ID); !errors.Is(err, ErrNotCancelable) {
		t.Fatalf("cancel again: expected ErrNotCancelable, got %v", err)
	}
	if _, err := env.exports.Cancel(export.ID + 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel missing: expected ErrNotFound, got %v", err)
	}

	consumed, err := env.exports.CreateFree(env.userID, env.interest.ID, "USD")
	if err != nil {
		t.Fatalf("create free: %v", err)
	}
	token, err := env.exports.MintToken(consumed.ID, env.userID)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := env.exports.Redeem(token, env.userID); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := env.exports.Cancel(consumed.ID); !errors.Is(err, ErrNotCancelable) {
		t.Fatalf("cancel consumed: expected ErrNotCancelable, got %v", err)
	}
}
