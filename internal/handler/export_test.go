package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/subhamsarangi/polymathscurse/internal/auth"
	"github.com/subhamsarangi/polymathscurse/internal/database"
	"github.com/subhamsarangi/polymathscurse/internal/model"
	"github.com/subhamsarangi/polymathscurse/internal/store"
	"github.com/subhamsarangi/polymathscurse/internal/stripe"
	"github.com/subhamsarangi/polymathscurse/internal/ws"
)

type exportHandlerEnv struct {
	handler  *ExportHandler
	settings *store.SettingsStore
	userID   int64
	interest *model.Interest
}

func setupExportHandlerTest(t *testing.T) *exportHandlerEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user, err := store.NewUserStore(db).Create("alice@example.com", "hash", "jti")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	interests := store.NewInterestStore(db)
	interest, err := interests.Create(user.ID, "Piano")
	if err != nil {
		t.Fatalf("create interest: %v", err)
	}

	settings := store.NewSettingsStore(db)
	client := stripe.NewClient(stripe.Config{PriceCents: 100, Currency: "USD"})
	hub := ws.NewHub(slog.Default())
	h := NewExportHandler(store.NewExportStore(db), interests, settings, client, hub, slog.Default())
	return &exportHandlerEnv{handler: h, settings: settings, userID: user.ID, interest: interest}
}

func (env *exportHandlerEnv) do(t *testing.T, method, path, pathID, body string, fn http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if pathID != "" {
		req.SetPathValue("id", pathID)
	}
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: env.userID, Email: "alice@example.com"}))
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func TestExportHandlerCreatePending(t *testing.T) {
	env := setupExportHandlerTest(t)

	rec := env.do(t, "POST", "/api/interests/1/export", fmt.Sprint(env.interest.ID), "", env.handler.Create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var export model.ExportDownload
	if err := json.Unmarshal(rec.Body.Bytes(), &export); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if export.Status != model.ExportPending {
		t.Errorf("status = %q, want PENDING", export.Status)
	}
	if export.AmountCents != 100 || export.Currency != "USD" {
		t.Errorf("price = %d %s, want 100 USD", export.AmountCents, export.Currency)
	}

	// Minting before payment maps to 402.
	rec = env.do(t, "POST", "/api/exports/1/token", fmt.Sprint(export.ID), "", env.handler.MintToken)
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("mint pending: status = %d, want 402", rec.Code)
	}
}

func TestExportHandlerFreeModeFlow(t *testing.T) {
	env := setupExportHandlerTest(t)

	if _, err := env.settings.SetFreeExportsEnabled(true); err != nil {
		t.Fatalf("enable free mode: %v", err)
	}

	rec := env.do(t, "POST", "/api/interests/1/export", fmt.Sprint(env.interest.ID), "", env.handler.Create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var export model.ExportDownload
	if err := json.Unmarshal(rec.Body.Bytes(), &export); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if export.Status != model.ExportPaid || export.AmountCents != 0 {
		t.Fatalf("export = %+v, want PAID at amount 0", export)
	}

	// Checkout is pointless while exports are free.
	rec = env.do(t, "POST", "/api/exports/1/checkout", fmt.Sprint(export.ID), "", env.handler.Checkout)
	if rec.Code != http.StatusConflict && rec.Code != http.StatusServiceUnavailable {
		t.Errorf("checkout in free mode: status = %d, want conflict or unavailable", rec.Code)
	}

	rec = env.do(t, "POST", "/api/exports/1/token", fmt.Sprint(export.ID), "", env.handler.MintToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("mint: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var minted struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &minted); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if minted.Token == "" {
		t.Fatal("empty token")
	}

	rec = env.do(t, "POST", "/api/exports/download", "", fmt.Sprintf(`{"token": %q}`, minted.Token), env.handler.Download)
	if rec.Code != http.StatusOK {
		t.Fatalf("download: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var payload model.InterestExport
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Name != "Piano" {
		t.Errorf("payload name = %q, want Piano", payload.Name)
	}

	// Second redemption of the same token conflicts.
	rec = env.do(t, "POST", "/api/exports/download", "", fmt.Sprintf(`{"token": %q}`, minted.Token), env.handler.Download)
	if rec.Code != http.StatusConflict {
		t.Errorf("second download: status = %d, want 409", rec.Code)
	}
}

func TestExportHandlerCheckoutGuards(t *testing.T) {
	env := setupExportHandlerTest(t)
	env.handler.stripe = stripe.NewClient(stripe.Config{SecretKey: "sk_test_x", PriceCents: 100, Currency: "USD"})

	exports := env.handler.exports
	export, err := exports.CreatePending(env.userID, env.interest.ID, 100, "USD")
	if err != nil {
		t.Fatalf("create export: %v", err)
	}

	// Free mode makes a checkout pointless even for a PENDING export.
	if _, err := env.settings.SetFreeExportsEnabled(true); err != nil {
		t.Fatalf("enable free mode: %v", err)
	}
	rec := env.do(t, "POST", "/api/exports/1/checkout", fmt.Sprint(export.ID), "", env.handler.Checkout)
	if rec.Code != http.StatusConflict {
		t.Fatalf("free mode checkout: status = %d, want 409, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "currently free") {
		t.Errorf("free mode checkout body = %s, want free-mode conflict", rec.Body.String())
	}

	// Once settled there is nothing left to pay for.
	if _, err := env.settings.SetFreeExportsEnabled(false); err != nil {
		t.Fatalf("disable free mode: %v", err)
	}
	if err := exports.FulfillPayment(export.ID, "stripe", "cs_guard_1", 100, "USD"); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	rec = env.do(t, "POST", "/api/exports/1/checkout", fmt.Sprint(export.ID), "", env.handler.Checkout)
	if rec.Code != http.StatusConflict {
		t.Fatalf("paid checkout: status = %d, want 409, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "not awaiting payment") {
		t.Errorf("paid checkout body = %s, want not-awaiting-payment conflict", rec.Body.String())
	}
}

func TestExportHandlerRequiresFocus(t *testing.T) {
	env := setupExportHandlerTest(t)

	// Fill the focus slots then create a backlogged interest.
	interests := env.handler.interests
	for _, name := range []string{"B", "C", "D"} {
		if _, err := interests.Create(env.userID, name); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	backlogged, err := interests.Create(env.userID, "E")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if backlogged.Status != model.StatusBacklog {
		t.Fatalf("expected BACKLOG, got %s", backlogged.Status)
	}

	rec := env.do(t, "POST", "/api/interests/1/export", fmt.Sprint(backlogged.ID), "", env.handler.Create)
	if rec.Code != http.StatusForbidden {
		t.Errorf("backlogged export: status = %d, want 403", rec.Code)
	}

	rec = env.do(t, "POST", "/api/interests/1/export", "99999", "", env.handler.Create)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown interest: status = %d, want 404", rec.Code)
	}
}
