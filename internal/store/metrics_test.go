package store

import (
	"testing"
	"time"

	"github.com/subhamsarangi/polymathscurse/internal/database"
)

func TestMetricsCounters(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := NewUserStore(db)
	interests := NewInterestStore(db)
	exports := NewExportStore(db)
	ms := NewMetricsStore(db)

	alice, err := users.Create("alice@example.com", "hash", "jti-a")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := users.Create("bob@example.com", "hash", "jti-b")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	aliceInterest, err := interests.Create(alice.ID, "Piano")
	if err != nil {
		t.Fatalf("create interest: %v", err)
	}
	bobInterest, err := interests.Create(bob.ID, "Chess")
	if err != nil {
		t.Fatalf("create interest: %v", err)
	}

	// Alice pays twice, Bob only uses free mode.
	for _, ref := range []string{"cs_1", "cs_2"} {
		pending, err := exports.CreatePending(alice.ID, aliceInterest.ID, 100, "USD")
		if err != nil {
			t.Fatalf("create pending: %v", err)
		}
		if err := exports.FulfillPayment(pending.ID, "stripe", ref, 100, "USD"); err != nil {
			t.Fatalf("fulfill: %v", err)
		}
	}
	if _, err := exports.CreateFree(bob.ID, bobInterest.ID, "USD"); err != nil {
		t.Fatalf("create free: %v", err)
	}

	total, err := ms.TotalUsers()
	if err != nil {
		t.Fatalf("total users: %v", err)
	}
	if total != 2 {
		t.Errorf("total users = %d, want 2", total)
	}

	paying, err := ms.PayingUsers()
	if err != nil {
		t.Fatalf("paying users: %v", err)
	}
	if paying != 1 {
		t.Errorf("paying users = %d, want 1; free-mode purchases must not count", paying)
	}

	revenue, err := ms.RevenueCents()
	if err != nil {
		t.Fatalf("revenue: %v", err)
	}
	if revenue != 200 {
		t.Errorf("revenue = %d, want 200", revenue)
	}

	now := time.Now().UTC()
	windowRevenue, err := ms.RevenueCentsBetween(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("window revenue: %v", err)
	}
	if windowRevenue != 200 {
		t.Errorf("window revenue = %d, want 200", windowRevenue)
	}
	pastRevenue, err := ms.RevenueCentsBetween(now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("past revenue: %v", err)
	}
	if pastRevenue != 0 {
		t.Errorf("past revenue = %d, want 0", pastRevenue)
	}

	newUsers, err := ms.NewUsersBetween(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("new users: %v", err)
	}
	if newUsers != 2 {
		t.Errorf("new users = %d, want 2", newUsers)
	}
}
