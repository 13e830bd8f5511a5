package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"vds-shop-bot/internal/db"
)

func newGateway(t *testing.T) db.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway, err := db.NewSQLite(context.Background(), ":memory:", logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(gateway.Close)
	if err := gateway.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return gateway
}

func TestUpsertCreatesOnceAndKeepsRow(t *testing.T) {
	users := NewUsers(newGateway(t))
	ctx := context.Background()

	first, err := users.Upsert(ctx, "alice", 100)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.TelegramID != 100 {
		t.Fatalf("telegram id = %d, want 100", first.TelegramID)
	}

	second, err := users.Upsert(ctx, "alice_renamed", 100)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second upsert created a new row: %d != %d", second.ID, first.ID)
	}
}

func TestSetReferrerBindsOnce(t *testing.T) {
	users := NewUsers(newGateway(t))
	ctx := context.Background()

	referrer, _ := users.Upsert(ctx, "ref", 1)
	invitee, _ := users.Upsert(ctx, "new", 2)
	other, _ := users.Upsert(ctx, "other", 3)

	bound, err := users.SetReferrer(ctx, invitee.ID, referrer.ID)
	if err != nil {
		t.Fatalf("set referrer: %v", err)
	}
	if !bound {
		t.Fatal("first bind reported false")
	}

	// A second referrer must not displace the first.
	bound, err = users.SetReferrer(ctx, invitee.ID, other.ID)
	if err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if bound {
		t.Fatal("rebind reported true")
	}

	got, err := users.ByID(ctx, invitee.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.ReferrerID == nil || *got.ReferrerID != referrer.ID {
		t.Fatalf("referrer = %v, want %d", got.ReferrerID, referrer.ID)
	}
}

func TestSetReferrerRejectsSelf(t *testing.T) {
	users := NewUsers(newGateway(t))
	ctx := context.Background()

	u, _ := users.Upsert(ctx, "loop", 7)
	bound, err := users.SetReferrer(ctx, u.ID, u.ID)
	if err != nil {
		t.Fatalf("set referrer: %v", err)
	}
	if bound {
		t.Fatal("self-referral was accepted")
	}
}

func TestBonusCreditAndDebit(t *testing.T) {
	users := NewUsers(newGateway(t))
	ctx := context.Background()

	u, _ := users.Upsert(ctx, "bonus", 5)
	if err := users.CreditBonus(ctx, u.ID, 150); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := users.DebitBonus(ctx, u.ID, 100); err != nil {
		t.Fatalf("debit: %v", err)
	}

	got, _ := users.ByID(ctx, u.ID)
	if got.BonusBalance != 50 {
		t.Fatalf("balance = %d, want 50", got.BonusBalance)
	}

	// Debiting past the balance must fail and leave it untouched.
	if err := users.DebitBonus(ctx, u.ID, 51); err == nil {
		t.Fatal("overdraft debit succeeded")
	}
	got, _ = users.ByID(ctx, u.ID)
	if got.BonusBalance != 50 {
		t.Fatalf("balance after failed debit = %d, want 50", got.BonusBalance)
	}
}

func TestReferralsListsNewestFirst(t *testing.T) {
	users := NewUsers(newGateway(t))
	ctx := context.Background()

	referrer, _ := users.Upsert(ctx, "ref", 10)
	a, _ := users.Upsert(ctx, "a", 11)
	b, _ := users.Upsert(ctx, "b", 12)
	users.SetReferrer(ctx, a.ID, referrer.ID)
	users.SetReferrer(ctx, b.ID, referrer.ID)

	refs, err := users.Referrals(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("referrals: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("referrals = %d, want 2", len(refs))
	}

	earned, err := users.ReferralEarnings(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if earned != 0 {
		t.Fatalf("earnings = %d, want 0 before any paid order", earned)
	}
}
