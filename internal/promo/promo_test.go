package promo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"vds-shop-bot/internal/db"
)

func newLedger(t *testing.T) *Ledger {
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
	return NewLedger(gateway)
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  welcome10 "); got != "WELCOME10" {
		t.Fatalf("Normalize = %q, want WELCOME10", got)
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	if _, err := ledger.Create(ctx, "WELCOME", 10, 0, 5); err != nil {
		t.Fatalf("create: %v", err)
	}
	code, err := ledger.Lookup(ctx, "welcome")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if code.Code != "WELCOME" || code.DiscountPercent != 10 {
		t.Fatalf("code = %+v", code)
	}

	if _, err := ledger.Lookup(ctx, "MISSING"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("lookup missing = %v, want ErrNotFound", err)
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	if _, err := ledger.Create(ctx, "DUP", 5, 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ledger.Create(ctx, "dup", 7, 0, 0); err == nil {
		t.Fatal("duplicate create succeeded")
	}
}

func TestSelectReplacesPriorSelection(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	ledger.Create(ctx, "FIRST", 10, 0, 0)
	ledger.Create(ctx, "SECOND", 20, 0, 0)

	if _, err := ledger.Select(ctx, 1, "FIRST"); err != nil {
		t.Fatalf("select first: %v", err)
	}
	if _, err := ledger.Select(ctx, 1, "SECOND"); err != nil {
		t.Fatalf("select second: %v", err)
	}

	sel, err := ledger.Active(ctx, 1)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if sel == nil || sel.Code != "SECOND" {
		t.Fatalf("selection = %+v, want SECOND", sel)
	}
}

func TestQuoteBelowMinimumIsIneligible(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	ledger.Create(ctx, "BIG", 20, 1000, 0)
	if _, err := ledger.Select(ctx, 1, "BIG"); err != nil {
		t.Fatalf("select: %v", err)
	}

	q, err := ledger.Quote(ctx, 1, 845)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Eligible {
		t.Fatal("quote below minimum reported eligible")
	}
	if q.FinalPrice != 845 || q.DiscountAmount != 0 {
		t.Fatalf("quote = %+v, want undiscounted", q)
	}

	q, err = ledger.Quote(ctx, 1, 1000)
	if err != nil {
		t.Fatalf("quote at threshold: %v", err)
	}
	if !q.Eligible {
		t.Fatal("quote at the exact minimum must be eligible")
	}
	if q.DiscountAmount != 200 || q.FinalPrice != 800 {
		t.Fatalf("quote = %+v, want 200 off", q)
	}
}

func TestQuoteDiscountFloors(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	// 15% of 845 is 126.75; integer arithmetic floors to 126.
	ledger.Create(ctx, "FLOOR", 15, 0, 0)
	ledger.Select(ctx, 1, "FLOOR")

	q, err := ledger.Quote(ctx, 1, 845)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.DiscountAmount != 126 || q.FinalPrice != 719 {
		t.Fatalf("quote = %+v, want 126 off -> 719", q)
	}
}

func TestQuoteWithoutSelectionIsNil(t *testing.T) {
	ledger := newLedger(t)
	q, err := ledger.Quote(context.Background(), 9, 500)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q != nil {
		t.Fatalf("quote = %+v, want nil", q)
	}
}

func TestRedeemConsumesOneSlotAndSelection(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	ledger.Create(ctx, "LIMITED", 10, 0, 2)
	ledger.Select(ctx, 1, "LIMITED")

	if err := ledger.Redeem(ctx, 1, "LIMITED"); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	sel, _ := ledger.Active(ctx, 1)
	if sel != nil {
		t.Fatalf("selection survived redemption: %+v", sel)
	}

	code, err := ledger.Lookup(ctx, "LIMITED")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if code.UsedCount != 1 {
		t.Fatalf("used count = %d, want 1", code.UsedCount)
	}
	if uses := code.Uses(); uses.Unlimited || uses.Remaining != 1 {
		t.Fatalf("uses = %+v, want 1 remaining", uses)
	}
}

func TestRedeemStopsAtMaxUses(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	ledger.Create(ctx, "ONCE", 10, 0, 1)
	if err := ledger.Redeem(ctx, 1, "ONCE"); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if err := ledger.Redeem(ctx, 2, "ONCE"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("second redeem = %v, want ErrNotFound", err)
	}
}

func TestUnlimitedCodeNeverExhausts(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	ledger.Create(ctx, "FOREVER", 5, 0, 0)
	for i := 0; i < 3; i++ {
		if err := ledger.Redeem(ctx, int64(i), "FOREVER"); err != nil {
			t.Fatalf("redeem %d: %v", i, err)
		}
	}
	code, err := ledger.Lookup(ctx, "FOREVER")
	if err != nil {
		t.Fatalf("lookup after redeems: %v", err)
	}
	if code.UsedCount != 3 {
		t.Fatalf("used count = %d, want 3", code.UsedCount)
	}
	if uses := code.Uses(); !uses.Unlimited {
		t.Fatalf("uses = %+v, want unlimited", uses)
	}
}

func TestListUsableSkipsExhaustedAndInactive(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	ledger.Create(ctx, "LIVE", 10, 0, 0)
	ledger.Create(ctx, "SPENT", 10, 0, 1)
	ledger.Redeem(ctx, 1, "SPENT")

	codes, err := ledger.ListUsable(ctx)
	if err != nil {
		t.Fatalf("list usable: %v", err)
	}
	if len(codes) != 1 || codes[0].Code != "LIVE" {
		t.Fatalf("usable = %+v, want only LIVE", codes)
	}

	all, err := ledger.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list = %d codes, want 2", len(all))
	}
}
