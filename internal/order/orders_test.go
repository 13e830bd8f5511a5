package order

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"vds-shop-bot/internal/db"
)

func newMachine(t *testing.T) (*Machine, db.Store) {
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
	return NewMachine(gateway), gateway
}

func seedUserAndTariff(t *testing.T, gateway db.Store) (userID, tariffID int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := gateway.Exec(ctx,
		`insert into users (username, telegram_id) values ($1, $2)`, "buyer", int64(100)); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := gateway.Exec(ctx,
		`insert into tariffs (location, specs, price) values ($1, $2, $3)`,
		"Россия", "6 Gb RAM / 4 Core CPU / SSD 40 Gb", 650.0); err != nil {
		t.Fatalf("seed tariff: %v", err)
	}
	userRow, _ := gateway.FetchOne(ctx, `select id from users limit 1`)
	tariffRow, _ := gateway.FetchOne(ctx, `select id from tariffs limit 1`)
	return userRow.Int64("id"), tariffRow.Int64("id")
}

func TestPriceWithMarkup(t *testing.T) {
	cases := []struct {
		base   float64
		markup float64
		want   int64
	}{
		{650, 30, 845},
		{650, 0, 650},
		{533, 30, 693}, // 692.9 rounds up
		{259, 30, 337},
		{100, 12.5, 113}, // 112.5 rounds half away from zero
	}
	for _, c := range cases {
		if got := PriceWithMarkup(c.base, c.markup); got != c.want {
			t.Errorf("PriceWithMarkup(%v, %v) = %d, want %d", c.base, c.markup, got, c.want)
		}
	}
}

func TestBonusSplit(t *testing.T) {
	cases := []struct {
		price, balance, spend, final int64
	}{
		{845, 0, 0, 845},
		{845, 100, 100, 745},
		{845, 845, 845, 0},
		{845, 2000, 845, 0},
	}
	for _, c := range cases {
		spend, final := BonusSplit(c.price, c.balance)
		if spend != c.spend || final != c.final {
			t.Errorf("BonusSplit(%d, %d) = (%d, %d), want (%d, %d)",
				c.price, c.balance, spend, final, c.spend, c.final)
		}
	}
}

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusCreated, StatusPaid},
		{StatusPaid, StatusDelivered},
		{StatusPaid, StatusCreated},
	}
	for _, c := range allowed {
		if !CanTransition(c.from, c.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", c.from, c.to)
		}
	}
	forbidden := []struct{ from, to Status }{
		{StatusCreated, StatusDelivered},
		{StatusDelivered, StatusPaid},
		{StatusDelivered, StatusCreated},
		{StatusCreated, StatusCreated},
	}
	for _, c := range forbidden {
		if CanTransition(c.from, c.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", c.from, c.to)
		}
	}
}

func TestCreateAndLookupByInvoice(t *testing.T) {
	machine, gateway := newMachine(t)
	userID, tariffID := seedUserAndTariff(t, gateway)
	ctx := context.Background()

	invoiceID := int64(555)
	final := int64(845)
	o, err := machine.Create(ctx, CreateParams{
		UserID:     userID,
		TariffID:   tariffID,
		InvoiceID:  &invoiceID,
		FinalPrice: &final,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.Status != StatusCreated {
		t.Fatalf("status = %s, want created", o.Status)
	}

	byInvoice, err := machine.ByInvoiceID(ctx, invoiceID)
	if err != nil {
		t.Fatalf("by invoice: %v", err)
	}
	if byInvoice.ID != o.ID {
		t.Fatalf("by invoice = order %d, want %d", byInvoice.ID, o.ID)
	}

	if _, err := machine.ByInvoiceID(ctx, 999); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("unknown invoice = %v, want ErrNotFound", err)
	}

	summary, err := machine.WithContext(ctx, o.ID)
	if err != nil {
		t.Fatalf("with context: %v", err)
	}
	if summary.TelegramID != 100 || summary.Location != "Россия" {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.DisplayPrice(30) != 845 {
		t.Fatalf("display price = %d, want stored final 845", summary.DisplayPrice(30))
	}
}

func TestSetStatusRejectsIllegalJumps(t *testing.T) {
	machine, gateway := newMachine(t)
	userID, tariffID := seedUserAndTariff(t, gateway)
	ctx := context.Background()

	o, err := machine.Create(ctx, CreateParams{UserID: userID, TariffID: tariffID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := machine.SetStatus(ctx, o.ID, StatusDelivered); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("created -> delivered = %v, want ErrInvalidTransition", err)
	}

	if _, err := machine.SetStatus(ctx, o.ID, StatusPaid); err != nil {
		t.Fatalf("created -> paid: %v", err)
	}
	if _, err := machine.SetStatus(ctx, o.ID, StatusDelivered); err != nil {
		t.Fatalf("paid -> delivered: %v", err)
	}
	if _, err := machine.SetStatus(ctx, o.ID, StatusCreated); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("delivered -> created = %v, want ErrInvalidTransition", err)
	}
}

func TestSetStatusSameStatusIsNoop(t *testing.T) {
	machine, gateway := newMachine(t)
	userID, tariffID := seedUserAndTariff(t, gateway)
	ctx := context.Background()

	o, _ := machine.Create(ctx, CreateParams{UserID: userID, TariffID: tariffID})
	machine.SetStatus(ctx, o.ID, StatusPaid)

	summary, err := machine.SetStatus(ctx, o.ID, StatusPaid)
	if err != nil {
		t.Fatalf("paid -> paid: %v", err)
	}
	if summary.Status != StatusPaid {
		t.Fatalf("status = %s, want paid", summary.Status)
	}
}

func TestMarkPaidIfCreatedOwnsExactlyOnce(t *testing.T) {
	machine, gateway := newMachine(t)
	userID, tariffID := seedUserAndTariff(t, gateway)
	ctx := context.Background()

	o, _ := machine.Create(ctx, CreateParams{UserID: userID, TariffID: tariffID})

	owned, err := machine.MarkPaidIfCreated(ctx, o.ID)
	if err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if !owned {
		t.Fatal("first mark did not own the transition")
	}

	owned, err = machine.MarkPaidIfCreated(ctx, o.ID)
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if owned {
		t.Fatal("second mark claimed ownership")
	}
}

func TestShopStats(t *testing.T) {
	machine, gateway := newMachine(t)
	userID, tariffID := seedUserAndTariff(t, gateway)
	ctx := context.Background()

	a, _ := machine.Create(ctx, CreateParams{UserID: userID, TariffID: tariffID})
	machine.Create(ctx, CreateParams{UserID: userID, TariffID: tariffID})
	machine.SetStatus(ctx, a.ID, StatusPaid)

	stats, err := machine.ShopStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Paid != 1 || stats.Delivered != 0 || stats.Users != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	settled, err := machine.Settled(ctx)
	if err != nil {
		t.Fatalf("settled: %v", err)
	}
	if len(settled) != 1 {
		t.Fatalf("settled = %d orders, want 1", len(settled))
	}
}
