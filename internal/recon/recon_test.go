package recon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"vds-shop-bot/internal/db"
	"vds-shop-bot/internal/metrics"
	"vds-shop-bot/internal/order"
	"vds-shop-bot/internal/store"
)

// recordingNotifier counts dispatched notifications so tests can assert the
// winning confirmation path fired each of them exactly once.
type recordingNotifier struct {
	mu          sync.Mutex
	confirmed   int
	reverted    int
	delivered   int
	adminAlerts int
	rewards     []int64
}

func (n *recordingNotifier) PaymentConfirmed(ctx context.Context, s *order.Summary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed++
}

func (n *recordingNotifier) PaymentReverted(ctx context.Context, s *order.Summary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reverted++
}

func (n *recordingNotifier) OrderDelivered(ctx context.Context, s *order.Summary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered++
}

func (n *recordingNotifier) AdminsPaymentReceived(ctx context.Context, s *order.Summary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.adminAlerts++
}

func (n *recordingNotifier) ReferralRewardCredited(ctx context.Context, referrerID int64, s *order.Summary, amount int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rewards = append(n.rewards, amount)
}

type fixture struct {
	gateway  db.Store
	users    *store.Users
	orders   *order.Machine
	coord    *Coordinator
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
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

	users := store.NewUsers(gateway)
	settings := store.NewSettings(gateway)
	orders := order.NewMachine(gateway)
	notifier := &recordingNotifier{}
	coord := New(gateway, orders, users, settings, notifier, metrics.Registry(""), logger)
	return &fixture{gateway: gateway, users: users, orders: orders, coord: coord, notifier: notifier}
}

// referredOrder seeds a referrer, a buyer bound to that referrer, a tariff
// and an unpaid order carrying the given invoice id.
func (f *fixture) referredOrder(t *testing.T, invoiceID int64) (o *order.Order, referrerID int64) {
	t.Helper()
	ctx := context.Background()

	referrer, err := f.users.Upsert(ctx, "referrer", 1000)
	if err != nil {
		t.Fatalf("seed referrer: %v", err)
	}
	buyer, err := f.users.Upsert(ctx, "buyer", 2000)
	if err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	if _, err := f.users.SetReferrer(ctx, buyer.ID, referrer.ID); err != nil {
		t.Fatalf("bind referrer: %v", err)
	}

	if _, err := f.gateway.Exec(ctx,
		`insert into tariffs (location, specs, price) values ($1, $2, $3)`,
		"Германия", "8 Gb RAM / 4 Core CPU", 1000.0); err != nil {
		t.Fatalf("seed tariff: %v", err)
	}
	row, _ := f.gateway.FetchOne(ctx, `select id from tariffs limit 1`)

	o, err = f.orders.Create(ctx, order.CreateParams{
		UserID:    buyer.ID,
		TariffID:  row.Int64("id"),
		InvoiceID: &invoiceID,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o, referrer.ID
}

func (f *fixture) rewardRows(t *testing.T, orderID int64) int64 {
	t.Helper()
	row, err := f.gateway.FetchOne(context.Background(),
		`select count(*) as n from referral_rewards where order_id=$1`, orderID)
	if err != nil {
		t.Fatalf("count rewards: %v", err)
	}
	return row.Int64("n")
}

func (f *fixture) bonusBalance(t *testing.T, userID int64) int64 {
	t.Helper()
	u, err := f.users.ByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	return u.BonusBalance
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	o, referrerID := f.referredOrder(t, 11)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		summary, err := f.coord.ConfirmPayment(ctx, o.ID, OriginAdmin)
		if err != nil {
			t.Fatalf("confirm #%d: %v", i+1, err)
		}
		if summary.Status != order.StatusPaid {
			t.Fatalf("confirm #%d status = %s, want paid", i+1, summary.Status)
		}
	}

	if f.notifier.confirmed != 1 {
		t.Errorf("PaymentConfirmed fired %d times, want 1", f.notifier.confirmed)
	}
	if got := f.rewardRows(t, o.ID); got != 1 {
		t.Errorf("referral reward rows = %d, want 1", got)
	}
	if got := f.bonusBalance(t, referrerID); got != 100 {
		t.Errorf("referrer balance = %d, want the default reward 100", got)
	}
	if len(f.notifier.rewards) != 1 || f.notifier.rewards[0] != 100 {
		t.Errorf("reward notifications = %v, want [100]", f.notifier.rewards)
	}
}

func TestConcurrentConfirmationsSettleOnce(t *testing.T) {
	f := newFixture(t)
	o, referrerID := f.referredOrder(t, 22)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		origin := OriginWebhook
		if i%2 == 0 {
			origin = OriginAdmin
		}
		wg.Add(1)
		go func(origin Origin) {
			defer wg.Done()
			if _, err := f.coord.ConfirmPayment(ctx, o.ID, origin); err != nil {
				t.Errorf("concurrent confirm: %v", err)
			}
		}(origin)
	}
	wg.Wait()

	if f.notifier.confirmed != 1 {
		t.Errorf("PaymentConfirmed fired %d times, want 1", f.notifier.confirmed)
	}
	if got := f.rewardRows(t, o.ID); got != 1 {
		t.Errorf("referral reward rows = %d, want 1", got)
	}
	if got := f.bonusBalance(t, referrerID); got != 100 {
		t.Errorf("referrer balance = %d, want 100", got)
	}
}

func TestMarkUnpaidKeepsGrantedReward(t *testing.T) {
	f := newFixture(t)
	o, referrerID := f.referredOrder(t, 33)
	ctx := context.Background()

	if _, err := f.coord.ConfirmPayment(ctx, o.ID, OriginAdmin); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	summary, err := f.coord.MarkUnpaid(ctx, o.ID)
	if err != nil {
		t.Fatalf("mark unpaid: %v", err)
	}
	if summary.Status != order.StatusCreated {
		t.Fatalf("status after revert = %s, want created", summary.Status)
	}
	if f.notifier.reverted != 1 {
		t.Errorf("PaymentReverted fired %d times, want 1", f.notifier.reverted)
	}

	// A second confirmation re-settles the order but never re-grants the
	// reward that the first confirmation already paid out.
	if _, err := f.coord.ConfirmPayment(ctx, o.ID, OriginAdmin); err != nil {
		t.Fatalf("reconfirm: %v", err)
	}
	if got := f.rewardRows(t, o.ID); got != 1 {
		t.Errorf("referral reward rows = %d, want 1", got)
	}
	if got := f.bonusBalance(t, referrerID); got != 100 {
		t.Errorf("referrer balance = %d, want 100", got)
	}
}

func TestConfirmPaymentByInvoice(t *testing.T) {
	f := newFixture(t)
	o, _ := f.referredOrder(t, 44)
	ctx := context.Background()

	if _, err := f.coord.ConfirmPaymentByInvoice(ctx, 999, OriginWebhook); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("unknown invoice = %v, want ErrNotFound", err)
	}

	summary, err := f.coord.ConfirmPaymentByInvoice(ctx, 44, OriginWebhook)
	if err != nil {
		t.Fatalf("confirm by invoice: %v", err)
	}
	if summary.Order.ID != o.ID || summary.Status != order.StatusPaid {
		t.Fatalf("summary = id %d status %s, want id %d paid", summary.Order.ID, summary.Status, o.ID)
	}
}

func TestAdminAlertOnlyOnWebhookOrigin(t *testing.T) {
	f := newFixture(t)
	first, _ := f.referredOrder(t, 55)
	ctx := context.Background()

	if _, err := f.coord.ConfirmPayment(ctx, first.ID, OriginAdmin); err != nil {
		t.Fatalf("admin confirm: %v", err)
	}
	if f.notifier.adminAlerts != 0 {
		t.Fatalf("admin alerts after admin confirm = %d, want 0", f.notifier.adminAlerts)
	}

	invoiceID := int64(56)
	second, err := f.orders.Create(ctx, order.CreateParams{
		UserID:    first.UserID,
		TariffID:  first.TariffID,
		InvoiceID: &invoiceID,
	})
	if err != nil {
		t.Fatalf("create second order: %v", err)
	}
	if _, err := f.coord.ConfirmPayment(ctx, second.ID, OriginWebhook); err != nil {
		t.Fatalf("webhook confirm: %v", err)
	}
	if f.notifier.adminAlerts != 1 {
		t.Fatalf("admin alerts after webhook confirm = %d, want 1", f.notifier.adminAlerts)
	}
}

func TestConfirmWithoutReferrerGrantsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	solo, err := f.users.Upsert(ctx, "solo", 3000)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := f.gateway.Exec(ctx,
		`insert into tariffs (location, specs, price) values ($1, $2, $3)`,
		"США", "4 Gb RAM", 500.0); err != nil {
		t.Fatalf("seed tariff: %v", err)
	}
	row, _ := f.gateway.FetchOne(ctx, `select id from tariffs limit 1`)

	o, err := f.orders.Create(ctx, order.CreateParams{UserID: solo.ID, TariffID: row.Int64("id")})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := f.coord.ConfirmPayment(ctx, o.ID, OriginAdmin); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := f.rewardRows(t, o.ID); got != 0 {
		t.Errorf("referral reward rows = %d, want 0", got)
	}
	if len(f.notifier.rewards) != 0 {
		t.Errorf("reward notifications = %v, want none", f.notifier.rewards)
	}
}

func TestMarkDelivered(t *testing.T) {
	f := newFixture(t)
	o, _ := f.referredOrder(t, 66)
	ctx := context.Background()

	if _, err := f.coord.MarkDelivered(ctx, o.ID); !errors.Is(err, order.ErrInvalidTransition) {
		t.Fatalf("deliver unpaid = %v, want ErrInvalidTransition", err)
	}

	if _, err := f.coord.ConfirmPayment(ctx, o.ID, OriginAdmin); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	summary, err := f.coord.MarkDelivered(ctx, o.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if summary.Status != order.StatusDelivered {
		t.Fatalf("status = %s, want delivered", summary.Status)
	}
	if f.notifier.delivered != 1 {
		t.Errorf("OrderDelivered fired %d times, want 1", f.notifier.delivered)
	}
}
