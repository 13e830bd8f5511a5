// Package recon converges an order's persisted status with the true payment
// outcome. Both confirmation origins (payment-provider webhook and
// administrator action) funnel through here and reach the same final state
// in any order, including concurrently.
package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vds-shop-bot/internal/db"
	"vds-shop-bot/internal/metrics"
	"vds-shop-bot/internal/order"
	"vds-shop-bot/internal/store"
)

// Origin identifies which path requested the confirmation.
type Origin string

const (
	OriginWebhook Origin = "webhook"
	OriginAdmin   Origin = "admin"
)

// Notifier dispatches user-facing messages after state changes. Dispatch
// failures are logged, never propagated: notifications must not undo or
// block a settled transition.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, s *order.Summary)
	PaymentReverted(ctx context.Context, s *order.Summary)
	OrderDelivered(ctx context.Context, s *order.Summary)
	// AdminsPaymentReceived alerts configured administrators; used for
	// webhook-origin confirmations.
	AdminsPaymentReceived(ctx context.Context, s *order.Summary)
	ReferralRewardCredited(ctx context.Context, referrerID int64, s *order.Summary, amount int64)
}

// Coordinator is the sole writer of order status transitions and the sole
// trigger of referral reward inserts and bonus credits.
type Coordinator struct {
	gateway  db.Store
	orders   *order.Machine
	users    *store.Users
	settings *store.Settings
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New builds the coordinator.
func New(gateway db.Store, orders *order.Machine, users *store.Users, settings *store.Settings, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		gateway:  gateway,
		orders:   orders,
		users:    users,
		settings: settings,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With("component", "recon"),
	}
}

// ConfirmPaymentByInvoice resolves the external invoice reference and
// confirms the order it belongs to.
func (c *Coordinator) ConfirmPaymentByInvoice(ctx context.Context, invoiceID int64, origin Origin) (*order.Summary, error) {
	o, err := c.orders.ByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return c.confirm(ctx, o, origin)
}

// ConfirmPayment confirms the order by id.
func (c *Coordinator) ConfirmPayment(ctx context.Context, orderID int64, origin Origin) (*order.Summary, error) {
	o, err := c.orders.ByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return c.confirm(ctx, o, origin)
}

// confirm applies the idempotent paid transition. Side effects run only for
// the caller that wins the conditional status write; every other caller, in
// any interleaving, observes a settled order and returns it unchanged.
func (c *Coordinator) confirm(ctx context.Context, o *order.Order, origin Origin) (*order.Summary, error) {
	if o.Status == order.StatusPaid || o.Status == order.StatusDelivered {
		c.metrics.Confirmations.WithLabelValues(string(origin), "noop").Inc()
		return c.orders.WithContext(ctx, o.ID)
	}

	owned, err := c.orders.MarkPaidIfCreated(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if !owned {
		// Lost the race to the other confirmation path.
		c.metrics.Confirmations.WithLabelValues(string(origin), "noop").Inc()
		return c.orders.WithContext(ctx, o.ID)
	}
	c.metrics.Confirmations.WithLabelValues(string(origin), "paid").Inc()
	c.logger.Info("order confirmed paid", "order_id", o.ID, "origin", origin)

	summary, err := c.orders.WithContext(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	if err := c.applyReferralReward(ctx, summary); err != nil {
		// The order is already paid; reward failures are surfaced in logs
		// and metrics but do not unwind the transition.
		c.logger.Error("referral reward failed", "order_id", o.ID, "error", err)
		c.metrics.Errors.WithLabelValues("recon_referral").Inc()
	}

	if c.notifier != nil {
		c.notifier.PaymentConfirmed(ctx, summary)
		if origin == OriginWebhook {
			c.notifier.AdminsPaymentReceived(ctx, summary)
		}
	}
	return summary, nil
}

// applyReferralReward credits the buyer's referrer exactly once per order.
// The NOT EXISTS insert is the at-most-once guard: only the caller whose
// insert reports an affected row credits the balance.
func (c *Coordinator) applyReferralReward(ctx context.Context, s *order.Summary) error {
	buyer, err := c.users.ByID(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return err
	}
	if buyer.ReferrerID == nil {
		return nil
	}

	amount, err := c.settings.ReferralReward(ctx)
	if err != nil {
		return err
	}

	affected, err := c.gateway.Exec(ctx, `
insert into referral_rewards (referrer_id, referred_user_id, order_id, reward_amount)
select $1, $2, $3, $4
where not exists (select 1 from referral_rewards where order_id=$3)`,
		*buyer.ReferrerID, buyer.ID, s.Order.ID, amount)
	if err != nil {
		return fmt.Errorf("insert referral reward: %w", err)
	}
	if affected == 0 {
		return nil
	}

	if err := c.users.CreditBonus(ctx, *buyer.ReferrerID, amount); err != nil {
		return err
	}
	c.metrics.ReferralRewards.Inc()
	c.logger.Info("referral reward credited",
		"order_id", s.Order.ID, "referrer_id", *buyer.ReferrerID, "amount", amount)

	if c.notifier != nil {
		c.notifier.ReferralRewardCredited(ctx, *buyer.ReferrerID, s, amount)
	}
	return nil
}

// MarkUnpaid reverses an erroneous confirmation: paid -> created. A referral
// reward already granted for the order stays granted.
func (c *Coordinator) MarkUnpaid(ctx context.Context, orderID int64) (*order.Summary, error) {
	summary, err := c.orders.SetStatus(ctx, orderID, order.StatusCreated)
	if err != nil {
		return nil, err
	}
	c.logger.Info("order reverted to created", "order_id", orderID)
	if c.notifier != nil {
		c.notifier.PaymentReverted(ctx, summary)
	}
	return summary, nil
}

// MarkDelivered moves a paid order to its terminal state.
func (c *Coordinator) MarkDelivered(ctx context.Context, orderID int64) (*order.Summary, error) {
	summary, err := c.orders.SetStatus(ctx, orderID, order.StatusDelivered)
	if err != nil {
		return nil, err
	}
	c.logger.Info("order delivered", "order_id", orderID)
	if c.notifier != nil {
		c.notifier.OrderDelivered(ctx, summary)
	}
	return summary, nil
}
