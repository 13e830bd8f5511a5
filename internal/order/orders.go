// Package order owns order rows and their status lifecycle. Status writes go
// through the transition table; nothing else in the system mutates them.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vds-shop-bot/internal/db"
)

// Status is an order lifecycle state.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPaid      Status = "paid"
	StatusDelivered Status = "delivered"
)

// ErrInvalidTransition reports a status change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the allowed lifecycle: created -> paid -> delivered, with
// paid -> created as the administrative reversal.
var transitions = map[Status]map[Status]bool{
	StatusCreated: {StatusPaid: true},
	StatusPaid:    {StatusDelivered: true, StatusCreated: true},
}

// CanTransition reports whether from -> to is an allowed lifecycle step.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Order is a row in the orders table.
type Order struct {
	ID             int64
	UserID         int64
	TariffID       int64
	Status         Status
	InvoiceID      *int64
	PromoCode      *string
	DiscountAmount int64
	FinalPrice     *int64
	CreatedAt      time.Time
}

// Summary is an order joined with its buyer's Telegram id and tariff fields,
// the shape notifications need.
type Summary struct {
	Order
	TelegramID int64
	Username   *string
	Location   string
	Specs      string
	BasePrice  float64
}

// CreateParams carries the fields of a new order.
type CreateParams struct {
	UserID         int64
	TariffID       int64
	InvoiceID      *int64
	PromoCode      *string
	DiscountAmount int64
	FinalPrice     *int64
}

// Machine is the order state machine over the gateway.
type Machine struct {
	store db.Store
}

// NewMachine returns the order state machine.
func NewMachine(store db.Store) *Machine {
	return &Machine{store: store}
}

func orderFromRow(row db.Row) Order {
	return Order{
		ID:             row.Int64("id"),
		UserID:         row.Int64("user_id"),
		TariffID:       row.Int64("tariff_id"),
		Status:         Status(row.String("status")),
		InvoiceID:      row.NullInt64("invoice_id"),
		PromoCode:      row.NullString("promo_code"),
		DiscountAmount: row.Int64("discount_amount"),
		FinalPrice:     row.NullInt64("final_price"),
		CreatedAt:      row.Time("created_at"),
	}
}

func summaryFromRow(row db.Row) *Summary {
	return &Summary{
		Order:      orderFromRow(row),
		TelegramID: row.Int64("telegram_id"),
		Username:   row.NullString("username"),
		Location:   row.String("location"),
		Specs:      row.String("specs"),
		BasePrice:  row.Float64("price"),
	}
}

const summaryJoin = `
select o.*, u.telegram_id, u.username, t.location, t.specs, t.price
from orders o
left join users u on u.id = o.user_id
left join tariffs t on t.id = o.tariff_id
`

// Create inserts a new order with status created. The invoice id may be nil
// when the payment step failed to produce one.
func (m *Machine) Create(ctx context.Context, p CreateParams) (*Order, error) {
	if _, err := m.store.Exec(ctx,
		`insert into orders (user_id, tariff_id, status, invoice_id, promo_code, discount_amount, final_price)
		 values ($1, $2, $3, $4, $5, $6, $7)`,
		p.UserID, p.TariffID, string(StatusCreated), p.InvoiceID, p.PromoCode, p.DiscountAmount, p.FinalPrice); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	row, err := m.store.FetchOne(ctx,
		`select * from orders where user_id=$1 and tariff_id=$2 order by id desc limit 1`,
		p.UserID, p.TariffID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	if row == nil {
		return nil, db.ErrNotFound
	}
	o := orderFromRow(row)
	return &o, nil
}

// ByID returns an order by primary key.
func (m *Machine) ByID(ctx context.Context, id int64) (*Order, error) {
	row, err := m.store.FetchOne(ctx, `select * from orders where id=$1`, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if row == nil {
		return nil, db.ErrNotFound
	}
	o := orderFromRow(row)
	return &o, nil
}

// ByInvoiceID returns the order carrying the external invoice reference.
func (m *Machine) ByInvoiceID(ctx context.Context, invoiceID int64) (*Order, error) {
	row, err := m.store.FetchOne(ctx, `select * from orders where invoice_id=$1`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get order by invoice: %w", err)
	}
	if row == nil {
		return nil, db.ErrNotFound
	}
	o := orderFromRow(row)
	return &o, nil
}

// ByUser lists a user's orders with tariff context, most recent first.
func (m *Machine) ByUser(ctx context.Context, userID int64) ([]Summary, error) {
	rows, err := m.store.Fetch(ctx, summaryJoin+`where o.user_id=$1 order by o.id desc`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders by user: %w", err)
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, *summaryFromRow(row))
	}
	return out, nil
}

// WithContext returns the order joined with user and tariff fields.
func (m *Machine) WithContext(ctx context.Context, orderID int64) (*Summary, error) {
	row, err := m.store.FetchOne(ctx, summaryJoin+`where o.id=$1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order context: %w", err)
	}
	if row == nil {
		return nil, db.ErrNotFound
	}
	return summaryFromRow(row), nil
}

// SetStatus moves the order to newStatus if the transition table allows it.
// The write is conditional on the status it validated against, so a
// concurrent transition cannot be silently overwritten; when the concurrent
// writer already reached newStatus the call degrades to a no-op.
func (m *Machine) SetStatus(ctx context.Context, orderID int64, newStatus Status) (*Summary, error) {
	current, err := m.ByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status == newStatus {
		return m.WithContext(ctx, orderID)
	}
	if !CanTransition(current.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, newStatus)
	}
	affected, err := m.store.Exec(ctx,
		`update orders set status=$2 where id=$1 and status=$3`,
		orderID, string(newStatus), string(current.Status))
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if affected == 0 {
		reloaded, err := m.ByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if reloaded.Status != newStatus {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, reloaded.Status, newStatus)
		}
	}
	return m.WithContext(ctx, orderID)
}

// MarkPaidIfCreated is the reconciliation guard: a single conditional write
// whose affected count decides whether the caller owns the paid transition
// and its one-time side effects.
func (m *Machine) MarkPaidIfCreated(ctx context.Context, orderID int64) (bool, error) {
	affected, err := m.store.Exec(ctx,
		`update orders set status=$2 where id=$1 and status=$3`,
		orderID, string(StatusPaid), string(StatusCreated))
	if err != nil {
		return false, fmt.Errorf("mark paid: %w", err)
	}
	return affected > 0, nil
}

// ListByStatus returns recent orders with tariff context, newest first.
func (m *Machine) ListByStatus(ctx context.Context, status Status, limit int64) ([]Summary, error) {
	rows, err := m.store.Fetch(ctx, summaryJoin+`where o.status=$1 order by o.id desc limit $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, *summaryFromRow(row))
	}
	return out, nil
}

// Settled lists paid and delivered orders, the revenue-bearing subset.
func (m *Machine) Settled(ctx context.Context) ([]Summary, error) {
	rows, err := m.store.Fetch(ctx, summaryJoin+`where o.status in ('paid','delivered') order by o.id desc`)
	if err != nil {
		return nil, fmt.Errorf("list settled orders: %w", err)
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, *summaryFromRow(row))
	}
	return out, nil
}

// ListRecent returns the newest orders regardless of status.
func (m *Machine) ListRecent(ctx context.Context, limit int64) ([]Summary, error) {
	rows, err := m.store.Fetch(ctx, summaryJoin+`order by o.id desc limit $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, *summaryFromRow(row))
	}
	return out, nil
}

// Stats summarises the shop for the admin panel.
type Stats struct {
	Total     int64
	Paid      int64
	Delivered int64
	Users     int64
}

// ShopStats returns order and user counts.
func (m *Machine) ShopStats(ctx context.Context) (*Stats, error) {
	row, err := m.store.FetchOne(ctx, `
select
  (select count(*) from orders) as total,
  (select count(*) from orders where status='paid') as paid,
  (select count(*) from orders where status='delivered') as delivered,
  (select count(*) from users) as users`)
	if err != nil {
		return nil, fmt.Errorf("shop stats: %w", err)
	}
	if row == nil {
		return &Stats{}, nil
	}
	return &Stats{
		Total:     row.Int64("total"),
		Paid:      row.Int64("paid"),
		Delivered: row.Int64("delivered"),
		Users:     row.Int64("users"),
	}, nil
}
