// Package promo tracks promo code definitions, each user's staged selection
// and usage counters. A selection is intent, not a ledger entry: the usage
// counter moves only on redemption.
package promo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vds-shop-bot/internal/db"
)

// Code is a promo code definition.
type Code struct {
	ID              int64
	Code            string
	DiscountPercent int64
	MinAmount       int64
	MaxUses         int64
	UsedCount       int64
	IsActive        bool
	CreatedAt       time.Time
}

// Uses reports the remaining usage budget, keeping the max_uses=0 sentinel
// out of caller arithmetic.
type Uses struct {
	Unlimited bool
	Remaining int64
}

// Uses returns the remaining usage budget of the code.
func (c Code) Uses() Uses {
	if c.MaxUses == 0 {
		return Uses{Unlimited: true}
	}
	remaining := c.MaxUses - c.UsedCount
	if remaining < 0 {
		remaining = 0
	}
	return Uses{Remaining: remaining}
}

// Selection is a user's currently staged, not yet redeemed promo code. At
// most one exists per user.
type Selection struct {
	UserID          int64
	Code            string
	DiscountPercent int64
	MinAmount       int64
}

// Quote is the discount computed for a concrete price.
type Quote struct {
	Code           string
	Percent        int64
	MinAmount      int64
	DiscountAmount int64
	FinalPrice     int64
	// Eligible is false when the price is below the code's minimum amount;
	// the caller must then offer the full-price path.
	Eligible bool
}

// Ledger owns promo codes and per-user selections.
type Ledger struct {
	store db.Store
}

// NewLedger returns the promo ledger over the gateway.
func NewLedger(store db.Store) *Ledger {
	return &Ledger{store: store}
}

// Normalize folds a user-entered code to its canonical form.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func codeFromRow(row db.Row) Code {
	return Code{
		ID:              row.Int64("id"),
		Code:            row.String("code"),
		DiscountPercent: row.Int64("discount_percent"),
		MinAmount:       row.Int64("min_amount"),
		MaxUses:         row.Int64("max_uses"),
		UsedCount:       row.Int64("used_count"),
		IsActive:        row.Bool("is_active"),
		CreatedAt:       row.Time("created_at"),
	}
}

// usable matches active codes that still have usage budget.
const usablePredicate = `is_active and (max_uses=0 or used_count < max_uses)`

// Lookup returns a usable code by name, or ErrNotFound.
func (l *Ledger) Lookup(ctx context.Context, code string) (*Code, error) {
	row, err := l.store.FetchOne(ctx,
		`select * from promocodes where code=$1 and `+usablePredicate, Normalize(code))
	if err != nil {
		return nil, fmt.Errorf("lookup promo: %w", err)
	}
	if row == nil {
		return nil, db.ErrNotFound
	}
	c := codeFromRow(row)
	return &c, nil
}

// Select stages a code for the user, replacing any previous selection. The
// code must be active and not exhausted.
func (l *Ledger) Select(ctx context.Context, userID int64, code string) (*Code, error) {
	c, err := l.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	// Delete-then-insert keeps the at-most-one-selection invariant:
	// last write wins.
	if _, err := l.store.Exec(ctx,
		`delete from user_active_promocodes where user_id=$1`, userID); err != nil {
		return nil, fmt.Errorf("clear prior selection: %w", err)
	}
	if _, err := l.store.Exec(ctx,
		`insert into user_active_promocodes (user_id, promo_code, discount_percent, min_amount) values ($1, $2, $3, $4)`,
		userID, c.Code, c.DiscountPercent, c.MinAmount); err != nil {
		return nil, fmt.Errorf("stage selection: %w", err)
	}
	return c, nil
}

// Active returns the user's staged selection, or nil.
func (l *Ledger) Active(ctx context.Context, userID int64) (*Selection, error) {
	row, err := l.store.FetchOne(ctx,
		`select * from user_active_promocodes where user_id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("get selection: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return &Selection{
		UserID:          row.Int64("user_id"),
		Code:            row.String("promo_code"),
		DiscountPercent: row.Int64("discount_percent"),
		MinAmount:       row.Int64("min_amount"),
	}, nil
}

// Quote computes the discount the staged selection yields for the given
// marked-up price. Returns nil when the user has no selection.
func (l *Ledger) Quote(ctx context.Context, userID, priceAfterMarkup int64) (*Quote, error) {
	sel, err := l.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sel == nil {
		return nil, nil
	}
	q := &Quote{
		Code:      sel.Code,
		Percent:   sel.DiscountPercent,
		MinAmount: sel.MinAmount,
	}
	if sel.MinAmount > 0 && priceAfterMarkup < sel.MinAmount {
		q.FinalPrice = priceAfterMarkup
		return q, nil
	}
	q.Eligible = true
	q.DiscountAmount = priceAfterMarkup * sel.DiscountPercent / 100
	q.FinalPrice = priceAfterMarkup - q.DiscountAmount
	return q, nil
}

// Redeem consumes one usage slot of the code and drops the user's selection.
// The exhaustion predicate rides on the update itself, so a concurrent
// redemption of the last slot cannot overshoot max_uses.
func (l *Ledger) Redeem(ctx context.Context, userID int64, code string) error {
	code = Normalize(code)
	affected, err := l.store.Exec(ctx,
		`update promocodes set used_count=used_count+1 where code=$1 and `+usablePredicate, code)
	if err != nil {
		return fmt.Errorf("redeem promo: %w", err)
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	if _, err := l.store.Exec(ctx,
		`delete from user_active_promocodes where user_id=$1 and promo_code=$2`, userID, code); err != nil {
		return fmt.Errorf("drop selection: %w", err)
	}
	return nil
}

// Clear removes the user's selection; absent selections are a no-op.
func (l *Ledger) Clear(ctx context.Context, userID int64) error {
	if _, err := l.store.Exec(ctx,
		`delete from user_active_promocodes where user_id=$1`, userID); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	return nil
}

// Create defines a new promo code. Codes are unique by canonical form.
func (l *Ledger) Create(ctx context.Context, code string, discountPercent, minAmount, maxUses int64) (*Code, error) {
	code = Normalize(code)
	existing, err := l.store.FetchOne(ctx, `select 1 from promocodes where code=$1`, code)
	if err != nil {
		return nil, fmt.Errorf("check promo: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("promo %s already exists", code)
	}
	if _, err := l.store.Exec(ctx,
		`insert into promocodes (code, discount_percent, min_amount, max_uses, is_active) values ($1, $2, $3, $4, $5)`,
		code, discountPercent, minAmount, maxUses, true); err != nil {
		return nil, fmt.Errorf("insert promo: %w", err)
	}
	return l.Lookup(ctx, code)
}

// Delete removes a code definition; returns whether a row was removed.
func (l *Ledger) Delete(ctx context.Context, code string) (bool, error) {
	affected, err := l.store.Exec(ctx, `delete from promocodes where code=$1`, Normalize(code))
	if err != nil {
		return false, fmt.Errorf("delete promo: %w", err)
	}
	return affected > 0, nil
}

// List returns all code definitions, newest first.
func (l *Ledger) List(ctx context.Context) ([]Code, error) {
	rows, err := l.store.Fetch(ctx, `select * from promocodes order by created_at desc`)
	if err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	out := make([]Code, 0, len(rows))
	for _, row := range rows {
		out = append(out, codeFromRow(row))
	}
	return out, nil
}

// ListUsable returns the codes a user may still redeem.
func (l *Ledger) ListUsable(ctx context.Context) ([]Code, error) {
	rows, err := l.store.Fetch(ctx, `select * from promocodes where `+usablePredicate)
	if err != nil {
		return nil, fmt.Errorf("list usable promos: %w", err)
	}
	out := make([]Code, 0, len(rows))
	for _, row := range rows {
		out = append(out, codeFromRow(row))
	}
	return out, nil
}
