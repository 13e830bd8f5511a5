package store

import (
	"context"
	"fmt"

	"vds-shop-bot/internal/db"
)

// Users provides account access: creation on first contact, referral linkage
// and the bonus balance. Lifecycle-affecting writes stay with the
// reconciliation coordinator.
type Users struct {
	store db.Store
}

// NewUsers returns the user store over the gateway.
func NewUsers(store db.Store) *Users {
	return &Users{store: store}
}

func userFromRow(row db.Row) *User {
	return &User{
		ID:           row.Int64("id"),
		Username:     row.NullString("username"),
		TelegramID:   row.Int64("telegram_id"),
		Role:         row.String("role"),
		BonusBalance: row.Int64("bonus_balance"),
		ReferrerID:   row.NullInt64("referrer_id"),
		CreatedAt:    row.Time("created_at"),
	}
}

// Upsert returns the user with the given Telegram id, creating the row on
// first interaction. An existing row is returned untouched.
func (u *Users) Upsert(ctx context.Context, username string, telegramID int64) (*User, error) {
	row, err := u.store.FetchOne(ctx, `select * from users where telegram_id=$1`, telegramID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if row != nil {
		return userFromRow(row), nil
	}

	var name *string
	if username != "" {
		name = &username
	}
	if _, err := u.store.Exec(ctx, `insert into users (username, telegram_id) values ($1, $2)`, name, telegramID); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	row, err = u.store.FetchOne(ctx, `select * from users where telegram_id=$1`, telegramID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	if row == nil {
		return nil, db.ErrNotFound
	}
	return userFromRow(row), nil
}

// ByID returns a user by primary key.
func (u *Users) ByID(ctx context.Context, id int64) (*User, error) {
	row, err := u.store.FetchOne(ctx, `select * from users where id=$1`, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if row == nil {
		return nil, db.ErrNotFound
	}
	return userFromRow(row), nil
}

// SetReferrer links a referrer to the user. The link is written at most once
// and never to the user themselves; the conditional update makes repeated or
// conflicting calls no-ops.
func (u *Users) SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error) {
	affected, err := u.store.Exec(ctx,
		`update users set referrer_id=$2 where id=$1 and referrer_id is null and id<>$2`,
		userID, referrerID)
	if err != nil {
		return false, fmt.Errorf("set referrer: %w", err)
	}
	return affected > 0, nil
}

// CreditBonus adds amount to the user's bonus balance.
func (u *Users) CreditBonus(ctx context.Context, userID, amount int64) error {
	affected, err := u.store.Exec(ctx,
		`update users set bonus_balance=bonus_balance+$2 where id=$1`, userID, amount)
	if err != nil {
		return fmt.Errorf("credit bonus: %w", err)
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DebitBonus subtracts amount from the user's bonus balance. The balance
// never goes negative; an overdraw attempt reports ErrNotFound semantics via
// a zero affected count.
func (u *Users) DebitBonus(ctx context.Context, userID, amount int64) error {
	affected, err := u.store.Exec(ctx,
		`update users set bonus_balance=bonus_balance-$2 where id=$1 and bonus_balance>=$2`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("debit bonus: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("debit bonus: insufficient balance for user %d", userID)
	}
	return nil
}

// Referrals lists users referred by the given user, newest first.
func (u *Users) Referrals(ctx context.Context, referrerID int64) ([]Referral, error) {
	rows, err := u.store.Fetch(ctx,
		`select username, telegram_id, created_at from users where referrer_id=$1 order by created_at desc`,
		referrerID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	out := make([]Referral, 0, len(rows))
	for _, row := range rows {
		out = append(out, Referral{
			Username:   row.NullString("username"),
			TelegramID: row.Int64("telegram_id"),
			CreatedAt:  row.Time("created_at"),
		})
	}
	return out, nil
}

// ReferralEarnings returns the total reward amount credited to the referrer.
func (u *Users) ReferralEarnings(ctx context.Context, referrerID int64) (int64, error) {
	row, err := u.store.FetchOne(ctx,
		`select coalesce(sum(reward_amount), 0) as total from referral_rewards where referrer_id=$1`,
		referrerID)
	if err != nil {
		return 0, fmt.Errorf("referral earnings: %w", err)
	}
	if row == nil {
		return 0, nil
	}
	return row.Int64("total"), nil
}

// ReferralTotals summarises the referral program for the admin panel.
type ReferralTotals struct {
	TotalUsers  int64
	Referred    int64
	RewardsPaid int64
}

func (u *Users) ReferralProgramTotals(ctx context.Context) (*ReferralTotals, error) {
	row, err := u.store.FetchOne(ctx, `
select
  (select count(*) from users) as total_users,
  (select count(*) from users where referrer_id is not null) as referred,
  (select coalesce(sum(reward_amount), 0) from referral_rewards) as rewards_paid`)
	if err != nil {
		return nil, fmt.Errorf("referral totals: %w", err)
	}
	if row == nil {
		return &ReferralTotals{}, nil
	}
	return &ReferralTotals{
		TotalUsers:  row.Int64("total_users"),
		Referred:    row.Int64("referred"),
		RewardsPaid: row.Int64("rewards_paid"),
	}, nil
}

// ReferrerRank is one row of the top-referrer board.
type ReferrerRank struct {
	Username    *string
	TelegramID  int64
	Referrals   int64
	TotalReward int64
}

// TopReferrers ranks referrers by invite count.
func (u *Users) TopReferrers(ctx context.Context, limit int64) ([]ReferrerRank, error) {
	rows, err := u.store.Fetch(ctx, `
select u.username, u.telegram_id,
       count(r.id) as ref_count,
       (select coalesce(sum(reward_amount), 0) from referral_rewards where referrer_id=u.id) as total_reward
from users u
join users r on r.referrer_id = u.id
group by u.id, u.username, u.telegram_id
order by ref_count desc
limit $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top referrers: %w", err)
	}
	out := make([]ReferrerRank, 0, len(rows))
	for _, row := range rows {
		out = append(out, ReferrerRank{
			Username:    row.NullString("username"),
			TelegramID:  row.Int64("telegram_id"),
			Referrals:   row.Int64("ref_count"),
			TotalReward: row.Int64("total_reward"),
		})
	}
	return out, nil
}
