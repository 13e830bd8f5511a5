package store

import (
	"context"
	"fmt"
	"strconv"

	"vds-shop-bot/internal/db"
)

const keyReferralReward = "referral_reward"

// defaultReferralReward applies when the settings row is missing.
const defaultReferralReward = 100

// Settings provides the small key/value configuration table.
type Settings struct {
	store db.Store
}

// NewSettings returns the settings store over the gateway.
func NewSettings(store db.Store) *Settings {
	return &Settings{store: store}
}

// ReferralReward returns the configured referral reward in RUB.
func (s *Settings) ReferralReward(ctx context.Context) (int64, error) {
	row, err := s.store.FetchOne(ctx, `select value from settings where key=$1`, keyReferralReward)
	if err != nil {
		return 0, fmt.Errorf("get referral reward: %w", err)
	}
	if row == nil {
		return defaultReferralReward, nil
	}
	amount, err := strconv.ParseInt(row.String("value"), 10, 64)
	if err != nil {
		return defaultReferralReward, nil
	}
	return amount, nil
}

// SetReferralReward stores the referral reward amount.
func (s *Settings) SetReferralReward(ctx context.Context, amount int64) error {
	value := strconv.FormatInt(amount, 10)
	affected, err := s.store.Exec(ctx, `update settings set value=$1 where key=$2`, value, keyReferralReward)
	if err != nil {
		return fmt.Errorf("set referral reward: %w", err)
	}
	if affected == 0 {
		if _, err := s.store.Exec(ctx, `insert into settings (key, value) values ($1, $2)`, keyReferralReward, value); err != nil {
			return fmt.Errorf("insert referral reward: %w", err)
		}
	}
	return nil
}
