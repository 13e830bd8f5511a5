package store

import "time"

// User is a row in the users table. Users are created on first interaction
// and never deleted.
type User struct {
	ID           int64
	Username     *string
	TelegramID   int64
	Role         string
	BonusBalance int64
	ReferrerID   *int64
	CreatedAt    time.Time
}

// Tariff is a purchasable server configuration with a base price in RUB,
// before markup.
type Tariff struct {
	ID       int64
	Location string
	Specs    string
	Price    float64
}

// Referral describes one referred user for the referral panel.
type Referral struct {
	Username   *string
	TelegramID int64
	CreatedAt  time.Time
}

// TariffSeed is one preset entry for administrative catalog seeding.
type TariffSeed struct {
	Location string
	Specs    string
	Price    float64
}
