package store

import (
	"context"
	"testing"
)

func TestSeedInsertsThenCorrectsPrices(t *testing.T) {
	tariffs := NewTariffs(newGateway(t))
	ctx := context.Background()

	preset := []TariffSeed{
		{Location: "Россия", Specs: "4 Gb RAM / 2 Core CPU / SSD 40 Gb", Price: 637},
		{Location: "США", Specs: "1vCPU / 768 MB RAM / SSD 5 Gb", Price: 259},
	}

	added, updated, err := tariffs.Seed(ctx, preset)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if added != 2 || updated != 0 {
		t.Fatalf("added=%d updated=%d, want 2/0", added, updated)
	}

	// A repeat run with one changed price touches only that row.
	preset[0].Price = 700
	added, updated, err = tariffs.Seed(ctx, preset)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if added != 0 || updated != 1 {
		t.Fatalf("added=%d updated=%d, want 0/1", added, updated)
	}

	rows, err := tariffs.ByLocation(ctx, "Россия")
	if err != nil {
		t.Fatalf("by location: %v", err)
	}
	if len(rows) != 1 || rows[0].Price != 700 {
		t.Fatalf("rows = %+v, want one row at 700", rows)
	}
}

func TestByLocationOrdersByPrice(t *testing.T) {
	tariffs := NewTariffs(newGateway(t))
	ctx := context.Background()

	tariffs.Create(ctx, "Россия", "big", 2054)
	tariffs.Create(ctx, "Россия", "small", 533)
	tariffs.Create(ctx, "Германия", "mid", 624)

	rows, err := tariffs.ByLocation(ctx, "Россия")
	if err != nil {
		t.Fatalf("by location: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Price > rows[1].Price {
		t.Fatalf("rows not price-ascending: %v then %v", rows[0].Price, rows[1].Price)
	}

	locs, err := tariffs.Locations(ctx)
	if err != nil {
		t.Fatalf("locations: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("locations = %v, want 2 distinct", locs)
	}
}

func TestSettingsDefaultAndOverride(t *testing.T) {
	gateway := newGateway(t)
	settings := NewSettings(gateway)
	ctx := context.Background()

	// The schema seeds referral_reward at 100.
	amount, err := settings.ReferralReward(ctx)
	if err != nil {
		t.Fatalf("referral reward: %v", err)
	}
	if amount != 100 {
		t.Fatalf("default reward = %d, want 100", amount)
	}

	if err := settings.SetReferralReward(ctx, 250); err != nil {
		t.Fatalf("set reward: %v", err)
	}
	amount, err = settings.ReferralReward(ctx)
	if err != nil {
		t.Fatalf("referral reward: %v", err)
	}
	if amount != 250 {
		t.Fatalf("reward = %d, want 250", amount)
	}
}
