package config

import "testing"

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without TELEGRAM_BOT_TOKEN")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "data/shop.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.WebhookPath != "/cryptobot-webhook" {
		t.Errorf("WebhookPath = %q", cfg.WebhookPath)
	}
	if cfg.PriceMarkupPercent != 30 {
		t.Errorf("PriceMarkupPercent = %v", cfg.PriceMarkupPercent)
	}
	if cfg.RubUSDTRate != 100 {
		t.Errorf("RubUSDTRate = %v", cfg.RubUSDTRate)
	}
	if len(cfg.AdminIDs) != 0 {
		t.Errorf("AdminIDs = %v", cfg.AdminIDs)
	}
}

func TestLoadAdminIDs(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", " 111, 222 ,,333 ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AdminIDs) != 3 {
		t.Fatalf("AdminIDs = %v", cfg.AdminIDs)
	}
	if !cfg.IsAdmin(222) {
		t.Error("IsAdmin(222) = false")
	}
	if cfg.IsAdmin(444) {
		t.Error("IsAdmin(444) = true")
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("PRICE_MARKUP_PERCENT", "thirty")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric markup")
	}
}
