package tg

import "testing"

func TestLooksLikePromoCode(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"SUMMER25", true},
		{"VDS-10", true},
		{"  НОВЫЙГОД2025 ", false}, // cyrillic only, no latin uppercase
		{"SALE ЗИМА", false},       // contains a space
		{"summer25", false},
		{"Promo10", false},
		{"/start", false},
		{"AB", false},
		{"12345", false},
	}
	for _, c := range cases {
		if got := looksLikePromoCode(c.text); got != c.want {
			t.Errorf("looksLikePromoCode(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestParseTrailingID(t *testing.T) {
	cases := []struct {
		data, prefix string
		want         int64
		ok           bool
	}{
		{"pay:7", "pay:", 7, true},
		{"pay:7:0", "pay:", 7, true},
		{"setpaid:120", "setpaid:", 120, true},
		{"pay:abc", "pay:", 0, false},
		{"pay:-3", "pay:", 0, false},
		{"pay:", "pay:", 0, false},
	}
	for _, c := range cases {
		got, ok := parseTrailingID(c.data, c.prefix)
		if got != c.want || ok != c.ok {
			t.Errorf("parseTrailingID(%q, %q) = (%d, %v), want (%d, %v)",
				c.data, c.prefix, got, ok, c.want, c.ok)
		}
	}
}

func TestCommandID(t *testing.T) {
	cases := []struct {
		text string
		want int64
		ok   bool
	}{
		{"/set_paid 15", 15, true},
		{"/set_delivered   8", 8, true},
		{"/set_paid", 0, false},
		{"/set_paid fifteen", 0, false},
		{"/set_paid 0", 0, false},
	}
	for _, c := range cases {
		got, ok := commandID(c.text)
		if got != c.want || ok != c.ok {
			t.Errorf("commandID(%q) = (%d, %v), want (%d, %v)", c.text, got, ok, c.want, c.ok)
		}
	}
}

func TestLocationFlag(t *testing.T) {
	cases := []struct{ location, want string }{
		{"Россия", "🇷🇺"},
		{"Германия", "🇩🇪"},
		{"США", "🇺🇸"},
		{"Сингапур", "🇸🇬"},
		{"Финляндия", "🇫🇮"},
		{"Марс", "📍"},
	}
	for _, c := range cases {
		if got := locationFlag(c.location); got != c.want {
			t.Errorf("locationFlag(%q) = %q, want %q", c.location, got, c.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	name := "vasya"
	if got := displayName(&name, 42); got != "@vasya" {
		t.Errorf("displayName with username = %q", got)
	}
	empty := ""
	if got := displayName(&empty, 42); got != "ID: 42" {
		t.Errorf("displayName with empty username = %q", got)
	}
	if got := displayName(nil, 42); got != "ID: 42" {
		t.Errorf("displayName without username = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("Россия • 6 Gb RAM", 6); got != "Россия…" {
		t.Errorf("truncate runes = %q", got)
	}
}
