package tg

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"
)

const (
	menuCatalog    = "🛒 Каталог серверов"
	menuMyOrders   = "📦 Мои заказы"
	menuProfile    = "👤 Мой профиль"
	menuPromos     = "🎁 Промокоды"
	menuClearPromo = "🗑️ Очистить промокод"
	menuReferral   = "👥 Реферальная система"
	menuSupport    = "🆘 Техподдержка"
)

func mainMenu() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: menuCatalog}, {Text: menuMyOrders}},
			{{Text: menuProfile}, {Text: menuPromos}},
			{{Text: menuClearPromo}, {Text: menuReferral}},
			{{Text: menuSupport}},
		},
		ResizeKeyboard: true,
	}
}

func inlineRows(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func btn(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func urlBtn(text, url string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, URL: url}
}

// locationFlag picks an emoji for known location names; defaults to a pin.
func locationFlag(location string) string {
	low := strings.ToLower(location)
	switch {
	case strings.Contains(low, "рос"):
		return "🇷🇺"
	case strings.Contains(low, "сша"), strings.Contains(low, "usa"):
		return "🇺🇸"
	case strings.Contains(low, "сингап"), strings.Contains(low, "singap"):
		return "🇸🇬"
	case strings.Contains(low, "фин"), strings.Contains(low, "finland"):
		return "🇫🇮"
	case strings.Contains(low, "гер"), strings.Contains(low, "germ"):
		return "🇩🇪"
	case strings.Contains(low, "франц"), strings.Contains(low, "france"):
		return "🇫🇷"
	case strings.Contains(low, "нидер"), strings.Contains(low, "nether"):
		return "🇳🇱"
	default:
		return "📍"
	}
}

// displayName renders @username when present, otherwise the numeric id.
func displayName(username *string, telegramID int64) string {
	if username != nil && *username != "" {
		return "@" + *username
	}
	return fmt.Sprintf("ID: %d", telegramID)
}

// truncate keeps button labels within Telegram's practical width.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
