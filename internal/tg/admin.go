package tg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"vds-shop-bot/internal/db"
	"vds-shop-bot/internal/order"
	"vds-shop-bot/internal/recon"
	"vds-shop-bot/internal/store"
)

func (t *Bot) handleAdminPanel(ctx context.Context, _ *bot.Bot, update *models.Update) {
	t.send(ctx, update.Message.Chat.ID,
		"⚙️ <b>Админ-панель</b>\n\n🔧 Управление заказами и статистикой",
		inlineRows(
			[]models.InlineKeyboardButton{btn("✅ Оплаченные", "admin:paid"), btn("📋 Все заказы", "admin:all")},
			[]models.InlineKeyboardButton{btn("📊 Статистика", "admin:stats")},
		))
}

func (t *Bot) orderLine(s *order.Summary) string {
	return fmt.Sprintf("#%d • %s • %s • %d RUB", s.Order.ID, s.Location, s.Specs, s.DisplayPrice(t.cfg.PriceMarkupPercent))
}

func (t *Bot) handleAdminPaid(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	t.toast(ctx, cq, "")
	orders, err := t.deps.Orders.ListByStatus(ctx, order.StatusPaid, 20)
	if err != nil {
		t.logger.Error("list paid orders failed", "error", err)
		return
	}
	if len(orders) == 0 {
		t.edit(ctx, cq, "Оплаченных заказов нет.", nil)
		return
	}
	lines := make([]string, 0, len(orders))
	var rows [][]models.InlineKeyboardButton
	for i := range orders {
		lines = append(lines, t.orderLine(&orders[i]))
		rows = append(rows, []models.InlineKeyboardButton{
			btn(fmt.Sprintf("Выдать #%d", orders[i].Order.ID), fmt.Sprintf("setdel:%d", orders[i].Order.ID)),
		})
	}
	t.edit(ctx, cq, strings.Join(lines, "\n"), inlineRows(rows...))
}

func (t *Bot) handleAdminAll(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	t.toast(ctx, cq, "")
	orders, err := t.deps.Orders.ListRecent(ctx, 30)
	if err != nil {
		t.logger.Error("list orders failed", "error", err)
		return
	}
	if len(orders) == 0 {
		t.edit(ctx, cq, "Заказов нет.", nil)
		return
	}
	lines := make([]string, 0, len(orders))
	var rows [][]models.InlineKeyboardButton
	for i := range orders {
		s := &orders[i]
		lines = append(lines, fmt.Sprintf("#%d • %s • %s • %s • %d RUB",
			s.Order.ID, s.Status, s.Location, s.Specs, s.DisplayPrice(t.cfg.PriceMarkupPercent)))
		switch s.Status {
		case order.StatusCreated:
			rows = append(rows, []models.InlineKeyboardButton{
				btn(fmt.Sprintf("Оплачен #%d", s.Order.ID), fmt.Sprintf("setpaid:%d", s.Order.ID)),
			})
		case order.StatusPaid:
			rows = append(rows, []models.InlineKeyboardButton{
				btn(fmt.Sprintf("Выдать #%d", s.Order.ID), fmt.Sprintf("setdel:%d", s.Order.ID)),
			})
		}
	}
	t.edit(ctx, cq, strings.Join(lines, "\n"), inlineRows(rows...))
}

func (t *Bot) handleAdminStats(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	t.toast(ctx, cq, "")
	stats, err := t.deps.Orders.ShopStats(ctx)
	if err != nil {
		t.logger.Error("shop stats failed", "error", err)
		return
	}
	settled, err := t.deps.Orders.Settled(ctx)
	if err != nil {
		t.logger.Error("list settled failed", "error", err)
		return
	}
	var revenue int64
	for i := range settled {
		revenue += settled[i].DisplayPrice(t.cfg.PriceMarkupPercent)
	}
	t.edit(ctx, cq, fmt.Sprintf(
		"📊 <b>Статистика магазина</b>\n\n📦 <b>Всего заказов:</b> <code>%d</code>\n✅ <b>Оплачено:</b> <code>%d</code>\n🎉 <b>Выдано:</b> <code>%d</code>\n👥 <b>Пользователей:</b> <code>%d</code>\n💰 <b>Выручка (RUB):</b> <code>%d</code>",
		stats.Total, stats.Paid, stats.Delivered, stats.Users, revenue), nil)
}

// handleSetPaidButton settles a manual confirmation from the order list.
func (t *Bot) handleSetPaidButton(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	orderID, ok := parseTrailingID(cq.Data, "setpaid:")
	if !ok {
		return
	}
	if _, err := t.deps.Recon.ConfirmPayment(ctx, orderID, recon.OriginAdmin); err != nil {
		t.confirmErrorToast(ctx, cq, err)
		return
	}
	t.toast(ctx, cq, "Оплачен")
	t.appendToMessage(ctx, cq, fmt.Sprintf("✅ Заказ #%d отмечен как оплачен.", orderID))
}

func (t *Bot) handleSetDeliveredButton(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	orderID, ok := parseTrailingID(cq.Data, "setdel:")
	if !ok {
		return
	}
	if _, err := t.deps.Recon.MarkDelivered(ctx, orderID); err != nil {
		t.confirmErrorToast(ctx, cq, err)
		return
	}
	t.toast(ctx, cq, "Выдано")
	t.appendToMessage(ctx, cq, fmt.Sprintf("✅ Заказ #%d выдан.", orderID))
}

// handleLogPaid is the approve button on the review-channel message.
func (t *Bot) handleLogPaid(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	orderID, ok := parseTrailingID(cq.Data, "logpaid:")
	if !ok {
		return
	}
	if _, err := t.deps.Recon.ConfirmPayment(ctx, orderID, recon.OriginAdmin); err != nil {
		t.confirmErrorToast(ctx, cq, err)
		return
	}
	t.toast(ctx, cq, "Отмечено как оплачен")
	t.appendToMessage(ctx, cq, "✅ Отмечено: оплачен.")
}

func (t *Bot) handleLogUnpaid(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	orderID, ok := parseTrailingID(cq.Data, "logunpaid:")
	if !ok {
		return
	}
	if _, err := t.deps.Recon.MarkUnpaid(ctx, orderID); err != nil {
		t.confirmErrorToast(ctx, cq, err)
		return
	}
	t.toast(ctx, cq, "Отмечено как не оплачен")
	t.appendToMessage(ctx, cq, "❌ Отмечено: не оплачен.")
}

func (t *Bot) confirmErrorToast(ctx context.Context, cq *models.CallbackQuery, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		t.toast(ctx, cq, "Не найдено")
	case errors.Is(err, order.ErrInvalidTransition):
		t.toast(ctx, cq, "Недопустимый переход статуса")
	default:
		t.logger.Error("admin status change failed", "error", err)
		t.toast(ctx, cq, "Ошибка")
	}
}

// appendToMessage extends the message under the pressed button with a result
// line, keeping the review trail in place.
func (t *Bot) appendToMessage(ctx context.Context, cq *models.CallbackQuery, line string) {
	msg := cq.Message.Message
	if msg == nil {
		return
	}
	t.edit(ctx, cq, msg.Text+"\n\n"+line, nil)
}

func (t *Bot) handleOrdersPaid(ctx context.Context, _ *bot.Bot, update *models.Update) {
	orders, err := t.deps.Orders.ListByStatus(ctx, order.StatusPaid, 20)
	if err != nil {
		t.logger.Error("list paid orders failed", "error", err)
		return
	}
	if len(orders) == 0 {
		t.send(ctx, update.Message.Chat.ID, "Оплаченных заказов нет.", nil)
		return
	}
	lines := make([]string, 0, len(orders))
	for i := range orders {
		lines = append(lines, t.orderLine(&orders[i]))
	}
	t.send(ctx, update.Message.Chat.ID, strings.Join(lines, "\n"), nil)
}

func (t *Bot) handleSetPaid(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	orderID, ok := commandID(msg.Text)
	if !ok {
		t.send(ctx, msg.Chat.ID, "Укажите номер заказа: /set_paid &lt;id&gt;", nil)
		return
	}
	if _, err := t.deps.Recon.ConfirmPayment(ctx, orderID, recon.OriginAdmin); err != nil {
		t.send(ctx, msg.Chat.ID, t.statusChangeError(err), nil)
		return
	}
	t.send(ctx, msg.Chat.ID, fmt.Sprintf("Статус заказа #%d обновлен на «paid».", orderID), nil)
}

func (t *Bot) handleSetDelivered(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	orderID, ok := commandID(msg.Text)
	if !ok {
		t.send(ctx, msg.Chat.ID, "Укажите номер заказа: /set_delivered &lt;id&gt;", nil)
		return
	}
	if _, err := t.deps.Recon.MarkDelivered(ctx, orderID); err != nil {
		t.send(ctx, msg.Chat.ID, t.statusChangeError(err), nil)
		return
	}
	t.send(ctx, msg.Chat.ID, fmt.Sprintf("Статус заказа #%d обновлен на «delivered».", orderID), nil)
}

func (t *Bot) statusChangeError(err error) string {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return "Заказ не найден."
	case errors.Is(err, order.ErrInvalidTransition):
		return "Недопустимый переход статуса: " + err.Error()
	default:
		t.logger.Error("admin status change failed", "error", err)
		return "Ошибка при обновлении заказа."
	}
}

func (t *Bot) handleAddPromo(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	parts := strings.Fields(msg.Text)
	if len(parts) < 5 {
		t.send(ctx, msg.Chat.ID,
			"Использование: /add_promo КОД скидка_% мин_сумма макс_использований\nПример: /add_promo WELCOME 10 1000 100", nil)
		return
	}
	discount, err1 := strconv.ParseInt(parts[2], 10, 64)
	minAmount, err2 := strconv.ParseInt(parts[3], 10, 64)
	maxUses, err3 := strconv.ParseInt(parts[4], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		t.send(ctx, msg.Chat.ID, "❌ Все числовые значения должны быть целыми числами.", nil)
		return
	}
	code, err := t.deps.Promos.Create(ctx, parts[1], discount, minAmount, maxUses)
	if err != nil {
		t.send(ctx, msg.Chat.ID, "❌ "+err.Error(), nil)
		return
	}
	t.send(ctx, msg.Chat.ID, fmt.Sprintf(
		"✅ <b>Промокод создан!</b>\n\n🎁 Код: <code>%s</code>\n💰 Скидка: %d%%\n📊 Мин. сумма: %d RUB\n🎯 Макс. использований: %d",
		code.Code, code.DiscountPercent, code.MinAmount, code.MaxUses), nil)
}

func (t *Bot) handleDelPromo(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	parts := strings.Fields(msg.Text)
	if len(parts) < 2 {
		t.send(ctx, msg.Chat.ID, "Использование: /del_promo КОД", nil)
		return
	}
	removed, err := t.deps.Promos.Delete(ctx, parts[1])
	if err != nil {
		t.logger.Error("delete promo failed", "error", err)
		return
	}
	if removed {
		t.send(ctx, msg.Chat.ID, fmt.Sprintf("✅ Промокод %s удален.", strings.ToUpper(parts[1])), nil)
	} else {
		t.send(ctx, msg.Chat.ID, fmt.Sprintf("❌ Промокод %s не найден.", strings.ToUpper(parts[1])), nil)
	}
}

func (t *Bot) handleListPromos(ctx context.Context, _ *bot.Bot, update *models.Update) {
	codes, err := t.deps.Promos.List(ctx)
	if err != nil {
		t.logger.Error("list promos failed", "error", err)
		return
	}
	if len(codes) == 0 {
		t.send(ctx, update.Message.Chat.ID, "📝 Промокодов нет.", nil)
		return
	}
	var sb strings.Builder
	sb.WriteString("📝 <b>Список промокодов:</b>\n\n")
	for _, c := range codes {
		status := "✅ Активен"
		if !c.IsActive {
			status = "❌ Неактивен"
		}
		remaining := "∞"
		if uses := c.Uses(); !uses.Unlimited {
			remaining = strconv.FormatInt(uses.Remaining, 10)
		}
		fmt.Fprintf(&sb, "🎁 <b>%s</b> — %s\n💰 Скидка: %d%%\n📊 Мин. сумма: %d RUB\n🎯 Использований: %d/%d (осталось: %s)\n\n",
			c.Code, status, c.DiscountPercent, c.MinAmount, c.UsedCount, c.MaxUses, remaining)
	}
	t.send(ctx, update.Message.Chat.ID, sb.String(), nil)
}

func (t *Bot) handleSetRefReward(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	amount, ok := commandID(msg.Text)
	if !ok {
		t.send(ctx, msg.Chat.ID, "Использование: /set_ref_reward сумма_в_RUB", nil)
		return
	}
	if err := t.deps.Settings.SetReferralReward(ctx, amount); err != nil {
		t.logger.Error("set referral reward failed", "error", err)
		return
	}
	t.send(ctx, msg.Chat.ID, fmt.Sprintf("✅ Реферальная награда установлена: %d RUB", amount), nil)
}

func (t *Bot) handleRefStats(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	totals, err := t.deps.Users.ReferralProgramTotals(ctx)
	if err != nil {
		t.logger.Error("referral totals failed", "error", err)
		return
	}
	top, err := t.deps.Users.TopReferrers(ctx, 5)
	if err != nil {
		t.logger.Error("top referrers failed", "error", err)
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 <b>Статистика реферальной системы</b>\n\n👤 Всего пользователей: %d\n🔗 Приглашено по рефералам: %d\n💰 Выплачено наград: %d RUB\n\n",
		totals.TotalUsers, totals.Referred, totals.RewardsPaid)
	if len(top) > 0 {
		sb.WriteString("🏆 <b>Топ рефереров:</b>\n")
		for i, r := range top {
			fmt.Fprintf(&sb, "%d. %s — %d рефералов, %d RUB\n", i+1, displayName(r.Username, r.TelegramID), r.Referrals, r.TotalReward)
		}
	}
	t.send(ctx, msg.Chat.ID, sb.String(), nil)
}

// seedPreset is the combined catalog across all supported locations.
var seedPreset = []store.TariffSeed{
	{Location: "Россия", Specs: "3 Gb RAM / 2 Core CPU / SSD 40 Gb", Price: 533},
	{Location: "Россия", Specs: "4 Gb RAM / 3 Core CPU / SSD 40 Gb", Price: 598},
	{Location: "Россия", Specs: "4 Gb RAM / 2 Core CPU / SSD 40 Gb", Price: 637},
	{Location: "Россия", Specs: "6 Gb RAM / 4 Core CPU / SSD 40 Gb", Price: 650},
	{Location: "Россия", Specs: "8 Gb RAM / 4 Core CPU / SSD 70 Gb", Price: 1014},
	{Location: "Россия", Specs: "16 Gb RAM / 8 Core CPU / SSD 120 Gb", Price: 2054},
	{Location: "Россия", Specs: "24 Gb RAM / 10 Core CPU / SSD 120 Gb", Price: 2405},
	{Location: "Россия", Specs: "32 Gb RAM / 10 Core CPU / SSD 250 Gb", Price: 3510},
	{Location: "Россия", Specs: "64 Gb RAM / 20 Core CPU / SSD 500 Gb", Price: 6354},
	{Location: "Россия", Specs: "128 Gb RAM / 32 Core CPU / SSD 2000 Gb", Price: 10244},
	{Location: "Германия", Specs: "4 Gb RAM / 2 Core CPU / SSD 40 Gb", Price: 624},
	{Location: "США", Specs: "1vCPU / 768 MB RAM / SSD 5 Gb", Price: 259},
	{Location: "США", Specs: "1vCPU / 1024 MB RAM / SSD 10 Gb", Price: 429},
	{Location: "США", Specs: "2vCPU / 2048 MB RAM / SSD 20 Gb", Price: 759},
	{Location: "США", Specs: "4vCPU / 3072 MB RAM / SSD 50 Gb", Price: 1259},
	{Location: "США", Specs: "6vCPU / 6144 MB RAM / SSD 100 Gb", Price: 1759},
	{Location: "США", Specs: "8vCPU / 8192 MB RAM / SSD 200 Gb", Price: 2399},
	{Location: "Сингапур", Specs: "1vCPU / 768 MB RAM / SSD 5 Gb", Price: 259},
	{Location: "Сингапур", Specs: "1vCPU / 1024 MB RAM / SSD 10 Gb", Price: 429},
	{Location: "Сингапур", Specs: "2vCPU / 2048 MB RAM / SSD 20 Gb", Price: 759},
	{Location: "Сингапур", Specs: "4vCPU / 3072 MB RAM / SSD 50 Gb", Price: 1259},
	{Location: "Сингапур", Specs: "6vCPU / 6144 MB RAM / SSD 100 Gb", Price: 1759},
	{Location: "Сингапур", Specs: "8vCPU / 8192 MB RAM / SSD 200 Gb", Price: 2399},
	{Location: "Финляндия", Specs: "1vCPU / 768 MB RAM / SSD 5 Gb", Price: 259},
	{Location: "Финляндия", Specs: "1vCPU / 1024 MB RAM / SSD 10 Gb", Price: 429},
	{Location: "Финляндия", Specs: "2vCPU / 2048 MB RAM / SSD 20 Gb", Price: 759},
	{Location: "Финляндия", Specs: "4vCPU / 3072 MB RAM / SSD 50 Gb", Price: 1259},
	{Location: "Финляндия", Specs: "6vCPU / 6144 MB RAM / SSD 100 Gb", Price: 1759},
	{Location: "Финляндия", Specs: "8vCPU / 8192 MB RAM / SSD 200 Gb", Price: 2399},
}

func (t *Bot) handleSeed(ctx context.Context, _ *bot.Bot, update *models.Update) {
	added, updated, err := t.deps.Tariffs.Seed(ctx, seedPreset)
	if err != nil {
		t.logger.Error("seed tariffs failed", "error", err)
		t.send(ctx, update.Message.Chat.ID, "Ошибка при загрузке тарифов.", nil)
		return
	}
	t.send(ctx, update.Message.Chat.ID,
		fmt.Sprintf("Готово. Добавлено тарифов: %d, обновлено: %d.", added, updated), nil)
}

// handleAddServer parses "/add_server Локация|Характеристики|Цена".
func (t *Bot) handleAddServer(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	raw := strings.TrimSpace(strings.TrimPrefix(msg.Text, "/add_server"))
	parts := strings.Split(raw, "|")
	if len(parts) != 3 {
		t.send(ctx, msg.Chat.ID,
			"Неверный формат. Используйте:\n/add_server Локация|Характеристики|Цена\n\nПример:\n/add_server Россия|4 Gb RAM / 2 Core CPU / SSD 40 Gb|650", nil)
		return
	}
	location := strings.TrimSpace(parts[0])
	specs := strings.TrimSpace(parts[1])
	price, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		t.send(ctx, msg.Chat.ID, "Ошибка: цена должна быть числом.", nil)
		return
	}
	tariff, err := t.deps.Tariffs.Create(ctx, location, specs, price)
	if err != nil {
		t.logger.Error("add tariff failed", "error", err)
		t.send(ctx, msg.Chat.ID, "Ошибка при добавлении тарифа.", nil)
		return
	}
	t.send(ctx, msg.Chat.ID, fmt.Sprintf("✅ Сервер добавлен:\n%s • %s • %.0f RUB", tariff.Location, tariff.Specs, tariff.Price), nil)
}

// handleCheckInvoice polls the provider for an invoice and settles the order
// through the same path as the review buttons when it is paid.
func (t *Bot) handleCheckInvoice(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	invoiceID, ok := commandID(msg.Text)
	if !ok {
		t.send(ctx, msg.Chat.ID, "Использование: /check invoice_id", nil)
		return
	}
	inv, err := t.deps.CryptoPay.GetInvoice(ctx, invoiceID)
	if err != nil {
		t.logger.Error("get invoice failed", "invoice_id", invoiceID, "error", err)
		t.send(ctx, msg.Chat.ID, "Проверка недоступна, попробуйте позже.", nil)
		return
	}
	if inv == nil {
		t.send(ctx, msg.Chat.ID, "Счет не найден.", nil)
		return
	}
	if inv.Status != "paid" {
		t.send(ctx, msg.Chat.ID, fmt.Sprintf("Статус счета: %s", inv.Status), nil)
		return
	}
	if _, err := t.deps.Recon.ConfirmPaymentByInvoice(ctx, invoiceID, recon.OriginAdmin); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			t.send(ctx, msg.Chat.ID, "Счет оплачен, но заказ с таким invoice_id не найден.", nil)
			return
		}
		t.send(ctx, msg.Chat.ID, t.statusChangeError(err), nil)
		return
	}
	t.send(ctx, msg.Chat.ID, fmt.Sprintf("✅ Оплата счета %d подтверждена.", invoiceID), nil)
}

// commandID pulls the single numeric argument of a slash command.
func commandID(text string) (int64, bool) {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
