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
	"vds-shop-bot/internal/store"
)

func (t *Bot) upsertFrom(ctx context.Context, from *models.User) (*store.User, error) {
	return t.deps.Users.Upsert(ctx, from.Username, from.ID)
}

func (t *Bot) handleStart(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	user, err := t.upsertFrom(ctx, msg.From)
	if err != nil {
		t.logger.Error("upsert user failed", "error", err)
		return
	}

	// Deep links look like "/start ref42" and bind the referrer once.
	referred := false
	if rest, ok := strings.CutPrefix(msg.Text, "/start ref"); ok {
		if refID, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64); err == nil {
			bound, err := t.deps.Users.SetReferrer(ctx, user.ID, refID)
			if err != nil {
				t.logger.Error("set referrer failed", "user_id", user.ID, "error", err)
			}
			referred = bound
			if bound {
				t.notifyReferrer(ctx, refID, msg.From)
			}
		}
	}

	text := "🚀 <b>Добро пожаловать в DeadlyVDS</b> 🚀\n\n"
	if referred {
		text += "🎁 <b>Вы присоединились по реферальной ссылке!</b>\n\n"
	}
	text += "🔥 Мощные VPS серверы по лучшим ценам\n" +
		"🌍 Локации по всему миру\n" +
		"⚡ Мгновенная активация\n\n" +
		"Выберите действие ниже:"
	t.send(ctx, msg.Chat.ID, text, mainMenu())
}

func (t *Bot) notifyReferrer(ctx context.Context, referrerID int64, joined *models.User) {
	ref, err := t.deps.Users.ByID(ctx, referrerID)
	if err != nil {
		return
	}
	name := joined.Username
	if name == "" {
		name = strconv.FormatInt(joined.ID, 10)
	}
	t.send(ctx, ref.TelegramID, fmt.Sprintf(
		"🎉 <b>Новый реферал!</b>\n\n👤 Пользователь @%s присоединился по вашей ссылке!\n💰 Вы получите бонус за его первый заказ!",
		name), nil)
}

func (t *Bot) handleCatalog(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	user, err := t.upsertFrom(ctx, msg.From)
	if err != nil {
		return
	}
	locs, err := t.deps.Tariffs.Locations(ctx)
	if err != nil {
		t.logger.Error("list locations failed", "error", err)
		return
	}
	if len(locs) == 0 {
		t.send(ctx, msg.Chat.ID, "😔 <b>Каталог пуст</b>\n\n⏳ Попробуйте позже или обратитесь в поддержку.", nil)
		return
	}

	text := "🌍 <b>Выберите страну для вашего сервера:</b>\n\n"
	if sel, _ := t.deps.Promos.Active(ctx, user.ID); sel != nil {
		text += fmt.Sprintf("🎁 <b>Активный промокод:</b> <code>%s</code> (скидка %d%%)\n", sel.Code, sel.DiscountPercent)
		if sel.MinAmount > 0 {
			text += fmt.Sprintf("📊 Мин. сумма заказа: %d RUB\n", sel.MinAmount)
		}
		text += "\n"
	}

	t.send(ctx, msg.Chat.ID, text, locationKeyboard(locs))
}

func locationKeyboard(locs []string) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, loc := range locs {
		row = append(row, btn(locationFlag(loc)+" "+loc, "loc:"+loc))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return inlineRows(rows...)
}

func (t *Bot) handleLocation(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	t.toast(ctx, cq, "")
	loc := strings.TrimPrefix(cq.Data, "loc:")

	tariffs, err := t.deps.Tariffs.ByLocation(ctx, loc)
	if err != nil {
		t.logger.Error("list tariffs failed", "location", loc, "error", err)
		return
	}
	if len(tariffs) == 0 {
		t.edit(ctx, cq, fmt.Sprintf("😔 <b>Тарифы для %s не найдены</b>\n\nПопробуйте выбрать другую страну.", loc), nil)
		return
	}

	var rows [][]models.InlineKeyboardButton
	for _, tf := range tariffs {
		price := order.PriceWithMarkup(tf.Price, t.cfg.PriceMarkupPercent)
		label := truncate(fmt.Sprintf("%d RUB • %s", price, tf.Specs), 60)
		rows = append(rows, []models.InlineKeyboardButton{btn(label, fmt.Sprintf("buy:%d", tf.ID))})
	}
	rows = append(rows, []models.InlineKeyboardButton{btn("↩️ Назад", "back:catalog")})

	t.edit(ctx, cq, fmt.Sprintf("🖥️ <b>Тарифы — %s</b>\n\nВыберите конфигурацию сервера:", loc), inlineRows(rows...))
}

func (t *Bot) handleBackCatalog(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	t.toast(ctx, cq, "")
	locs, err := t.deps.Tariffs.Locations(ctx)
	if err != nil {
		return
	}
	t.edit(ctx, cq, "🌍 <b>Выберите страну для вашего сервера:</b>", locationKeyboard(locs))
}

// handleBuy shows the checkout screen: price with markup, the staged promo
// quote when one applies, and the available payment paths.
func (t *Bot) handleBuy(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	t.toast(ctx, cq, "")
	tariffID, ok := parseTrailingID(cq.Data, "buy:")
	if !ok {
		return
	}
	user, err := t.upsertFrom(ctx, &cq.From)
	if err != nil {
		return
	}
	tariff, err := t.deps.Tariffs.ByID(ctx, tariffID)
	if err != nil {
		t.toast(ctx, cq, "Тариф не найден")
		return
	}
	price := order.PriceWithMarkup(tariff.Price, t.cfg.PriceMarkupPercent)

	quote, err := t.deps.Promos.Quote(ctx, user.ID, price)
	if err != nil {
		t.logger.Error("promo quote failed", "user_id", user.ID, "error", err)
	}

	text := fmt.Sprintf(
		"🛒 <b>Оформление заказа</b>\n\n📦 <b>Тариф:</b> <code>#%d</code>\n💰 <b>Цена:</b> <code>%d RUB</code>\n",
		tariffID, price)

	var rows [][]models.InlineKeyboardButton
	switch {
	case quote != nil && quote.Eligible:
		text += fmt.Sprintf(
			"\n🎁 <b>Промокод:</b> <code>%s</code>\n💰 <b>Скидка:</b> %d%% (-%d RUB)\n💳 <b>Итоговая цена:</b> <code>%d RUB</code>\n",
			quote.Code, quote.Percent, quote.DiscountAmount, quote.FinalPrice)
		rows = append(rows, []models.InlineKeyboardButton{
			btn(fmt.Sprintf("💳 Оплатить со скидкой (%d RUB)", quote.FinalPrice), fmt.Sprintf("pay_promo:%d:%s", tariffID, quote.Code)),
		})
	case quote != nil:
		text += fmt.Sprintf(
			"\n🎁 <b>Промокод:</b> <code>%s</code>\n📊 Мин. сумма заказа: %d RUB\n❌ Сумма заказа меньше минимальной.\n",
			quote.Code, quote.MinAmount)
	}
	rows = append(rows,
		[]models.InlineKeyboardButton{btn("💳 Оплатить без промокода", fmt.Sprintf("pay:%d", tariffID))},
		[]models.InlineKeyboardButton{btn("🎁 Ввести промокод", fmt.Sprintf("promo:%d", tariffID))},
	)
	if user.BonusBalance > 0 {
		rows = append(rows, []models.InlineKeyboardButton{
			btn(fmt.Sprintf("💰 Использовать бонусы (%d RUB)", user.BonusBalance), fmt.Sprintf("bonus:%d", tariffID)),
		})
	}

	t.edit(ctx, cq, text, inlineRows(rows...))
}

func (t *Bot) handlePromoPrompt(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	t.toast(ctx, cq, "Введите промокод в следующем сообщении")
	t.edit(ctx, cq, "🎁 <b>Введите промокод</b>\n\nОтправьте промокод следующим сообщением.", nil)
}

func (t *Bot) handlePromoEntry(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	user, err := t.upsertFrom(ctx, msg.From)
	if err != nil {
		return
	}
	code, err := t.deps.Promos.Select(ctx, user.ID, msg.Text)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			t.send(ctx, msg.Chat.ID, "❌ <b>Промокод не найден</b>\n\nПроверьте написание или посмотрите раздел «Промокоды».", nil)
		} else {
			t.logger.Error("select promo failed", "error", err)
		}
		return
	}
	text := fmt.Sprintf("🎉 <b>Промокод найден!</b>\n\n🎁 <b>Код:</b> <code>%s</code>\n💰 <b>Скидка:</b> %d%%\n",
		code.Code, code.DiscountPercent)
	if code.MinAmount > 0 {
		text += fmt.Sprintf("📊 Минимальная сумма заказа: %d RUB\n", code.MinAmount)
	}
	text += "\n🛒 Перейдите в каталог и выберите тариф."
	t.send(ctx, msg.Chat.ID, text, nil)
}

func (t *Bot) handleClearPromo(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	user, err := t.upsertFrom(ctx, msg.From)
	if err != nil {
		return
	}
	if err := t.deps.Promos.Clear(ctx, user.ID); err != nil {
		t.logger.Error("clear promo failed", "error", err)
		return
	}
	t.send(ctx, msg.Chat.ID, "🗑️ <b>Промокод очищен!</b>\n\nМожно ввести новый промокод или купить без скидки.", nil)
}

// checkout carries the resolved pricing of one purchase attempt.
type checkout struct {
	tariffID  int64
	basePrice int64
	promoCode *string
	discount  int64
	final     int64
}

// issueInvoice creates the provider invoice and the created-status order,
// then renders the payment message. When invoicing fails the order is still
// recorded without an invoice reference so the admin path can settle it.
func (t *Bot) issueInvoice(ctx context.Context, cq *models.CallbackQuery, user *store.User, co checkout) {
	amount := t.deps.CryptoPay.RubToUSDT(ctx, co.final)
	var invoiceID *int64
	var payURL string

	invoice, err := t.deps.CryptoPay.CreateInvoice(ctx, "USDT", amount,
		fmt.Sprintf("Order for tariff #%d", co.tariffID),
		map[string]any{"tariffId": co.tariffID, "userId": user.ID})
	if err != nil {
		t.logger.Error("create invoice failed", "tariff_id", co.tariffID, "error", err)
		t.m.Errors.WithLabelValues("tg_invoice").Inc()
	} else {
		invoiceID = &invoice.InvoiceID
		payURL = invoice.PayURL
	}

	o, err := t.deps.Orders.Create(ctx, order.CreateParams{
		UserID:         user.ID,
		TariffID:       co.tariffID,
		InvoiceID:      invoiceID,
		PromoCode:      co.promoCode,
		DiscountAmount: co.discount,
		FinalPrice:     &co.final,
	})
	if err != nil {
		t.logger.Error("create order failed", "tariff_id", co.tariffID, "error", err)
		t.edit(ctx, cq, "❌ Не удалось создать заказ. Попробуйте позже.", nil)
		return
	}

	text := fmt.Sprintf(
		"🎉 <b>Счет успешно создан!</b>\n\n📦 <b>Тариф:</b> <code>#%d</code>\n💰 <b>Исходная цена:</b> <code>%d RUB</code>\n",
		co.tariffID, co.basePrice)
	if co.discount > 0 {
		if co.promoCode != nil {
			text += fmt.Sprintf("🎁 <b>Промокод:</b> <code>%s</code>\n", *co.promoCode)
		} else {
			text += fmt.Sprintf("🎁 <b>Использовано бонусов:</b> <code>%d RUB</code>\n", co.discount)
		}
		text += fmt.Sprintf("💸 <b>Скидка:</b> <code>%d RUB</code>\n💳 <b>Итоговая цена:</b> <code>%d RUB</code>\n", co.discount, co.final)
	}

	var rows [][]models.InlineKeyboardButton
	if invoiceID != nil {
		text += fmt.Sprintf("🔗 <b>Счет:</b> <code>%d</code>\n💵 <b>К оплате:</b> <code>~ %s USDT</code>\n\nНажмите кнопку ниже для перехода к оплате.",
			*invoiceID, amount.StringFixed(2))
		rows = append(rows, []models.InlineKeyboardButton{urlBtn("💳 Оплатить", payURL)})
	} else {
		text += "\n⚠️ Платежная система временно недоступна. Свяжитесь с поддержкой: " + t.cfg.SupportContact
	}
	rows = append(rows, []models.InlineKeyboardButton{btn("✅ Я оплатил", fmt.Sprintf("paid:%d", o.ID))})

	t.edit(ctx, cq, text, inlineRows(rows...))
}

func (t *Bot) handlePay(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	t.toast(ctx, cq, "")
	tariffID, ok := parseTrailingID(cq.Data, "pay:")
	if !ok {
		return
	}
	user, err := t.upsertFrom(ctx, &cq.From)
	if err != nil {
		return
	}
	tariff, err := t.deps.Tariffs.ByID(ctx, tariffID)
	if err != nil {
		t.toast(ctx, cq, "Тариф не найден")
		return
	}
	price := order.PriceWithMarkup(tariff.Price, t.cfg.PriceMarkupPercent)
	t.issueInvoice(ctx, cq, user, checkout{tariffID: tariffID, basePrice: price, final: price})
}

// handlePayWithPromo settles the discounted path. The usage slot is consumed
// before the invoice exists; if the code ran out between quote and click the
// purchase falls through to the full-price screen.
func (t *Bot) handlePayWithPromo(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	t.toast(ctx, cq, "")
	parts := strings.SplitN(cq.Data, ":", 3)
	if len(parts) != 3 {
		return
	}
	tariffID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return
	}
	wantCode := parts[2]

	user, err := t.upsertFrom(ctx, &cq.From)
	if err != nil {
		return
	}
	tariff, err := t.deps.Tariffs.ByID(ctx, tariffID)
	if err != nil {
		t.toast(ctx, cq, "Тариф не найден")
		return
	}
	price := order.PriceWithMarkup(tariff.Price, t.cfg.PriceMarkupPercent)

	quote, err := t.deps.Promos.Quote(ctx, user.ID, price)
	if err != nil || quote == nil || quote.Code != wantCode || !quote.Eligible {
		t.toast(ctx, cq, "Промокод не найден или недействителен")
		return
	}

	if err := t.deps.Promos.Redeem(ctx, user.ID, quote.Code); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			t.toast(ctx, cq, "Промокод больше недоступен")
		} else {
			t.logger.Error("redeem promo failed", "code", quote.Code, "error", err)
		}
		return
	}
	t.m.PromoRedemptions.Inc()

	code := quote.Code
	t.issueInvoice(ctx, cq, user, checkout{
		tariffID:  tariffID,
		basePrice: price,
		promoCode: &code,
		discount:  quote.DiscountAmount,
		final:     quote.FinalPrice,
	})
}

// handlePayWithBonus spends the bonus balance first, invoicing only the rest.
func (t *Bot) handlePayWithBonus(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	t.toast(ctx, cq, "")
	tariffID, ok := parseTrailingID(cq.Data, "bonus:")
	if !ok {
		return
	}
	user, err := t.upsertFrom(ctx, &cq.From)
	if err != nil {
		return
	}
	if user.BonusBalance <= 0 {
		t.toast(ctx, cq, "У вас нет бонусов для использования")
		return
	}
	tariff, err := t.deps.Tariffs.ByID(ctx, tariffID)
	if err != nil {
		t.toast(ctx, cq, "Тариф не найден")
		return
	}
	price := order.PriceWithMarkup(tariff.Price, t.cfg.PriceMarkupPercent)
	spend, final := order.BonusSplit(price, user.BonusBalance)

	if err := t.deps.Users.DebitBonus(ctx, user.ID, spend); err != nil {
		t.toast(ctx, cq, "Не удалось списать бонусы")
		return
	}

	t.issueInvoice(ctx, cq, user, checkout{
		tariffID:  tariffID,
		basePrice: price,
		discount:  spend,
		final:     final,
	})
}

var statusEmoji = map[order.Status]string{
	order.StatusCreated:   "⏳",
	order.StatusPaid:      "✅",
	order.StatusDelivered: "🎉",
}

func (t *Bot) handleMyOrders(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	user, err := t.upsertFrom(ctx, msg.From)
	if err != nil {
		return
	}
	orders, err := t.deps.Orders.ByUser(ctx, user.ID)
	if err != nil {
		t.logger.Error("list orders failed", "error", err)
		return
	}
	if len(orders) == 0 {
		t.send(ctx, msg.Chat.ID, "📦 <b>Мои заказы</b>\n\n😔 У вас пока нет заказов.\n🛒 Перейдите в каталог, чтобы сделать первый заказ!", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("📦 <b>Мои заказы</b>\n\n")
	for _, o := range orders {
		price := o.DisplayPrice(t.cfg.PriceMarkupPercent)
		fmt.Fprintf(&sb, "%s <b>Заказ #%d</b>\n📍 %s\n⚙️ %s\n💰 %d RUB\n📊 Статус: %s\n\n",
			statusEmoji[o.Status], o.Order.ID, o.Location, o.Specs, price, o.Status)
	}
	t.send(ctx, msg.Chat.ID, sb.String(), nil)
}

// handleUserPaid forwards the buyer's payment claim to the review channel.
func (t *Bot) handleUserPaid(ctx context.Context, _ *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	orderID, ok := parseTrailingID(cq.Data, "paid:")
	if !ok {
		return
	}
	user, err := t.upsertFrom(ctx, &cq.From)
	if err != nil {
		return
	}
	summary, err := t.deps.Orders.WithContext(ctx, orderID)
	if err != nil {
		t.toast(ctx, cq, "Заказ не найден")
		return
	}
	if summary.UserID != user.ID {
		t.toast(ctx, cq, "Это не ваш заказ")
		return
	}
	if t.cfg.LogChannelID == 0 {
		t.toast(ctx, cq, "✅ Заявка принята")
		return
	}

	invoiceRef := "—"
	if summary.InvoiceID != nil {
		invoiceRef = strconv.FormatInt(*summary.InvoiceID, 10)
	}
	text := fmt.Sprintf(
		"🧾 Новый заказ #%d\n👤 Пользователь: %s\n📍 Локация: %s\n⚙️ Характеристики: %s\n💰 Цена: %d RUB\n🧾 invoice_id: %s\n🔗 Пользователь утверждает, что оплатил",
		orderID, displayName(summary.Username, summary.TelegramID), summary.Location, summary.Specs,
		summary.DisplayPrice(t.cfg.PriceMarkupPercent), invoiceRef)
	t.send(ctx, t.cfg.LogChannelID, text, inlineRows([]models.InlineKeyboardButton{
		btn("✅ Оплатил", fmt.Sprintf("logpaid:%d", orderID)),
		btn("❌ Не оплатил", fmt.Sprintf("logunpaid:%d", orderID)),
	}))
	t.toast(ctx, cq, "✅ Заявка отправлена администратору")
}

func (t *Bot) handleProfile(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	user, err := t.upsertFrom(ctx, msg.From)
	if err != nil {
		return
	}
	orders, err := t.deps.Orders.ByUser(ctx, user.ID)
	if err != nil {
		return
	}
	var paid, delivered int
	for _, o := range orders {
		switch o.Status {
		case order.StatusPaid:
			paid++
		case order.StatusDelivered:
			delivered++
		}
	}
	created := len(orders) - paid - delivered

	refs, err := t.deps.Users.Referrals(ctx, user.ID)
	if err != nil {
		return
	}

	t.send(ctx, msg.Chat.ID, fmt.Sprintf(
		"👤 <b>Профиль пользователя</b>\n\n🆔 <b>ID:</b> <code>%d</code>\n👤 <b>Username:</b> %s\n\n"+
			"📊 <b>Статистика заказов:</b>\n⏳ Ожидают оплаты: <code>%d</code>\n✅ Оплачены: <code>%d</code>\n🎉 Выданы: <code>%d</code>\n📈 Всего: <code>%d</code>\n\n"+
			"🎁 <b>Бонусный баланс:</b> <code>%d</code> RUB\n👥 <b>Приглашено друзей:</b> <code>%d</code>",
		msg.From.ID, displayName(user.Username, user.TelegramID),
		created, paid, delivered, len(orders), user.BonusBalance, len(refs)), nil)
}

func (t *Bot) handlePromoList(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	codes, err := t.deps.Promos.ListUsable(ctx)
	if err != nil {
		t.logger.Error("list promos failed", "error", err)
		return
	}
	if len(codes) == 0 {
		t.send(ctx, msg.Chat.ID, "🎁 <b>Промокоды</b>\n\n😔 В данный момент нет активных промокодов.\n📢 Следите за обновлениями!", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("🎁 <b>Активные промокоды</b>\n\n")
	for _, c := range codes {
		remaining := "∞"
		if uses := c.Uses(); !uses.Unlimited {
			remaining = strconv.FormatInt(uses.Remaining, 10)
		}
		fmt.Fprintf(&sb, "💎 <b>Код:</b> <code>%s</code>\n💰 Скидка: %d%%\n📊 Мин. сумма: %d RUB\n🎯 Осталось использований: %s\n\n",
			c.Code, c.DiscountPercent, c.MinAmount, remaining)
	}
	sb.WriteString("💡 Используйте промокод при оформлении заказа.")
	t.send(ctx, msg.Chat.ID, sb.String(), nil)
}

func (t *Bot) handleReferral(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	user, err := t.upsertFrom(ctx, msg.From)
	if err != nil {
		return
	}
	refs, err := t.deps.Users.Referrals(ctx, user.ID)
	if err != nil {
		return
	}
	earned, err := t.deps.Users.ReferralEarnings(ctx, user.ID)
	if err != nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 <b>Реферальная система</b>\n\n🔗 <b>Ваша реферальная ссылка:</b>\n<code>https://t.me/%s?start=ref%d</code>\n\n",
		t.username, user.ID)
	fmt.Fprintf(&sb, "💰 <b>Заработано с рефералов:</b> <code>%d</code> RUB\n\n📊 <b>Приглашенные:</b>\n", earned)
	if len(refs) == 0 {
		sb.WriteString("😔 Пока никто не присоединился по вашей ссылке.\n")
	}
	for i, r := range refs {
		if i == 10 {
			fmt.Fprintf(&sb, "... и еще %d пользователей\n", len(refs)-10)
			break
		}
		fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, displayName(r.Username, r.TelegramID), r.CreatedAt.Format("02.01.2006"))
	}
	sb.WriteString("\n💡 Приглашайте друзей и получайте бонусы за каждый их заказ!")
	t.send(ctx, msg.Chat.ID, sb.String(), nil)
}

func (t *Bot) handleSupport(ctx context.Context, _ *bot.Bot, update *models.Update) {
	t.send(ctx, update.Message.Chat.ID, fmt.Sprintf(
		"🆘 <b>Поддержка</b>\n\n📞 Связь с администратором: %s\n💬 Опишите вашу проблему, ответим в кратчайшие сроки.",
		t.cfg.SupportContact), nil)
}

// parseTrailingID extracts the numeric id after a callback prefix, tolerating
// legacy trailing segments like "pay:7:0".
func parseTrailingID(data, prefix string) (int64, bool) {
	rest := strings.TrimPrefix(data, prefix)
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
