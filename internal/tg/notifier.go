package tg

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"vds-shop-bot/internal/config"
	"vds-shop-bot/internal/metrics"
	"vds-shop-bot/internal/order"
	"vds-shop-bot/internal/store"
)

// Notifier delivers reconciliation outcomes to buyers and admins. It is
// created before the bot client exists (the reconciliation coordinator needs
// it first) and bound to the client afterwards; until then every dispatch is
// a logged no-op.
type Notifier struct {
	cfg    *config.Config
	logger *slog.Logger
	m      *metrics.Metrics
	users  *store.Users
	api    atomic.Pointer[bot.Bot]
}

// NewNotifier returns an unbound notifier.
func NewNotifier(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, users *store.Users) *Notifier {
	return &Notifier{cfg: cfg, logger: logger, m: m, users: users}
}

// Bind attaches the Telegram client the notifier sends through.
func (n *Notifier) Bind(api *bot.Bot) {
	n.api.Store(api)
}

func (n *Notifier) notify(ctx context.Context, chatID int64, text string) {
	api := n.api.Load()
	if api == nil {
		n.logger.Warn("notifier not bound, dropping message", "chat_id", chatID)
		return
	}
	_, err := api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		n.logger.Error("notification failed", "chat_id", chatID, "error", err)
		n.m.Errors.WithLabelValues("notifier").Inc()
		return
	}
	n.m.TelegramOutgoing.WithLabelValues("notification").Inc()
}

func (n *Notifier) orderBlock(s *order.Summary) string {
	return fmt.Sprintf("%s • %s • %d RUB", s.Location, s.Specs, s.DisplayPrice(n.cfg.PriceMarkupPercent))
}

// PaymentConfirmed tells the buyer the order is settled and how to get it
// delivered.
func (n *Notifier) PaymentConfirmed(ctx context.Context, s *order.Summary) {
	n.notify(ctx, s.TelegramID, fmt.Sprintf(
		"<b>Ваш заказ №%d</b>\nСтатус: <b>Оплачен</b>\n%s\n\nПожалуйста, перешлите сообщение от CryptoBot с подтверждением оплаты в %s для выдачи заказа.",
		s.Order.ID, n.orderBlock(s), n.cfg.SupportContact))
}

// PaymentReverted tells the buyer the confirmation was withdrawn.
func (n *Notifier) PaymentReverted(ctx context.Context, s *order.Summary) {
	n.notify(ctx, s.TelegramID, fmt.Sprintf(
		"<b>Ваш заказ №%d</b>\nСтатус: <b>Не оплачен</b>\n%s\n\nЕсли оплачивали, перешлите подтверждение в %s.",
		s.Order.ID, n.orderBlock(s), n.cfg.SupportContact))
}

func (n *Notifier) OrderDelivered(ctx context.Context, s *order.Summary) {
	n.notify(ctx, s.TelegramID, fmt.Sprintf(
		"Ваш заказ №%d: статус <b>Выдан</b>.", s.Order.ID))
}

// AdminsPaymentReceived alerts every configured admin about a settled
// webhook confirmation awaiting delivery.
func (n *Notifier) AdminsPaymentReceived(ctx context.Context, s *order.Summary) {
	text := fmt.Sprintf(
		"✅ Оплачен заказ #%d\n👤 %s\n%s",
		s.Order.ID, displayName(s.Username, s.TelegramID), n.orderBlock(s))
	for _, adminID := range n.cfg.AdminIDs {
		n.notify(ctx, adminID, text)
	}
}

// ReferralRewardCredited tells the referrer about the credited bonus. The
// coordinator passes the internal user id, so it is resolved to a chat here.
func (n *Notifier) ReferralRewardCredited(ctx context.Context, referrerID int64, s *order.Summary, amount int64) {
	ref, err := n.users.ByID(ctx, referrerID)
	if err != nil {
		n.logger.Warn("referrer lookup failed", "referrer_id", referrerID, "error", err)
		return
	}
	n.notify(ctx, ref.TelegramID, fmt.Sprintf(
		"🎉 <b>Реферальный бонус!</b>\n\n👤 Ваш реферал %s оплатил заказ #%d\n💰 Начислено бонусов: <code>%d RUB</code>\n\n💡 Бонусы можно использовать для оплаты заказов!",
		displayName(s.Username, s.TelegramID), s.Order.ID, amount))
}
