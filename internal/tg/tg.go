// Package tg is the Telegram transport: it maps incoming updates onto the
// catalog, order and promo services and renders their results back to chats.
package tg

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"vds-shop-bot/internal/config"
	"vds-shop-bot/internal/cryptopay"
	"vds-shop-bot/internal/metrics"
	"vds-shop-bot/internal/order"
	"vds-shop-bot/internal/promo"
	"vds-shop-bot/internal/recon"
	"vds-shop-bot/internal/store"
)

// Deps are the services the transport dispatches into.
type Deps struct {
	Users     *store.Users
	Tariffs   *store.Tariffs
	Settings  *store.Settings
	Orders    *order.Machine
	Promos    *promo.Ledger
	Recon     *recon.Coordinator
	CryptoPay *cryptopay.Client
}

// Bot wraps the Telegram client with handler state.
type Bot struct {
	api    *bot.Bot
	cfg    *config.Config
	logger *slog.Logger
	m      *metrics.Metrics
	deps   Deps

	// username backs the referral deep link; filled in Run from GetMe.
	username string
}

// New builds the client and registers every handler. The bot does not poll
// until Run.
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, deps Deps) (*Bot, error) {
	t := &Bot{cfg: cfg, logger: logger, m: m, deps: deps}

	api, err := bot.New(cfg.TelegramToken, bot.WithWorkers(3))
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}
	t.api = api
	t.register()
	return t, nil
}

// API exposes the underlying client for the notifier.
func (t *Bot) API() *bot.Bot { return t.api }

func (t *Bot) register() {
	b := t.api

	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, t.counted("start", t.handleStart))

	b.RegisterHandler(bot.HandlerTypeMessageText, menuCatalog, bot.MatchTypeExact, t.counted("catalog", t.handleCatalog))
	b.RegisterHandler(bot.HandlerTypeMessageText, menuMyOrders, bot.MatchTypeExact, t.counted("my_orders", t.handleMyOrders))
	b.RegisterHandler(bot.HandlerTypeMessageText, menuProfile, bot.MatchTypeExact, t.counted("profile", t.handleProfile))
	b.RegisterHandler(bot.HandlerTypeMessageText, menuPromos, bot.MatchTypeExact, t.counted("promos", t.handlePromoList))
	b.RegisterHandler(bot.HandlerTypeMessageText, menuClearPromo, bot.MatchTypeExact, t.counted("clear_promo", t.handleClearPromo))
	b.RegisterHandler(bot.HandlerTypeMessageText, menuReferral, bot.MatchTypeExact, t.counted("referral", t.handleReferral))
	b.RegisterHandler(bot.HandlerTypeMessageText, menuSupport, bot.MatchTypeExact, t.counted("support", t.handleSupport))

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "loc:", bot.MatchTypePrefix, t.counted("cb_location", t.handleLocation))
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "back:catalog", bot.MatchTypeExact, t.counted("cb_back", t.handleBackCatalog))
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "buy:", bot.MatchTypePrefix, t.counted("cb_buy", t.handleBuy))
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "promo:", bot.MatchTypePrefix, t.counted("cb_promo_prompt", t.handlePromoPrompt))
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "bonus:", bot.MatchTypePrefix, t.counted("cb_bonus", t.handlePayWithBonus))
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "pay_promo:", bot.MatchTypePrefix, t.counted("cb_pay_promo", t.handlePayWithPromo))
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "pay:", bot.MatchTypePrefix, t.counted("cb_pay", t.handlePay))
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "paid:", bot.MatchTypePrefix, t.counted("cb_paid", t.handleUserPaid))

	// Review buttons attached to the log-channel message.
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "logpaid:", bot.MatchTypePrefix, t.counted("cb_log_paid", t.handleLogPaid), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "logunpaid:", bot.MatchTypePrefix, t.counted("cb_log_unpaid", t.handleLogUnpaid), t.requireAdmin)

	b.RegisterHandler(bot.HandlerTypeMessageText, "/admin", bot.MatchTypeExact, t.counted("admin_panel", t.handleAdminPanel), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "admin:paid", bot.MatchTypeExact, t.counted("cb_admin_paid", t.handleAdminPaid), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "admin:all", bot.MatchTypeExact, t.counted("cb_admin_all", t.handleAdminAll), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "admin:stats", bot.MatchTypeExact, t.counted("cb_admin_stats", t.handleAdminStats), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "setpaid:", bot.MatchTypePrefix, t.counted("cb_set_paid", t.handleSetPaidButton), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "setdel:", bot.MatchTypePrefix, t.counted("cb_set_delivered", t.handleSetDeliveredButton), t.requireAdmin)

	b.RegisterHandler(bot.HandlerTypeMessageText, "/orders_paid", bot.MatchTypePrefix, t.counted("orders_paid", t.handleOrdersPaid), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/set_paid", bot.MatchTypePrefix, t.counted("set_paid", t.handleSetPaid), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/set_delivered", bot.MatchTypePrefix, t.counted("set_delivered", t.handleSetDelivered), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/add_promo", bot.MatchTypePrefix, t.counted("add_promo", t.handleAddPromo), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/del_promo", bot.MatchTypePrefix, t.counted("del_promo", t.handleDelPromo), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/list_promos", bot.MatchTypePrefix, t.counted("list_promos", t.handleListPromos), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/set_ref_reward", bot.MatchTypePrefix, t.counted("set_ref_reward", t.handleSetRefReward), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/ref_stats", bot.MatchTypePrefix, t.counted("ref_stats", t.handleRefStats), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/seed", bot.MatchTypeExact, t.counted("seed", t.handleSeed), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/add_server", bot.MatchTypePrefix, t.counted("add_server", t.handleAddServer), t.requireAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/check", bot.MatchTypePrefix, t.counted("check_invoice", t.handleCheckInvoice), t.requireAdmin)

	// Bare uppercase text is treated as a promo code attempt. Registered last
	// so commands and menu buttons keep precedence.
	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil && looksLikePromoCode(update.Message.Text)
	}, t.counted("promo_entry", t.handlePromoEntry))
}

// Run resolves the bot identity, publishes the command menu and polls for
// updates until the context is cancelled.
func (t *Bot) Run(ctx context.Context) error {
	me, err := t.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("get me: %w", err)
	}
	t.username = me.Username
	t.logger.Info("telegram bot ready", "username", me.Username)

	if _, err := t.api.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "start", Description: "Главное меню"},
		},
	}); err != nil {
		t.logger.Warn("set commands failed", "error", err)
	}

	t.api.Start(ctx)
	return nil
}

// counted wraps a handler with the per-kind update counter.
func (t *Bot) counted(kind string, next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		t.m.TelegramUpdates.WithLabelValues(kind).Inc()
		next(ctx, b, update)
	}
}

// requireAdmin drops updates from anyone outside the configured admin list.
func (t *Bot) requireAdmin(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		var from int64
		switch {
		case update.Message != nil:
			from = update.Message.From.ID
		case update.CallbackQuery != nil:
			from = update.CallbackQuery.From.ID
		default:
			return
		}
		if !t.cfg.IsAdmin(from) {
			if update.Message != nil {
				t.send(ctx, update.Message.Chat.ID, "Недостаточно прав.", nil)
			} else {
				t.toast(ctx, update.CallbackQuery, "Нет прав")
			}
			return
		}
		next(ctx, b, update)
	}
}

func (t *Bot) send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) {
	_, err := t.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               text,
		ParseMode:          models.ParseModeHTML,
		ReplyMarkup:        markup,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	})
	if err != nil {
		t.logger.Error("send message failed", "chat_id", chatID, "error", err)
		t.m.Errors.WithLabelValues("tg_send").Inc()
		return
	}
	t.m.TelegramOutgoing.WithLabelValues("message").Inc()
}

// edit rewrites the message the callback button lives on.
func (t *Bot) edit(ctx context.Context, cq *models.CallbackQuery, text string, markup models.ReplyMarkup) {
	msg := cq.Message.Message
	if msg == nil {
		return
	}
	_, err := t.api.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		t.logger.Error("edit message failed", "chat_id", msg.Chat.ID, "error", err)
		t.m.Errors.WithLabelValues("tg_edit").Inc()
		return
	}
	t.m.TelegramOutgoing.WithLabelValues("edit").Inc()
}

func (t *Bot) toast(ctx context.Context, cq *models.CallbackQuery, text string) {
	if _, err := t.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            text,
	}); err != nil {
		t.logger.Warn("answer callback failed", "error", err)
	}
}

// looksLikePromoCode reports whether free text is plausibly a promo code:
// at least 3 characters, no command prefix, contains letters and none of
// them lowercase.
func looksLikePromoCode(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < 3 || strings.HasPrefix(text, "/") {
		return false
	}
	hasUpper := false
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r == ' ':
			return false
		}
	}
	return hasUpper
}
