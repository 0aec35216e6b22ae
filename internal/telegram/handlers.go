package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/suspectuso/gpt-gateway/internal/auth"
	"github.com/suspectuso/gpt-gateway/internal/ledger"
	"github.com/suspectuso/gpt-gateway/internal/pipeline"
)

// PaymentsCounter counts credited payments
const PaymentsCounter = "payments"

var errNoSender = errors.New("update has no sender")

// HistoryCleaner drops the AI context of a chat
type HistoryCleaner interface {
	CleanChat(ctx context.Context, chatID int64) error
}

// Handlers answers commands and payments and feeds other messages to the
// pipeline
type Handlers struct {
	bot       *Bot
	gate      *auth.Gate
	ledger    *ledger.Ledger
	history   HistoryCleaner
	pipeline  *pipeline.Pipeline
	telemetry pipeline.Counter
	log       *slog.Logger
}

// NewHandlers creates the update handlers
func NewHandlers(b *Bot, gate *auth.Gate, l *ledger.Ledger, history HistoryCleaner, p *pipeline.Pipeline, telemetry pipeline.Counter, log *slog.Logger) *Handlers {
	return &Handlers{
		bot:       b,
		gate:      gate,
		ledger:    l,
		history:   history,
		pipeline:  p,
		telemetry: telemetry,
		log:       log,
	}
}

// Register wires the handlers into the router
func (h *Handlers) Register(r *Router) {
	r.Command("start", h.startHandler)
	r.Command("clean", h.cleanHandler)
	r.Command("balance", h.balanceHandler)
	r.Command("buy", h.buyHandler)

	r.On(KindCallback, h.callbackHandler)
	r.On(KindPreCheckout, h.preCheckoutHandler)
	r.On(KindPayment, h.paymentHandler)
	r.On(KindMessage, h.messageHandler)
}

// --- Handlers ---

func (h *Handlers) startHandler(ctx context.Context, update *models.Update) error {
	msg := update.Message
	if msg.From == nil {
		return nil
	}

	_, code, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")
	code = strings.TrimSpace(code)

	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	out, err := h.gate.Register(ctx, msg.From.ID, msg.Chat.ID, code, name, msg.From.Username)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	h.log.Info("start", "user_id", msg.From.ID, "outcome", out)
	h.bot.sendMessage(ctx, msg.Chat.ID, registerReply(out), nil)
	return nil
}

func (h *Handlers) cleanHandler(ctx context.Context, update *models.Update) error {
	chatID := update.Message.Chat.ID
	if err := h.history.CleanChat(ctx, chatID); err != nil {
		return fmt.Errorf("clean chat: %w", err)
	}

	h.bot.sendMessage(ctx, chatID, cleanedMsg, nil)
	return nil
}

func (h *Handlers) balanceHandler(ctx context.Context, update *models.Update) error {
	msg := update.Message
	if msg.From == nil {
		return errNoSender
	}

	balance, err := h.ledger.Balance(ctx, msg.From.ID)
	if err != nil {
		return err
	}

	h.bot.sendMessage(ctx, msg.Chat.ID, balanceReply(balance), balanceKeyboard())
	return nil
}

func (h *Handlers) buyHandler(ctx context.Context, update *models.Update) error {
	msg := update.Message
	if msg.From == nil {
		return errNoSender
	}
	return h.buy(ctx, msg.Chat.ID, msg.From.ID)
}

func (h *Handlers) buy(ctx context.Context, chatID, userID int64) error {
	if h.bot.cfg.PaymentsToken == "" {
		h.log.Warn("buy requested but PAYMENTS_TOKEN is not set", "user_id", userID)
		h.bot.sendMessage(ctx, chatID, paymentsOffMsg, nil)
		return nil
	}

	return h.bot.SendInvoice(ctx, chatID, userID)
}

func (h *Handlers) callbackHandler(ctx context.Context, update *models.Update) error {
	cb := update.CallbackQuery

	// Answer callback to remove loading state
	h.bot.AnswerCallback(ctx, cb.ID)

	switch cb.Data {
	case buyCallback:
		// buttons live in private chats, where the chat id is the user id
		return h.buy(ctx, cb.From.ID, cb.From.ID)
	default:
		h.log.Warn("unknown callback", "data", cb.Data, "user_id", cb.From.ID)
		return nil
	}
}

func (h *Handlers) preCheckoutHandler(ctx context.Context, update *models.Update) error {
	return h.bot.ApprovePreCheckout(ctx, update.PreCheckoutQuery.ID)
}

func (h *Handlers) paymentHandler(ctx context.Context, update *models.Update) error {
	msg := update.Message
	payment := msg.SuccessfulPayment

	userID, err := strconv.ParseInt(payment.InvoicePayload, 10, 64)
	if err != nil {
		return fmt.Errorf("invoice payload %q: %w", payment.InvoicePayload, err)
	}

	credited, err := h.ledger.CreditPayment(ctx, payment.TelegramPaymentChargeID, userID, payment.TotalAmount)
	if err != nil {
		return err
	}
	if !credited {
		return nil
	}

	h.telemetry.Incr(ctx, PaymentsCounter)
	h.bot.sendMessage(ctx, msg.Chat.ID, paymentReply(payment.TotalAmount), nil)
	return nil
}

func (h *Handlers) messageHandler(ctx context.Context, update *models.Update) error {
	return h.pipeline.Handle(ctx, toPipelineMessage(update.Message))
}

func toPipelineMessage(msg *models.Message) pipeline.Message {
	m := pipeline.Message{
		ChatID: msg.Chat.ID,
		Text:   msg.Text,
	}
	if msg.From != nil {
		m.SenderID = msg.From.ID
	}
	if msg.Voice != nil {
		m.VoiceFileID = msg.Voice.FileID
	}
	return m
}
