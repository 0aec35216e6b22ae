package telegram

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// EventKind classifies inbound updates
type EventKind int

const (
	KindUnknown EventKind = iota
	KindCommand
	KindMessage
	KindPreCheckout
	KindPayment
	KindCallback
)

func (k EventKind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindMessage:
		return "message"
	case KindPreCheckout:
		return "pre_checkout"
	case KindPayment:
		return "payment"
	case KindCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// HandlerFunc handles one update. Returned errors are logged by the router.
type HandlerFunc func(ctx context.Context, update *models.Update) error

// Router maps update kinds and command names to handlers. It is filled
// before polling starts and only read afterwards.
type Router struct {
	commands map[string]HandlerFunc
	handlers map[EventKind]HandlerFunc
	log      *slog.Logger
}

// NewRouter creates an empty router
func NewRouter(log *slog.Logger) *Router {
	return &Router{
		commands: make(map[string]HandlerFunc),
		handlers: make(map[EventKind]HandlerFunc),
		log:      log,
	}
}

// Command registers a handler for "/name"
func (r *Router) Command(name string, h HandlerFunc) {
	r.commands[name] = h
}

// On registers a handler for an update kind
func (r *Router) On(kind EventKind, h HandlerFunc) {
	r.handlers[kind] = h
}

// Handle is the bot's default handler
func (r *Router) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	h, kind := r.match(update)
	if h == nil {
		return
	}

	if err := h(ctx, update); err != nil {
		r.log.Error("handle update", "update_id", update.ID, "kind", kind, "error", err)
	}
}

func (r *Router) match(update *models.Update) (HandlerFunc, EventKind) {
	kind, command := Classify(update)
	if kind == KindCommand {
		if h, ok := r.commands[command]; ok {
			return h, kind
		}
		// unknown commands go to the AI like any other text
		kind = KindMessage
	}
	return r.handlers[kind], kind
}

// Classify returns the kind of an update and, for commands, the command
// name without the leading slash and bot mention.
func Classify(update *models.Update) (EventKind, string) {
	switch {
	case update.PreCheckoutQuery != nil:
		return KindPreCheckout, ""
	case update.CallbackQuery != nil:
		return KindCallback, ""
	case update.Message == nil:
		return KindUnknown, ""
	case update.Message.SuccessfulPayment != nil:
		return KindPayment, ""
	}

	text := update.Message.Text
	if !strings.HasPrefix(text, "/") {
		return KindMessage, ""
	}

	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return KindMessage, ""
	}

	name, _, _ := strings.Cut(fields[0], "@")
	if name == "" {
		return KindMessage, ""
	}
	return KindCommand, name
}
