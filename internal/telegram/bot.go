package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/suspectuso/gpt-gateway/internal/config"
)

// parseMode applies to the fixed replies only. AI answers are cut into
// chunks at arbitrary points and go out as plain text.
const parseMode = models.ParseMode("Markdown")

// Bot wraps the telegram bot and implements the transport used by the
// message pipeline
type Bot struct {
	bot        *bot.Bot
	cfg        *config.Config
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a new telegram bot. Every update is passed to router.
func New(cfg *config.Config, router *Router, log *slog.Logger) (*Bot, error) {
	b := &Bot{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(router.Handle),
		bot.WithServerURL(cfg.TelegramBaseURL),
	}

	tgBot, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	b.bot = tgBot
	return b, nil
}

// Start starts the bot polling
func (b *Bot) Start(ctx context.Context) {
	b.bot.Start(ctx)
}

// SetCommands publishes the command menu
func (b *Bot) SetCommands(ctx context.Context) error {
	_, err := b.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "balance", Description: "Показать баланс"},
			{Command: "clean", Description: "Очистить контекст"},
			{Command: "buy", Description: "Пополнить баланс"},
		},
	})
	if err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

// --- Transport ---

// SendText sends a plain text message
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := b.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendPhoto uploads an image
func (b *Bot) SendPhoto(ctx context.Context, chatID int64, data []byte, filename string) error {
	_, err := b.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: chatID,
		Photo: &models.InputFileUpload{
			Filename: filename,
			Data:     bytes.NewReader(data),
		},
	})
	if err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// SendPhotoURL sends an image Telegram fetches by URL
func (b *Bot) SendPhotoURL(ctx context.Context, chatID int64, url string) error {
	_, err := b.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: chatID,
		Photo:  &models.InputFileString{Data: url},
	})
	if err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// SendTyping shows the "typing..." status in the chat
func (b *Bot) SendTyping(ctx context.Context, chatID int64) error {
	_, err := b.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	return err
}

// DownloadFile fetches the content of a file sent to the bot
func (b *Bot) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.bot.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.bot.FileDownloadLink(file), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("download error %d: %s", resp.StatusCode, string(data))
	}

	return data, nil
}

// --- Payments ---

// SendInvoice asks the user to top up the balance. The invoice payload
// carries the payer id back in the successful payment.
func (b *Bot) SendInvoice(ctx context.Context, chatID, userID int64) error {
	_, err := b.bot.SendInvoice(ctx, &bot.SendInvoiceParams{
		ChatID:        chatID,
		Title:         "Пополнение баланса",
		Description:   "Пополнение баланса бота",
		Payload:       strconv.FormatInt(userID, 10),
		ProviderToken: b.cfg.PaymentsToken,
		Currency:      "USD",
		Prices: []models.LabeledPrice{
			{Label: "Пополнение баланса", Amount: b.cfg.InvoiceAmount},
		},
		StartParameter: "add-balance",
	})
	if err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}
	return nil
}

// AnswerCallback removes the loading state of an inline button
func (b *Bot) AnswerCallback(ctx context.Context, queryID string) {
	_, err := b.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
	})
	if err != nil {
		b.log.Debug("answer callback", "error", err)
	}
}

// ApprovePreCheckout confirms a pre-checkout query
func (b *Bot) ApprovePreCheckout(ctx context.Context, queryID string) error {
	_, err := b.bot.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: queryID,
		OK:                 true,
	})
	if err != nil {
		return fmt.Errorf("answer pre-checkout: %w", err)
	}
	return nil
}

// sendMessage sends a fixed reply, logging instead of returning failures
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseMode,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	if _, err := b.bot.SendMessage(ctx, params); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}
