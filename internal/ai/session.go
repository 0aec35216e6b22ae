// Package ai holds per-chat AI sessions backed by an OpenAI-compatible API.
package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/suspectuso/gpt-gateway/internal/response"
	"github.com/suspectuso/gpt-gateway/internal/storage"
)

const (
	systemPrompt = "You are a helpful assistant in a Telegram chat. " +
		"Answer in the language of the user. Write plain text without Markdown markup."

	imageTool = "generate_image"

	roleUser      = "user"
	roleAssistant = "assistant"
)

var ErrEmptyCompletion = errors.New("completion has no choices")

// HistoryStore keeps conversation turns per chat
type HistoryStore interface {
	RecentMessages(ctx context.Context, chatID int64, limit int) ([]storage.ChatMessage, error)
	AppendMessages(ctx context.Context, msgs ...storage.ChatMessage) error
}

// Biller charges usage to user wallets
type Biller interface {
	Credit(ctx context.Context, userID, amount int64) error
}

// Options tune models and pricing
type Options struct {
	Model        string
	ImageModel   string
	ImageFormat  string // openai.CreateImageResponseFormatB64JSON or ...URL
	HistoryLimit int

	// micro-units
	PricePer1KTokens int64
	PricePerImage    int64
}

// Sessions hands out chat states
type Sessions struct {
	client  Client
	history HistoryStore
	biller  Biller
	opts    Options
	log     *slog.Logger
}

// NewSessions creates a new Sessions
func NewSessions(client Client, history HistoryStore, biller Biller, opts Options, log *slog.Logger) *Sessions {
	if opts.ImageFormat == "" {
		opts.ImageFormat = openai.CreateImageResponseFormatB64JSON
	}
	return &Sessions{
		client:  client,
		history: history,
		biller:  biller,
		opts:    opts,
		log:     log,
	}
}

// ChatState is the conversation of one user in one chat
type ChatState struct {
	sessions *Sessions
	chatID   int64
	userID   int64
	history  []openai.ChatCompletionMessage
}

// ChatState loads the recent history of the chat for the user
func (s *Sessions) ChatState(ctx context.Context, chatID int64, user *storage.User) (*ChatState, error) {
	msgs, err := s.history.RecentMessages(ctx, chatID, s.opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	history := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		if m.Role == roleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		history = append(history, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	return &ChatState{
		sessions: s,
		chatID:   chatID,
		userID:   user.ID,
		history:  history,
	}, nil
}

// Send sends text to the model and returns its answer, either text or an
// image when the model asks for one.
func (cs *ChatState) Send(ctx context.Context, text string) (response.Reply, error) {
	s := cs.sessions

	messages := make([]openai.ChatCompletionMessage, 0, len(cs.history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	messages = append(messages, cs.history...)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.opts.Model,
		Messages: messages,
		Tools:    []openai.Tool{imageToolDefinition()},
	})
	if err != nil {
		return response.Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	s.charge(ctx, cs.userID, int64(resp.Usage.TotalTokens)*s.opts.PricePer1KTokens/1000)

	if len(resp.Choices) == 0 {
		return response.Reply{}, ErrEmptyCompletion
	}
	msg := resp.Choices[0].Message

	reply := response.TextReply(msg.Content)
	record := msg.Content
	if prompt, ok := imagePrompt(msg); ok {
		reply, err = cs.generateImage(ctx, prompt)
		if err != nil {
			return response.Reply{}, err
		}
		record = "[image] " + prompt
	}

	turns := []storage.ChatMessage{
		{ChatID: cs.chatID, UserID: cs.userID, Role: roleUser, Content: text},
		{ChatID: cs.chatID, UserID: cs.userID, Role: roleAssistant, Content: record},
	}
	if err := s.history.AppendMessages(ctx, turns...); err != nil {
		return response.Reply{}, fmt.Errorf("save history: %w", err)
	}
	cs.history = append(cs.history,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: record},
	)

	return reply, nil
}

func (cs *ChatState) generateImage(ctx context.Context, prompt string) (response.Reply, error) {
	s := cs.sessions

	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          s.opts.ImageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: s.opts.ImageFormat,
	})
	if err != nil {
		return response.Reply{}, fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 {
		return response.Reply{}, errors.New("create image: empty response")
	}
	s.charge(ctx, cs.userID, s.opts.PricePerImage)

	data := resp.Data[0]
	if s.opts.ImageFormat == openai.CreateImageResponseFormatURL {
		return response.ImageURLReply(data.URL), nil
	}

	img, err := base64.StdEncoding.DecodeString(data.B64JSON)
	if err != nil {
		return response.Reply{}, fmt.Errorf("decode image: %w", err)
	}
	return response.ImageReply(img), nil
}

// charge debits usage. The answer is already paid for upstream, so a failed
// debit is logged instead of failing the reply.
func (s *Sessions) charge(ctx context.Context, userID, cost int64) {
	if cost <= 0 {
		return
	}
	if err := s.biller.Credit(ctx, userID, -cost); err != nil {
		s.log.Error("debit usage", "user_id", userID, "cost", cost, "error", err)
	}
}

func imageToolDefinition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        imageTool,
			Description: "Draw a picture when the user asks for an image",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"prompt": {
						Type:        jsonschema.String,
						Description: "Detailed description of the picture in English",
					},
				},
				Required: []string{"prompt"},
			},
		},
	}
}

func imagePrompt(msg openai.ChatCompletionMessage) (string, bool) {
	for _, call := range msg.ToolCalls {
		if call.Function.Name != imageTool {
			continue
		}

		var args struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || args.Prompt == "" {
			continue
		}
		return args.Prompt, true
	}
	return "", false
}
