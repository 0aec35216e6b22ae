// Package pipeline answers ordinary chat messages: it gates the sender,
// extracts the text, asks the AI session and delivers the reply while a
// typing indicator runs alongside.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/suspectuso/gpt-gateway/internal/response"
	"github.com/suspectuso/gpt-gateway/internal/storage"
)

// AuthMsg is sent to senders that have not redeemed an invite
const AuthMsg = "Требуется авторизация"

// MessagesCounter counts authorized, content-bearing messages
const MessagesCounter = "messages"

// Message is an inbound chat message
type Message struct {
	SenderID    int64 // zero when the sender is unknown
	ChatID      int64
	Text        string
	VoiceFileID string
}

func (m Message) hasContent() bool {
	return m.Text != "" || m.VoiceFileID != ""
}

// Authorizer resolves the account of a sender. A nil user means the sender
// has not redeemed an invite.
type Authorizer interface {
	Authorize(ctx context.Context, userID int64) (*storage.User, error)
}

// Transport is the messaging platform
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Transcriber converts voice recordings to text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// ChatState is an AI session of one user in one chat
type ChatState interface {
	Send(ctx context.Context, text string) (response.Reply, error)
}

// ChatOpener acquires the AI session for a user in a chat
type ChatOpener func(ctx context.Context, chatID int64, user *storage.User) (ChatState, error)

// Indicator shows the typing status until the returned stop is called
type Indicator interface {
	Start(ctx context.Context, chatID int64) (stop func())
}

// Dispatcher delivers replies
type Dispatcher interface {
	Dispatch(ctx context.Context, chatID int64, r response.Reply) error
}

// Counter is a fire-and-forget telemetry sink
type Counter interface {
	Incr(ctx context.Context, name string)
}

// Deps are the collaborators of a Pipeline
type Deps struct {
	Auth        Authorizer
	Transport   Transport
	Transcriber Transcriber
	OpenChat    ChatOpener
	Indicator   Indicator
	Dispatcher  Dispatcher
	Telemetry   Counter
}

// Pipeline handles chat messages one at a time per call. Calls for
// different chats may run concurrently.
type Pipeline struct {
	deps Deps
	log  *slog.Logger
}

// New creates a new Pipeline
func New(deps Deps, log *slog.Logger) *Pipeline {
	return &Pipeline{
		deps: deps,
		log:  log,
	}
}

// Handle answers one message. Unknown senders get AuthMsg and nothing else
// happens. Upstream failures are returned and no reply is sent.
func (p *Pipeline) Handle(ctx context.Context, msg Message) error {
	if msg.SenderID == 0 || !msg.hasContent() {
		return nil
	}

	user, err := p.deps.Auth.Authorize(ctx, msg.SenderID)
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	if user == nil {
		p.log.Info("unauthorized message", "user_id", msg.SenderID, "chat_id", msg.ChatID)
		return p.deps.Transport.SendText(ctx, msg.ChatID, AuthMsg)
	}

	p.deps.Telemetry.Incr(ctx, MessagesCounter)

	reply, err := p.answer(ctx, msg, user)
	if err != nil {
		return err
	}

	return p.deps.Dispatcher.Dispatch(ctx, msg.ChatID, reply)
}

// answer runs with the typing indicator on. The indicator is stopped and
// joined before answer returns, whatever the outcome.
func (p *Pipeline) answer(ctx context.Context, msg Message, user *storage.User) (response.Reply, error) {
	stop := p.deps.Indicator.Start(ctx, msg.ChatID)
	defer stop()

	text, err := p.content(ctx, msg)
	if err != nil {
		return response.Reply{}, err
	}

	state, err := p.deps.OpenChat(ctx, msg.ChatID, user)
	if err != nil {
		return response.Reply{}, fmt.Errorf("open chat: %w", err)
	}

	reply, err := state.Send(ctx, text)
	if err != nil {
		return response.Reply{}, fmt.Errorf("send to ai: %w", err)
	}

	p.log.Debug("ai replied", "user_id", user.ID, "chat_id", msg.ChatID, "kind", reply.Kind)
	return reply, nil
}

func (p *Pipeline) content(ctx context.Context, msg Message) (string, error) {
	if msg.VoiceFileID == "" {
		return msg.Text, nil
	}

	audio, err := p.deps.Transport.DownloadFile(ctx, msg.VoiceFileID)
	if err != nil {
		return "", fmt.Errorf("download voice: %w", err)
	}

	text, err := p.deps.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", err
	}
	return text, nil
}
