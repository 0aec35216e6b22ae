package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suspectuso/gpt-gateway/internal/response"
	"github.com/suspectuso/gpt-gateway/internal/storage"
	"github.com/suspectuso/gpt-gateway/internal/typing"
)

type fakeTransport struct {
	mu          sync.Mutex
	texts       []string
	photos      int
	typing      int
	files       map[string][]byte
	downloadErr error
}

func (f *fakeTransport) SendText(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) SendPhoto(ctx context.Context, chatID int64, data []byte, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos++
	return nil
}

func (f *fakeTransport) SendPhotoURL(ctx context.Context, chatID int64, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos++
	return nil
}

func (f *fakeTransport) SendTyping(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

func (f *fakeTransport) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.files[fileID], nil
}

func (f *fakeTransport) typingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.typing
}

func (f *fakeTransport) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeUsers struct {
	users map[int64]*storage.User
	err   error
}

func (f *fakeUsers) Authorize(ctx context.Context, userID int64) (*storage.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[userID], nil
}

type fakeTranscriber struct {
	text string
	err  error
	got  []byte
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	f.got = audio
	return f.text, f.err
}

type fakeChat struct {
	mu      sync.Mutex
	opened  []int64
	sent    []string
	reply   response.Reply
	openErr error
	sendErr error
	delay   time.Duration
}

func (f *fakeChat) open(ctx context.Context, chatID int64, user *storage.User) (ChatState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, user.ID)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeChat) Send(ctx context.Context, text string) (response.Reply, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.reply, f.sendErr
}

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *fakeCounter) Incr(ctx context.Context, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[name]++
}

type env struct {
	transport   *fakeTransport
	users       *fakeUsers
	transcriber *fakeTranscriber
	chat        *fakeChat
	counter     *fakeCounter
	pipeline    *Pipeline
}

func newEnv() *env {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := &env{
		transport:   &fakeTransport{files: map[string][]byte{"voice-1": []byte("OggS")}},
		users:       &fakeUsers{users: map[int64]*storage.User{1: {ID: 1, ChatID: 10, Name: "Ann"}}},
		transcriber: &fakeTranscriber{text: "transcribed"},
		chat:        &fakeChat{reply: response.TextReply("answer")},
		counter:     &fakeCounter{},
	}
	e.pipeline = New(Deps{
		Auth:        e.users,
		Transport:   e.transport,
		Transcriber: e.transcriber,
		OpenChat:    e.chat.open,
		Indicator:   typing.New(e.transport, 2*time.Millisecond, log),
		Dispatcher:  response.NewDispatcher(e.transport),
		Telemetry:   e.counter,
	}, log)
	return e
}

// assertTypingStopped checks that no typing action is emitted after Handle
// returned.
func (e *env) assertTypingStopped(t *testing.T) {
	t.Helper()
	before := e.transport.typingCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, e.transport.typingCount())
}

func TestHandleText(t *testing.T) {
	e := newEnv()
	e.chat.delay = 10 * time.Millisecond

	err := e.pipeline.Handle(context.Background(), Message{SenderID: 1, ChatID: 10, Text: "question"})
	require.NoError(t, err)

	assert.Equal(t, []string{"answer"}, e.transport.sentTexts())
	assert.Equal(t, []string{"question"}, e.chat.sent)
	assert.Equal(t, []int64{1}, e.chat.opened)
	assert.Equal(t, 1, e.counter.counts[MessagesCounter])
	assert.GreaterOrEqual(t, e.transport.typingCount(), 1)
	e.assertTypingStopped(t)
}

func TestHandleUnauthorized(t *testing.T) {
	e := newEnv()

	err := e.pipeline.Handle(context.Background(), Message{SenderID: 99, ChatID: 10, Text: "question"})
	require.NoError(t, err)

	assert.Equal(t, []string{AuthMsg}, e.transport.sentTexts())
	assert.Empty(t, e.chat.opened)
	assert.Empty(t, e.chat.sent)
	assert.Zero(t, e.counter.counts[MessagesCounter])
	assert.Zero(t, e.transport.typingCount())
}

func TestHandleIgnored(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{name: "no sender", msg: Message{ChatID: 10, Text: "hello"}},
		{name: "no content", msg: Message{SenderID: 1, ChatID: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()

			require.NoError(t, e.pipeline.Handle(context.Background(), tt.msg))
			assert.Empty(t, e.transport.sentTexts())
			assert.Empty(t, e.chat.opened)
			assert.Zero(t, e.counter.counts[MessagesCounter])
			assert.Zero(t, e.transport.typingCount())
		})
	}
}

func TestHandleVoice(t *testing.T) {
	e := newEnv()

	err := e.pipeline.Handle(context.Background(), Message{SenderID: 1, ChatID: 10, VoiceFileID: "voice-1"})
	require.NoError(t, err)

	assert.Equal(t, []byte("OggS"), e.transcriber.got)
	assert.Equal(t, []string{"transcribed"}, e.chat.sent)
	assert.Equal(t, []string{"answer"}, e.transport.sentTexts())
}

func TestHandleUpstreamFailures(t *testing.T) {
	tests := []struct {
		name  string
		msg   Message
		setup func(e *env) error
	}{
		{
			name: "download",
			msg:  Message{SenderID: 1, ChatID: 10, VoiceFileID: "voice-1"},
			setup: func(e *env) error {
				e.transport.downloadErr = errors.New("file expired")
				return e.transport.downloadErr
			},
		},
		{
			name: "transcription",
			msg:  Message{SenderID: 1, ChatID: 10, VoiceFileID: "voice-1"},
			setup: func(e *env) error {
				e.transcriber.err = errors.New("whisper down")
				return e.transcriber.err
			},
		},
		{
			name: "open chat",
			msg:  Message{SenderID: 1, ChatID: 10, Text: "q"},
			setup: func(e *env) error {
				e.chat.openErr = errors.New("history unavailable")
				return e.chat.openErr
			},
		},
		{
			name: "ai call",
			msg:  Message{SenderID: 1, ChatID: 10, Text: "q"},
			setup: func(e *env) error {
				e.chat.delay = 10 * time.Millisecond
				e.chat.sendErr = errors.New("model overloaded")
				return e.chat.sendErr
			},
		},
		{
			name: "user lookup",
			msg:  Message{SenderID: 1, ChatID: 10, Text: "q"},
			setup: func(e *env) error {
				e.users.err = errors.New("db locked")
				return e.users.err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			want := tt.setup(e)

			err := e.pipeline.Handle(context.Background(), tt.msg)
			require.ErrorIs(t, err, want)

			assert.Empty(t, e.transport.sentTexts())
			e.assertTypingStopped(t)
		})
	}
}

func TestHandleLongReply(t *testing.T) {
	e := newEnv()
	e.chat.reply = response.TextReply(strings.Repeat("x", response.MaxMessageLen+5))

	require.NoError(t, e.pipeline.Handle(context.Background(), Message{SenderID: 1, ChatID: 10, Text: "q"}))

	texts := e.transport.sentTexts()
	require.Len(t, texts, 2)
	assert.Len(t, texts[0], response.MaxMessageLen)
	assert.Equal(t, "xxxxx", texts[1])
}

func TestHandleImage(t *testing.T) {
	e := newEnv()
	e.chat.reply = response.ImageReply([]byte{1, 2, 3})

	require.NoError(t, e.pipeline.Handle(context.Background(), Message{SenderID: 1, ChatID: 10, Text: "draw"}))
	assert.Equal(t, 1, e.transport.photos)
	assert.Empty(t, e.transport.sentTexts())
}

// stopRecorder checks that every started indicator is stopped
type stopRecorder struct {
	started, stopped int
}

func (s *stopRecorder) Start(ctx context.Context, chatID int64) func() {
	s.started++
	return func() { s.stopped++ }
}

func TestIndicatorStoppedOnEveryPath(t *testing.T) {
	e := newEnv()
	rec := &stopRecorder{}
	e.pipeline.deps.Indicator = rec

	require.NoError(t, e.pipeline.Handle(context.Background(), Message{SenderID: 1, ChatID: 10, Text: "q"}))

	e.chat.sendErr = errors.New("boom")
	require.Error(t, e.pipeline.Handle(context.Background(), Message{SenderID: 1, ChatID: 10, Text: "q"}))

	e.transcriber.err = errors.New("boom")
	require.Error(t, e.pipeline.Handle(context.Background(), Message{SenderID: 1, ChatID: 10, VoiceFileID: "voice-1"}))

	assert.Equal(t, 3, rec.started)
	assert.Equal(t, 3, rec.stopped)
}
