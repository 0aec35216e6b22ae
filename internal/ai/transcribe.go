package ai

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// voiceFilename tells Whisper the container of Telegram voice notes
const voiceFilename = "voice.ogg"

// Transcriber turns voice messages into text
type Transcriber struct {
	client Client
}

// NewTranscriber creates a new Transcriber
func NewTranscriber(client Client) *Transcriber {
	return &Transcriber{client: client}
}

// Transcribe returns the text spoken in an OGG/Opus recording
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: voiceFilename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return resp.Text, nil
}
