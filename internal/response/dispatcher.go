package response

import (
	"context"
	"fmt"
)

// ActionKind is the Telegram method an Action maps to
type ActionKind int

const (
	SendMessage ActionKind = iota
	SendPhoto
	SendPhotoURL
)

// Action is one outbound send
type Action struct {
	Kind     ActionKind
	Text     string
	Photo    []byte
	Filename string
	URL      string
}

// Sender is the transport the dispatcher drives
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, data []byte, filename string) error
	SendPhotoURL(ctx context.Context, chatID int64, url string) error
}

// Actions maps a reply to the ordered sends that deliver it
func Actions(r Reply) ([]Action, error) {
	switch r.Kind {
	case KindImage:
		return []Action{{Kind: SendPhoto, Photo: r.Image, Filename: PhotoFilename}}, nil
	case KindImageURL:
		return []Action{{Kind: SendPhotoURL, URL: r.URL}}, nil
	case KindText:
		var actions []Action
		for chunk := range Chunks(r.Text, MaxMessageLen) {
			actions = append(actions, Action{Kind: SendMessage, Text: chunk})
		}
		return actions, nil
	default:
		return nil, fmt.Errorf("unknown reply kind %s", r.Kind)
	}
}

// Dispatcher delivers replies through a Sender
type Dispatcher struct {
	sender Sender
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// Dispatch sends r to the chat, in order, stopping at the first failure
func (d *Dispatcher) Dispatch(ctx context.Context, chatID int64, r Reply) error {
	actions, err := Actions(r)
	if err != nil {
		return err
	}

	for _, a := range actions {
		if err := d.send(ctx, chatID, a); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, a Action) error {
	var err error
	switch a.Kind {
	case SendMessage:
		err = d.sender.SendText(ctx, chatID, a.Text)
	case SendPhoto:
		err = d.sender.SendPhoto(ctx, chatID, a.Photo, a.Filename)
	case SendPhotoURL:
		err = d.sender.SendPhotoURL(ctx, chatID, a.URL)
	}
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
