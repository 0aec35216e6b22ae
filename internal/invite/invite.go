// Package invite encodes registration batch payloads into signed codes that
// fit a Telegram /start deep-link parameter.
package invite

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"unicode/utf8"
)

const (
	tagSize = 8

	// MaxPayloadLen keeps encoded codes within the 64 characters Telegram
	// allows for a start parameter.
	MaxPayloadLen = 32
)

var ErrBadPayload = errors.New("payload must be 1-32 bytes of UTF-8")

// Codec signs and verifies invite codes with a shared secret
type Codec struct {
	secret []byte
}

// NewCodec creates a codec for the given secret
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode returns the invite code for a payload
func (c *Codec) Encode(payload string) (string, error) {
	if len(payload) == 0 || len(payload) > MaxPayloadLen || !utf8.ValidString(payload) {
		return "", ErrBadPayload
	}

	raw := append([]byte(payload), c.sign([]byte(payload))...)
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode returns the payload of a code. Malformed or forged codes yield
// ok == false.
func (c *Codec) Decode(code string) (payload string, ok bool) {
	raw, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil || len(raw) <= tagSize {
		return "", false
	}

	body, tag := raw[:len(raw)-tagSize], raw[len(raw)-tagSize:]
	if len(body) > MaxPayloadLen || !utf8.Valid(body) {
		return "", false
	}
	if !hmac.Equal(tag, c.sign(body)) {
		return "", false
	}

	return string(body), true
}

func (c *Codec) sign(body []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(body)
	return mac.Sum(nil)[:tagSize]
}
