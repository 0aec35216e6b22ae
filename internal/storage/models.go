package storage

import "time"

// User is a Telegram account that redeemed an invite code
type User struct {
	ID        int64
	ChatID    int64
	Payload   string // decoded invite payload, unique across users
	Name      string
	Username  string
	CreatedAt time.Time
}

// ChatMessage is one turn of a conversation kept for the AI session
type ChatMessage struct {
	ID        int64
	ChatID    int64
	UserID    int64
	Role      string // "user" or "assistant"
	Content   string
	CreatedAt time.Time
}
