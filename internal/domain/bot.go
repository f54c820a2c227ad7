package domain

import (
	"strings"
	"time"
)

// Bot represents a Telegram bot registered by a dashboard owner.
type Bot struct {
	ID           int64
	Name         string
	Token        string
	Username     string
	Description  string
	WebhookURL   string
	AIEnabled    bool
	GeminiAPIKey string
	TONWallet    string
	CreatedAt    time.Time
}

// ResponseType is the kind of reply a configured command produces.
type ResponseType string

const (
	ResponseText      ResponseType = "text"
	ResponsePhoto     ResponseType = "photo"
	ResponseURLButton ResponseType = "url_button"
)

// Valid reports whether t is one of the known response kinds.
func (t ResponseType) Valid() bool {
	switch t {
	case ResponseText, ResponsePhoto, ResponseURLButton:
		return true
	default:
		return false
	}
}

// Command is a configured reply bound to a normalized command name.
type Command struct {
	ID              int64
	BotID           int64
	Command         string
	ResponseType    ResponseType
	ResponseContent string
	URLLink         string
	ButtonText      string
}

// BotConfig is the read model the webhook runtime works with.
type BotConfig struct {
	Bot      Bot
	Commands []Command
}

// Lookup returns the first command with the given normalized name.
func (c *BotConfig) Lookup(name string) (Command, bool) {
	if c == nil {
		return Command{}, false
	}

	for _, cmd := range c.Commands {
		if cmd.Command == name {
			return cmd, true
		}
	}

	return Command{}, false
}

// NormalizeCommand trims, lowercases and strips slashes from a command name.
func NormalizeCommand(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, "/", "")
}
