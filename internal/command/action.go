// Package command resolves incoming bot text into the reply a bot should send.
package command

import "strings"

// Prefix marks a message as a command.
const Prefix = "/"

// Reserved command names handled before the bot's own table.
const (
	NameWebApp = "webapp"
	NameStart  = "start"
)

// Action is the reply produced for one incoming message. The set of
// implementations is closed; switch on the concrete type.
type Action interface {
	action()
}

// SendText sends a plain message.
type SendText struct {
	Text string
}

// SendPhoto sends a photo by URL.
type SendPhoto struct {
	URL     string
	Caption string
}

// SendWebAppButton sends Text with an inline button opening URL inside Telegram.
type SendWebAppButton struct {
	Text       string
	ButtonText string
	URL        string
}

// SendURLButton sends Text with an inline button linking to an external URL.
type SendURLButton struct {
	Text       string
	ButtonText string
	URL        string
}

// NoReply means nothing is sent back.
type NoReply struct{}

func (SendText) action()         {}
func (SendPhoto) action()        {}
func (SendWebAppButton) action() {}
func (SendURLButton) action()    {}
func (NoReply) action()          {}

// Parse extracts the command name from text. ok is false for free text and
// for a bare prefix with no name.
func Parse(text string) (name string, ok bool) {
	if !strings.HasPrefix(text, Prefix) {
		return "", false
	}

	fields := strings.Fields(strings.TrimPrefix(text, Prefix))
	if len(fields) == 0 {
		return "", false
	}

	return strings.ToLower(fields[0]), true
}
