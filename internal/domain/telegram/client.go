package telegram

import "gopkg.in/telebot.v3"

// Client is the messaging seam the reminder workflow sends through. It keeps
// the application layer decoupled from the concrete bot library.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
