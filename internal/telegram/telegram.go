// Package telegram binds the engine's transport interfaces to the Telegram
// Bot API: posting and editing forum-topic messages, direct-message
// notifications, and group membership moderation.
package telegram

import (
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// api is the slice of tgbotapi.BotAPI the package uses; tests substitute a
// fake.
type api interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Writer posts into the forum supergroup's topics. Implements the engine's
// ForumWriter.
type Writer struct {
	bot    api
	chatID int64 // the forum supergroup
}

// NewWriter creates a Writer for the given forum chat.
func NewWriter(bot *tgbotapi.BotAPI, chatID int64) *Writer {
	return &Writer{bot: bot, chatID: chatID}
}

// Create posts text into a forum topic and returns the new message ID.
// Goes through the raw API because the client library predates the
// message_thread_id field.
func (w *Writer) Create(threadID int, text string) (int, error) {
	params := make(tgbotapi.Params)
	params.AddNonZero64("chat_id", w.chatID)
	params.AddNonZero("message_thread_id", threadID)
	params["text"] = text
	params["parse_mode"] = tgbotapi.ModeHTML
	params.AddBool("disable_web_page_preview", true)

	resp, err := w.bot.MakeRequest("sendMessage", params)
	if err != nil {
		return 0, fmt.Errorf("telegram: send to thread %d: %w", threadID, err)
	}
	var msg tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return 0, fmt.Errorf("telegram: decode sent message: %w", err)
	}
	return msg.MessageID, nil
}

// Edit replaces the text of an existing forum message.
func (w *Writer) Edit(messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(w.chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	if _, err := w.bot.Request(edit); err != nil {
		return fmt.Errorf("telegram: edit message %d: %w", messageID, err)
	}
	return nil
}

// Notifier sends direct messages to users. Implements the engine's Notifier.
type Notifier struct {
	bot api
}

// NewNotifier creates a Notifier.
func NewNotifier(bot *tgbotapi.BotAPI) *Notifier {
	return &Notifier{bot: bot}
}

// Notify sends text to the user's private chat.
func (n *Notifier) Notify(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Request(msg); err != nil {
		return fmt.Errorf("telegram: notify %d: %w", userID, err)
	}
	return nil
}

// Moderator manages membership of the paid group.
type Moderator struct {
	bot    api
	chatID int64 // the paid group
}

// NewModerator creates a Moderator for the given group.
func NewModerator(bot *tgbotapi.BotAPI, chatID int64) *Moderator {
	return &Moderator{bot: bot, chatID: chatID}
}

// ApproveJoin accepts a pending join request.
func (m *Moderator) ApproveJoin(userID int64) error {
	params := make(tgbotapi.Params)
	params.AddNonZero64("chat_id", m.chatID)
	params.AddNonZero64("user_id", userID)
	if _, err := m.bot.MakeRequest("approveChatJoinRequest", params); err != nil {
		return fmt.Errorf("telegram: approve join for %d: %w", userID, err)
	}
	return nil
}

// DeclineJoin rejects a pending join request.
func (m *Moderator) DeclineJoin(userID int64) error {
	params := make(tgbotapi.Params)
	params.AddNonZero64("chat_id", m.chatID)
	params.AddNonZero64("user_id", userID)
	if _, err := m.bot.MakeRequest("declineChatJoinRequest", params); err != nil {
		return fmt.Errorf("telegram: decline join for %d: %w", userID, err)
	}
	return nil
}

// Kick removes a user from the group without a permanent ban: ban then
// unban, so they can rejoin after renewing.
func (m *Moderator) Kick(userID int64) error {
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: m.chatID, UserID: userID},
	}
	if _, err := m.bot.Request(ban); err != nil {
		return fmt.Errorf("telegram: ban %d: %w", userID, err)
	}
	unban := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: m.chatID, UserID: userID},
		OnlyIfBanned:     true,
	}
	if _, err := m.bot.Request(unban); err != nil {
		return fmt.Errorf("telegram: unban %d: %w", userID, err)
	}
	return nil
}
