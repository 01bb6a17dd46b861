package telegram

import (
	"context"
	"fmt"
	"io"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Acceptor receives each channel post from the feed. Matches the mirror
// listener's Accept method.
type Acceptor func(text string, channelID int64, messageID int, channelTitle string) bool

// Feed pulls channel posts through long polling and hands them to an
// Acceptor. One Feed covers every source channel the account can see.
type Feed struct {
	bot    *tgbotapi.BotAPI
	accept Acceptor
	out    io.Writer
}

// NewFeed creates a Feed.
func NewFeed(bot *tgbotapi.BotAPI, accept Acceptor, out io.Writer) (*Feed, error) {
	if bot == nil {
		return nil, fmt.Errorf("telegram: feed: bot is required")
	}
	if accept == nil {
		return nil, fmt.Errorf("telegram: feed: acceptor is required")
	}
	if out == nil {
		out = os.Stdout
	}
	return &Feed{bot: bot, accept: accept, out: out}, nil
}

// Run polls for updates until the context is cancelled. Edited channel
// posts are treated like fresh ones; the dedup history downstream absorbs
// repeats.
func (f *Feed) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"channel_post", "edited_channel_post"}

	updates := f.bot.GetUpdatesChan(u)
	fmt.Fprintf(f.out, "telegram: feed started as %s\n", f.bot.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			f.bot.StopReceivingUpdates()
			fmt.Fprintf(f.out, "telegram: feed stopped\n")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			post := upd.ChannelPost
			if post == nil {
				post = upd.EditedChannelPost
			}
			if post == nil || post.Text == "" {
				continue
			}
			f.accept(post.Text, post.Chat.ID, post.MessageID, post.Chat.Title)
		}
	}
}
