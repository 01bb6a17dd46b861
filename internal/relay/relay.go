// Package relay reposts orders from the VIP channel into the free channel
// after a head-start delay, and feeds each order through AI extraction into
// the database.
package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/taxiline/taxiline/internal/aiparse"
	"github.com/taxiline/taxiline/internal/config"
	"github.com/taxiline/taxiline/internal/mirror"
	"github.com/taxiline/taxiline/internal/models"
	"github.com/taxiline/taxiline/internal/store"
)

// upsell is appended to every delayed repost.
const upsell = "\n\n⚡ В VIP-канале заказы появляются раньше. Подключить: /start"

// sender posts to the free channel; tests substitute a fake.
type sender interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// parser extracts structured orders. Satisfied by aiparse.Client.
type parser interface {
	Parse(ctx context.Context, text string) (*aiparse.Order, error)
}

// Relay delays VIP posts into the free channel.
type Relay struct {
	send       sender
	parser     parser
	store      *store.Store
	classifier *mirror.Classifier
	cfg        config.RelayConfig
	delay      time.Duration
	out        io.Writer
}

// Opts holds parameters for creating a Relay.
type Opts struct {
	Sender     sender
	Parser     parser            // optional; disables extraction when nil
	Store      *store.Store      // optional; required when Parser is set
	Classifier *mirror.Classifier // optional; tags stored orders with a district
	Config     config.RelayConfig
	Delay      time.Duration // overrides Config.DelaySeconds; -1 means none
	Out        io.Writer
}

// New creates a Relay.
func New(opts Opts) (*Relay, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("relay: sender is required")
	}
	if opts.Config.FreeChannelID == 0 {
		return nil, fmt.Errorf("relay: free channel is required")
	}
	if opts.Parser != nil && opts.Store == nil {
		return nil, fmt.Errorf("relay: store is required for extraction")
	}
	delay := opts.Delay
	if delay == 0 {
		delay = time.Duration(opts.Config.DelaySeconds) * time.Second
	}
	if delay < 0 {
		delay = 0
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Relay{
		send:       opts.Sender,
		parser:     opts.Parser,
		store:      opts.Store,
		classifier: opts.Classifier,
		cfg:        opts.Config,
		delay:      delay,
		out:        out,
	}, nil
}

// Accept filters one channel post. Matches the telegram feed's Acceptor so
// the relay can share the update loop with the mirror listener.
func (r *Relay) Accept(text string, channelID int64, messageID int, channelTitle string) bool {
	if channelID != r.cfg.VIPChannelID {
		return false
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < r.cfg.MinTextLen {
		return false
	}
	fmt.Fprintf(r.out, "relay: scheduling repost of message %d\n", messageID)

	time.AfterFunc(r.delay, func() {
		if err := r.repost(text); err != nil {
			log.Printf("relay: repost message %d: %v", messageID, err)
		}
	})
	if r.parser != nil {
		go r.extract(text, channelID, messageID)
	}
	return true
}

// repost publishes the order in the free channel with the upsell footer.
func (r *Relay) repost(text string) error {
	msg := tgbotapi.NewMessage(r.cfg.FreeChannelID, text+upsell)
	if r.cfg.UpsellURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("⚡ Подключить VIP", r.cfg.UpsellURL),
			),
		)
	}
	if _, err := r.send.Request(msg); err != nil {
		return fmt.Errorf("relay: send to free channel: %w", err)
	}
	return nil
}

// extract runs AI extraction and stores the result. Best-effort: failures
// are logged, the repost is unaffected.
func (r *Relay) extract(text string, channelID int64, messageID int) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	order, err := r.parser.Parse(ctx, text)
	if err != nil {
		log.Printf("relay: extract from message %d: %v", messageID, err)
		return
	}
	if order == nil {
		return
	}

	rec := &models.TaxiOrder{
		Origin:          order.Origin,
		Destination:     order.Destination,
		DepartAt:        order.DepartAt,
		Seats:           order.Seats,
		Price:           order.Price,
		Phone:           order.Phone,
		RawText:         text,
		SourceChannelID: channelID,
		SourceMessageID: messageID,
	}
	if r.classifier != nil {
		if cls := r.classifier.Classify(text); !cls.Blocked {
			rec.District = cls.Primary
		}
	}
	if err := r.store.SaveOrder(rec); err != nil {
		log.Printf("relay: store order from message %d: %v", messageID, err)
	}
}
