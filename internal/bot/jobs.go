package bot

import (
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
)

const (
	// expiryGrace is how long after expiry a user keeps group access
	// before the sweep removes them.
	expiryGrace = 15 * 24 * time.Hour

	// sendPace spaces bulk direct messages to stay under the API flood
	// limits.
	sendPace = 100 * time.Millisecond
)

// reminderDays are the days-before-expiry checkpoints a renewal reminder
// goes out on.
var reminderDays = []int{3, 2, 1}

// StartJobs schedules the daily maintenance jobs and returns the running
// scheduler: renewal reminders at noon, the expiry sweep at night.
func (b *Bot) StartJobs() (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc("0 12 * * *", b.RemindExpiring); err != nil {
		return nil, fmt.Errorf("bot: schedule reminders: %w", err)
	}
	if _, err := c.AddFunc("30 3 * * *", b.SweepExpired); err != nil {
		return nil, fmt.Errorf("bot: schedule expiry sweep: %w", err)
	}
	c.Start()
	fmt.Fprintf(b.out, "bot: maintenance jobs scheduled\n")
	return c, nil
}

// RemindExpiring messages every user whose subscription ends in the next
// few days. Sends are paced; a failed send skips that user only.
func (b *Bot) RemindExpiring() {
	for _, days := range reminderDays {
		users, err := b.store.ExpiringInDays(days)
		if err != nil {
			log.Printf("bot: list expiring in %d days: %v", days, err)
			continue
		}
		for _, u := range users {
			text := fmt.Sprintf("Подписка %s заканчивается через %d дн. (%s). Продлить: /start",
				u.Product, days, u.SubscribedUntil.Format("02.01.2006"))
			if days == 1 {
				text = fmt.Sprintf("Подписка %s заканчивается завтра! Продлить: /start", u.Product)
			}
			msg := tgbotapi.NewMessage(u.UserID, text)
			if _, err := b.send.Request(msg); err != nil {
				log.Printf("bot: remind %d: %v", u.UserID, err)
			}
			time.Sleep(sendPace)
		}
	}
}

// SweepExpired removes users whose subscription lapsed beyond the grace
// period from the paid group.
func (b *Bot) SweepExpired() {
	if b.moderator == nil {
		return
	}
	users, err := b.store.ExpiredBeyondGrace(expiryGrace)
	if err != nil {
		log.Printf("bot: list expired: %v", err)
		return
	}
	for _, u := range users {
		if err := b.moderator.Kick(u.UserID); err != nil {
			log.Printf("bot: kick %d: %v", u.UserID, err)
			continue
		}
		if err := b.store.MarkKicked(u.UserID); err != nil {
			log.Printf("bot: mark kicked %d: %v", u.UserID, err)
			continue
		}
		fmt.Fprintf(b.out, "bot: removed expired user %d\n", u.UserID)
		msg := tgbotapi.NewMessage(u.UserID,
			"Подписка закончилась, доступ к группе закрыт. Возобновить: /start")
		if _, err := b.send.Request(msg); err != nil {
			log.Printf("bot: notify kicked %d: %v", u.UserID, err)
		}
		time.Sleep(sendPace)
	}
}
