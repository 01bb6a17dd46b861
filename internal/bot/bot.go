// Package bot is the subscription bot: it sells access to the paid order
// group, keeps notification subscriptions, and guards group membership.
package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/taxiline/taxiline/internal/config"
	"github.com/taxiline/taxiline/internal/districts"
	"github.com/taxiline/taxiline/internal/mirror"
	"github.com/taxiline/taxiline/internal/models"
	"github.com/taxiline/taxiline/internal/pay"
	"github.com/taxiline/taxiline/internal/store"
)

// defaultRecheck is how long after issuing an invoice the bot checks the
// payment on its own, for users who never press the check button.
const defaultRecheck = 10 * time.Minute

// sender is the slice of tgbotapi.BotAPI the handlers use; tests substitute
// a fake.
type sender interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// invoicer creates and checks payments. Satisfied by pay.Tinkoff and
// pay.YooKassa.
type invoicer interface {
	Init(ctx context.Context, req pay.InitRequest) (*pay.Invoice, error)
	Status(ctx context.Context, paymentID string) (string, error)
}

// moderator manages paid-group membership. Satisfied by telegram.Moderator.
type moderator interface {
	ApproveJoin(userID int64) error
	DeclineJoin(userID int64) error
	Kick(userID int64) error
}

// Bot handles subscription bot updates.
type Bot struct {
	api       *tgbotapi.BotAPI
	send      sender
	store     *store.Store
	payments  invoicer
	moderator moderator
	districts *districts.Store
	cfg       *config.Config
	recheck   time.Duration
	out       io.Writer
}

// Opts holds parameters for creating a Bot.
type Opts struct {
	API       *tgbotapi.BotAPI
	Store     *store.Store
	Payments  invoicer
	Moderator moderator
	Districts *districts.Store
	Config    *config.Config
	Recheck   time.Duration // default 10m
	Out       io.Writer
}

// New creates a Bot.
func New(opts Opts) (*Bot, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("bot: store is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("bot: config is required")
	}
	recheck := opts.Recheck
	if recheck == 0 {
		recheck = defaultRecheck
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	b := &Bot{
		api:       opts.API,
		store:     opts.Store,
		payments:  opts.Payments,
		moderator: opts.Moderator,
		districts: opts.Districts,
		cfg:       opts.Config,
		recheck:   recheck,
		out:       out,
	}
	if opts.API != nil {
		b.send = opts.API
	}
	return b, nil
}

// Run polls updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.api == nil {
		return fmt.Errorf("bot: run: api is required")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	fmt.Fprintf(b.out, "bot: started as %s\n", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			fmt.Fprintf(b.out, "bot: stopped\n")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate dispatches one update. Handler errors are logged, never
// fatal: one broken interaction must not stop the loop.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	var err error
	switch {
	case upd.Message != nil && upd.Message.IsCommand():
		err = b.handleCommand(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		err = b.handleCallback(ctx, upd.CallbackQuery)
	case upd.ChatJoinRequest != nil:
		err = b.handleJoinRequest(upd.ChatJoinRequest)
	}
	if err != nil {
		log.Printf("bot: handle update: %v", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	userID := msg.From.ID
	switch msg.Command() {
	case "start":
		_, created, err := b.store.RegisterUser(userID, msg.From.UserName)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(b.out, "bot: new user %d\n", userID)
		}
		return b.sendWelcome(userID)
	case "stop":
		if err := b.store.SetDistrict(userID, ""); err != nil {
			return err
		}
		return b.reply(userID, "Уведомления о заказах отключены.")
	case "status":
		return b.sendStatus(userID)
	case "support":
		return b.reply(userID, "По всем вопросам: @taxiline_support")
	default:
		return b.reply(userID, "Неизвестная команда. Нажмите /start.")
	}
}

// sendWelcome shows the tariff keyboard, with the trial offer while it is
// still available to this user.
func (b *Bot) sendWelcome(userID int64) error {
	var rows [][]tgbotapi.InlineKeyboardButton

	u, err := b.store.User(userID)
	if err != nil {
		return err
	}
	for _, p := range b.cfg.Products {
		if p.Trial {
			if !u.TrialUsed {
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData(
						fmt.Sprintf("🎁 %s — %d дн. бесплатно", p.Name, p.Days), "trial"),
				))
			}
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s — %d дн. / %d ₽", p.Name, p.Days, p.Price/100), "buy:"+p.Name),
		))
	}

	msg := tgbotapi.NewMessage(userID,
		"Добро пожаловать! Доступ к заказам по подписке.\nВыберите тариф:")
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	_, err = b.send.Request(msg)
	return err
}

func (b *Bot) sendStatus(userID int64) error {
	u, err := b.store.User(userID)
	if err != nil {
		return b.reply(userID, "Вы ещё не зарегистрированы. Нажмите /start.")
	}
	if !u.ActiveAt(time.Now()) {
		return b.reply(userID, "Подписка не активна. Нажмите /start, чтобы оформить.")
	}
	text := fmt.Sprintf("Тариф: %s\nДействует до: %s", u.Product,
		u.SubscribedUntil.Format("02.01.2006 15:04"))
	if u.District != "" {
		text += "\nУведомления: " + u.District
	}
	return b.reply(userID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	userID := cb.From.ID
	data := cb.Data

	// Ack first so the button stops spinning even if the action fails.
	if _, err := b.send.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("bot: ack callback: %v", err)
	}

	switch {
	case data == "trial":
		return b.handleTrial(userID)
	case strings.HasPrefix(data, "buy:"):
		return b.handleBuy(ctx, userID, strings.TrimPrefix(data, "buy:"))
	case strings.HasPrefix(data, "check:"):
		return b.settlePayment(ctx, strings.TrimPrefix(data, "check:"))
	case strings.HasPrefix(data, "district:"):
		return b.handleDistrict(userID, strings.TrimPrefix(data, "district:"))
	}
	return nil
}

func (b *Bot) handleTrial(userID int64) error {
	p, ok := b.cfg.TrialProduct()
	if !ok {
		return b.reply(userID, "Пробный период недоступен.")
	}
	granted, err := b.store.GrantTrial(userID, p.Days, p.Name)
	if err != nil {
		return err
	}
	if !granted {
		return b.reply(userID, "Пробный период уже был использован.")
	}
	if err := b.reply(userID, fmt.Sprintf("Пробный доступ на %d дн. активирован! Теперь можно вступить в группу.", p.Days)); err != nil {
		return err
	}
	return b.sendDistrictKeyboard(userID)
}

func (b *Bot) handleBuy(ctx context.Context, userID int64, productName string) error {
	if b.payments == nil {
		return b.reply(userID, "Оплата временно недоступна.")
	}
	p, ok := b.cfg.ProductByName(productName)
	if !ok {
		return b.reply(userID, "Такого тарифа нет.")
	}

	inv, err := b.payments.Init(ctx, pay.InitRequest{
		Amount:      p.Price,
		OrderID:     pay.NewOrderID(userID),
		Description: fmt.Sprintf("Подписка %s на %d дн.", p.Name, p.Days),
		Receipt: &pay.Receipt{
			Taxation: "usn_income",
			Items: []pay.ReceiptItem{{
				Name: "Подписка " + p.Name, Price: p.Price, Quantity: 1, Amount: p.Price, Tax: "none",
			}},
		},
	})
	if err != nil {
		log.Printf("bot: init payment for %d: %v", userID, err)
		return b.reply(userID, "Не удалось создать платёж, попробуйте позже.")
	}

	err = b.store.CreatePayment(&models.Payment{
		ProductID: inv.PaymentID,
		UserID:    userID,
		Provider:  "tinkoff",
		Amount:    p.Price,
		Product:   p.Name,
		Days:      p.Days,
	})
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(userID, fmt.Sprintf("Счёт на %d ₽ создан. Оплатите по ссылке:", p.Price/100))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💳 Оплатить", inv.URL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Проверить оплату", "check:"+inv.PaymentID),
		),
	)
	if _, err := b.send.Request(msg); err != nil {
		return err
	}

	// Settle on our own later, for users who pay and close the chat.
	time.AfterFunc(b.recheck, func() {
		if err := b.settlePayment(context.Background(), inv.PaymentID); err != nil {
			log.Printf("bot: recheck payment %s: %v", inv.PaymentID, err)
		}
	})
	return nil
}

// settlePayment asks the provider for the payment state and, on a final
// answer, resolves it: extends the subscription or tells the user it
// failed. A still-pending payment stays pending.
func (b *Bot) settlePayment(ctx context.Context, paymentID string) error {
	// Cheap skip for payments already settled. The real guard against the
	// button/timed-recheck race is the conditional claim below.
	current, err := b.store.Payment(paymentID)
	if err != nil {
		return err
	}
	if current.Status != models.PaymentPending {
		return nil
	}

	status, err := b.payments.Status(ctx, paymentID)
	if err != nil {
		return err
	}
	switch status {
	case pay.TinkoffConfirmed, pay.YooKassaSucceeded:
		p, claimed, err := b.store.ResolvePayment(paymentID, models.PaymentConfirmed)
		if err != nil {
			return err
		}
		if !claimed {
			// A concurrent settle won the claim and credits the user.
			return nil
		}
		until, err := b.store.Extend(p.UserID, p.Days, p.Product)
		if err != nil {
			return err
		}
		b.reportPayment(p)
		if err := b.reply(p.UserID, fmt.Sprintf("Оплата получена! Подписка %s действует до %s.",
			p.Product, until.Format("02.01.2006"))); err != nil {
			return err
		}
		return b.sendDistrictKeyboard(p.UserID)
	case pay.TinkoffRejected, pay.TinkoffCanceled, pay.YooKassaCanceled:
		p, claimed, err := b.store.ResolvePayment(paymentID, models.PaymentRejected)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}
		return b.reply(p.UserID, "Платёж не прошёл. Попробуйте ещё раз: /start")
	default:
		return nil
	}
}

// reportPayment posts a confirmed payment to the admin chat. Best-effort:
// a failed report never blocks settlement.
func (b *Bot) reportPayment(p *models.Payment) {
	if b.cfg.Telegram.AdminChatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(b.cfg.Telegram.AdminChatID,
		fmt.Sprintf("💰 Оплата: пользователь %d, тариф %s, %d ₽", p.UserID, p.Product, p.Amount/100))
	if _, err := b.send.Request(msg); err != nil {
		log.Printf("bot: report payment %s: %v", p.ProductID, err)
	}
}

// sendDistrictKeyboard offers the notification district choice to a user
// with fresh access.
func (b *Bot) sendDistrictKeyboard(userID int64) error {
	if b.districts == nil {
		return nil
	}
	tbl := b.districts.Current()
	if len(tbl.Districts) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, d := range tbl.Districts {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(d.Title, "district:"+d.Key),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📋 Все заказы", "district:"+mirror.AllOrders),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔕 Без уведомлений", "district:off"),
	))

	msg := tgbotapi.NewMessage(userID, "Выберите район для уведомлений о заказах:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err := b.send.Request(msg)
	return err
}

func (b *Bot) handleDistrict(userID int64, key string) error {
	if key == "off" {
		if err := b.store.SetDistrict(userID, ""); err != nil {
			return err
		}
		return b.reply(userID, "Уведомления отключены.")
	}
	if key == mirror.AllOrders {
		if err := b.store.SetDistrict(userID, key); err != nil {
			return err
		}
		return b.reply(userID, "Готово! Все заказы будут приходить сюда.")
	}
	if b.districts != nil {
		if _, ok := b.districts.Current().ByKey(key); !ok {
			return b.reply(userID, "Такого района нет.")
		}
	}
	if err := b.store.SetDistrict(userID, key); err != nil {
		return err
	}
	return b.reply(userID, "Готово! Заказы этого района будут приходить сюда.")
}

// handleJoinRequest admits paid users into the group and turns everyone
// else away.
func (b *Bot) handleJoinRequest(req *tgbotapi.ChatJoinRequest) error {
	if b.moderator == nil || req.Chat.ID != b.cfg.Telegram.PaidGroupID {
		return nil
	}
	userID := req.From.ID
	active, err := b.store.IsActive(userID)
	if err != nil {
		return err
	}
	if active {
		fmt.Fprintf(b.out, "bot: approving join for %d\n", userID)
		return b.moderator.ApproveJoin(userID)
	}
	if err := b.moderator.DeclineJoin(userID); err != nil {
		return err
	}
	return b.reply(userID, "Для вступления в группу нужна активная подписка: /start")
}

func (b *Bot) reply(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.send.Request(msg); err != nil {
		return fmt.Errorf("bot: reply to %d: %w", userID, err)
	}
	return nil
}
