// Package bot receives contact cards over Telegram long polling and hands them
// to the registration sync.
package bot

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/watasiwa/tradegate/internal/registration"
)

const pollTimeoutSeconds = 30

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ContactSyncer stores a shared contact.
type ContactSyncer interface {
	SyncContact(ctx context.Context, ev registration.ContactEvent) error
}

// Bot dispatches incoming updates.
type Bot struct {
	api    API
	sync   ContactSyncer
	logger *slog.Logger

	wg sync.WaitGroup
}

// Connect authenticates against the Bot API with token.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

// New builds a Bot on top of api.
func New(api API, syncer ContactSyncer, logger *slog.Logger) *Bot {
	return &Bot{api: api, sync: syncer, logger: logger}
}

// Run polls for updates until ctx is done, then waits for in-flight contact
// syncs to finish.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	cfg.AllowedUpdates = []string{"message"}
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info("bot polling started")
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate starts a contact sync for contact messages and ignores
// everything else. The sync runs in its own goroutine so a slow retry loop
// does not hold up other chats.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Contact == nil || msg.From == nil {
		return
	}

	ev := registration.ContactEvent{
		SenderID:    strconv.FormatInt(msg.From.ID, 10),
		PhoneNumber: msg.Contact.PhoneNumber,
		FirstName:   msg.From.FirstName,
		LastName:    msg.From.LastName,
		Username:    msg.From.UserName,
	}
	if msg.Contact.UserID != 0 {
		ev.OwnerID = strconv.FormatInt(msg.Contact.UserID, 10)
	}
	if msg.Chat != nil {
		ev.ChatID = strconv.FormatInt(msg.Chat.ID, 10)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.sync.SyncContact(ctx, ev); err != nil {
			b.logger.Warn("contact not stored",
				slog.Int("update_id", update.UpdateID),
				slog.String("user_id", ev.SenderID),
				slog.Any("error", err),
			)
		}
	}()
}

// Wait blocks until every contact sync started so far has returned.
func (b *Bot) Wait() {
	b.wg.Wait()
}
