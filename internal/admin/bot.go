// Package admin runs the Telegram operator bot. The owner controls the
// relay through bot commands and receives a mirror of every WhatsApp
// exchange as it happens.
package admin

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/hamedydev/digitalme/internal/relay"
	"github.com/hamedydev/digitalme/internal/sessions"
)

const notifyTimeout = 15 * time.Second

// Bot is the operator-facing Telegram bot. Only the configured owner may
// issue commands; everyone else gets a rejection reply.
type Bot struct {
	bot        *telego.Bot
	ownerID    int64
	switchbrd  *relay.Switchboard
	store      *sessions.Store
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates the operator bot from a bot token and owner user ID.
func New(token string, ownerID int64, sb *relay.Switchboard, store *sessions.Store) (*Bot, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Bot{
		bot:       bot,
		ownerID:   ownerID,
		switchbrd: sb,
		store:     store,
	}, nil
}

// Run starts long polling for updates and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("starting telegram operator bot (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	b.pollCancel = cancel
	b.pollDone = make(chan struct{})

	updates, err := b.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	slog.Info("telegram operator bot connected", "username", b.bot.Username())

	go func() {
		defer close(b.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				if update.Message != nil {
					b.handleMessage(pollCtx, update.Message)
				} else {
					slog.Debug("telegram update skipped (no message)", "update_id", update.UpdateID)
				}
			}
		}
	}()

	<-ctx.Done()
	return b.stop()
}

// stop cancels the polling context and waits for the polling goroutine to
// exit so Telegram releases the getUpdates lock before a restart.
func (b *Bot) stop() error {
	slog.Info("stopping telegram operator bot")

	if b.pollCancel != nil {
		b.pollCancel()
	}

	if b.pollDone != nil {
		select {
		case <-b.pollDone:
			slog.Info("telegram operator bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, message *telego.Message) {
	if message.From == nil || message.Text == "" {
		return
	}

	res := b.executeCommand(message.Text, message.From.ID)
	if res.reply == "" && res.document == nil {
		return
	}

	chatID := tu.ID(message.Chat.ID)

	if res.reply != "" {
		if _, err := b.bot.SendMessage(ctx, tu.Message(chatID, res.reply)); err != nil {
			slog.Warn("failed to send telegram reply", "chat_id", message.Chat.ID, "error", err)
		}
	}

	if res.document != nil {
		doc := tu.Document(chatID, tu.File(tu.NameReader(bytes.NewReader(res.document), res.filename)))
		if _, err := b.bot.SendDocument(ctx, doc); err != nil {
			slog.Warn("failed to send telegram document", "chat_id", message.Chat.ID, "error", err)
			return
		}
		if res.followUp != "" {
			if _, err := b.bot.SendMessage(ctx, tu.Message(chatID, res.followUp)); err != nil {
				slog.Warn("failed to send telegram reply", "chat_id", message.Chat.ID, "error", err)
			}
		}
	}
}

// NotifyText mirrors a line of text to the owner's chat. Satisfies
// relay.Notifier so the pipeline can report every exchange.
func (b *Bot) NotifyText(ctx context.Context, text string) error {
	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if _, err := b.bot.SendMessage(sendCtx, tu.Message(tu.ID(b.ownerID), text)); err != nil {
		return fmt.Errorf("notify owner: %w", err)
	}
	return nil
}
