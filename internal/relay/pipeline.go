// Package relay implements the reply pipeline: the sequential glue between
// the inbound webhook, the generation collaborator, the outbound WhatsApp
// send, the session store, and the operator notification channel.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hamedydev/digitalme/internal/persona"
	"github.com/hamedydev/digitalme/internal/providers"
	"github.com/hamedydev/digitalme/internal/sessions"
)

const (
	defaultContextTurns = 12
	generationTimeout   = 30 * time.Second
	deliveryTimeout     = 15 * time.Second
)

// Generator produces one completion for a role-tagged message list.
// providers.Provider satisfies it.
type Generator interface {
	Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error)
}

// Sender delivers an outbound reply to a chat identifier.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
}

// Notifier mirrors an exchange to the operator channel.
type Notifier interface {
	NotifyText(ctx context.Context, text string) error
}

// NopNotifier discards notifications. Used when no operator channel is
// configured.
type NopNotifier struct{}

func (NopNotifier) NotifyText(context.Context, string) error { return nil }

// InboundEvent is one inbound chat message, transport-agnostic.
type InboundEvent struct {
	SenderID   string // chat identifier (phone without suffix)
	SenderName string
	Text       string
}

// Options configures a Pipeline.
type Options struct {
	Switchboard  *Switchboard
	Store        *sessions.Store
	Generator    Generator
	Sender       Sender
	Notifier     Notifier
	Model        string
	Temperature  float64
	MaxTokens    int
	ContextTurns int // max history turns in the generation context (default 12)
}

// Pipeline orchestrates handling of one inbound event at a time. Safe for
// concurrent use: all shared state lives behind the store and switchboard.
type Pipeline struct {
	sb           *Switchboard
	store        *sessions.Store
	gen          Generator
	sender       Sender
	notifier     Notifier
	model        string
	temperature  float64
	maxTokens    int
	contextTurns int
}

func NewPipeline(opts Options) *Pipeline {
	contextTurns := opts.ContextTurns
	if contextTurns <= 0 || contextTurns > defaultContextTurns {
		contextTurns = defaultContextTurns
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Pipeline{
		sb:           opts.Switchboard,
		store:        opts.Store,
		gen:          opts.Generator,
		sender:       opts.Sender,
		notifier:     notifier,
		model:        opts.Model,
		temperature:  opts.Temperature,
		maxTokens:    opts.MaxTokens,
		contextTurns: contextTurns,
	}
}

// HandleEvent runs the full reply flow for one inbound message: compose the
// reply, send it, record the turn, notify the operator. Empty inbound text is
// a no-op. Send and notification failures are logged, never propagated.
func (p *Pipeline) HandleEvent(ctx context.Context, ev InboundEvent) {
	if ev.Text == "" {
		return
	}

	reply := p.composeReply(ctx, ev)

	sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	if err := p.sender.SendText(sendCtx, ev.SenderID, reply); err != nil {
		slog.Warn("outbound send failed", "to", ev.SenderID, "error", err)
	}
	cancel()

	p.store.RecordTurn(ev.SenderID, ev.SenderName, ev.Text, reply)

	notifCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	if err := p.notifier.NotifyText(notifCtx, formatNotification(time.Now().UTC(), ev, reply)); err != nil {
		slog.Warn("operator notification failed", "error", err)
	}
	cancel()
}

// composeReply decides the outbound text: canned identity answer, canned
// offline answer, generated-and-filtered reply, or the technical-difficulty
// fallback. Every non-empty inbound message yields some reply.
func (p *Pipeline) composeReply(ctx context.Context, ev InboundEvent) string {
	if persona.IsIdentityQuestion(ev.Text) {
		return persona.IdentityReply
	}

	if !p.sb.Enabled() {
		return persona.OfflineReply
	}

	msgs := make([]providers.Message, 0, p.contextTurns*2+2)
	msgs = append(msgs, providers.Message{Role: "system", Content: persona.SystemPrompt})
	msgs = append(msgs, p.store.ContextWindow(ev.SenderID, p.contextTurns)...)
	msgs = append(msgs, providers.Message{Role: "user", Content: ev.Text})

	genCtx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	resp, err := p.gen.Chat(genCtx, providers.ChatRequest{
		Messages:    msgs,
		Model:       p.model,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil || resp.Content == "" {
		slog.Warn("generation failed, using fallback reply", "sender", ev.SenderID, "error", err)
		return persona.FallbackReply
	}

	return persona.FilterReply(resp.Content)
}

// formatNotification builds the operator report for one exchange.
func formatNotification(ts time.Time, ev InboundEvent, reply string) string {
	return fmt.Sprintf(
		"📬 إشعار رسالة واردة\n"+
			"⏱ الوقت: %s\n"+
			"👤 المرسل: %s\n"+
			"📞 رقم: %s\n\n"+
			"✉️ الرسالة:\n%s\n\n"+
			"🤖 الرد المرسل:\n%s",
		ts.Format("2006-01-02 15:04:05 UTC"),
		ev.SenderName,
		ev.SenderID,
		ev.Text,
		reply,
	)
}
