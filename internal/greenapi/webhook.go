package greenapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hamedydev/digitalme/internal/relay"
)

// Webhook event type that triggers processing; all others are ignored.
const typeIncomingMessage = "incomingMessageReceived"

// fallbackSenderName stands in when the gateway sends no display name.
const fallbackSenderName = "مستخدم"

// Notification is the gateway's webhook payload: a batch of events.
type Notification struct {
	Body []Event `json:"body"`
}

// Event describes one inbound gateway event.
type Event struct {
	TypeWebhook string      `json:"typeWebhook"`
	SenderData  SenderData  `json:"senderData"`
	MessageData MessageData `json:"messageData"`
}

type SenderData struct {
	ChatID     string `json:"chatId"` // e.g. "77912345@c.us"
	SenderName string `json:"senderName"`
	ChatName   string `json:"chatName"`
}

type MessageData struct {
	TypeMessage     string          `json:"typeMessage"`
	TextMessageData TextMessageData `json:"textMessageData"`
}

type TextMessageData struct {
	TextMessage string `json:"textMessage"`
}

// Handler processes one parsed inbound event. *relay.Pipeline satisfies it.
type Handler interface {
	HandleEvent(ctx context.Context, ev relay.InboundEvent)
}

// Server hosts the webhook endpoint and the health banner.
type Server struct {
	addr       string
	handler    Handler
	limiter    *webhookRateLimiter
	httpServer *http.Server
}

// NewServer creates the webhook listener on addr.
func NewServer(addr string, handler Handler) *Server {
	s := &Server{
		addr:    addr,
		handler: handler,
		limiter: newWebhookRateLimiter(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/webhook", s.handleWebhook)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("webhook listener started", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("webhook listener shutdown", "error", err)
		}
		slog.Info("webhook listener stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("🤖 WhatsApp Bot (حامد - النسخة الرقمية) يعمل!"))
}

// handleWebhook acknowledges every payload with a fixed 200 regardless of
// processing outcome. Events in one payload are processed sequentially and
// in order; a failure in one event never aborts the rest.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.limiter.Allow(remoteHost(r)) {
		slog.Warn("webhook rate limited", "remote", r.RemoteAddr)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	var notif Notification
	if err := json.NewDecoder(r.Body).Decode(&notif); err != nil {
		slog.Warn("webhook payload undecodable", "error", err)
	} else {
		s.processEvents(r.Context(), notif.Body)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) processEvents(ctx context.Context, events []Event) {
	for i := range events {
		s.processOne(ctx, &events[i])
	}
}

// processOne isolates per-event failures: a panic while handling one event
// is logged and the remaining events in the batch still run.
func (s *Server) processOne(ctx context.Context, ev *Event) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("event processing panicked", "panic", rec, "chat_id", ev.SenderData.ChatID)
		}
	}()

	if ev.TypeWebhook != typeIncomingMessage {
		slog.Debug("webhook event skipped", "type", ev.TypeWebhook)
		return
	}

	name := ev.SenderData.SenderName
	if name == "" {
		name = ev.SenderData.ChatName
	}
	if name == "" {
		name = fallbackSenderName
	}

	s.handler.HandleEvent(ctx, relay.InboundEvent{
		SenderID:   phoneFromChatID(ev.SenderData.ChatID),
		SenderName: name,
		Text:       ev.MessageData.TextMessageData.TextMessage,
	})
}

// phoneFromChatID strips the "@c.us" style suffix from a gateway chat ID.
func phoneFromChatID(chatID string) string {
	if i := strings.Index(chatID, "@"); i >= 0 {
		return chatID[:i]
	}
	return chatID
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
