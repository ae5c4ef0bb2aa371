package greenapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hamedydev/digitalme/internal/relay"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []relay.InboundEvent
	panics int
}

func (h *recordingHandler) HandleEvent(_ context.Context, ev relay.InboundEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panics > 0 {
		h.panics--
		panic("boom")
	}
	h.events = append(h.events, ev)
}

func newWebhookTest(t *testing.T) (*httptest.Server, *recordingHandler) {
	t.Helper()
	h := &recordingHandler{}
	s := NewServer("127.0.0.1:0", h)
	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)
	return srv, h
}

const batchPayload = `{
	"body": [
		{
			"typeWebhook": "incomingMessageReceived",
			"senderData": {"chatId": "77911111@c.us", "senderName": "زيد"},
			"messageData": {"typeMessage": "textMessage", "textMessageData": {"textMessage": "مرحبا"}}
		},
		{
			"typeWebhook": "stateInstanceChanged",
			"senderData": {"chatId": "x@c.us"}
		},
		{
			"typeWebhook": "incomingMessageReceived",
			"senderData": {"chatId": "77922222@c.us"},
			"messageData": {"textMessageData": {"textMessage": "hello"}}
		}
	]
}`

func TestWebhook_BatchProcessedInOrder(t *testing.T) {
	srv, h := newWebhookTest(t)

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(batchPayload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if len(h.events) != 2 {
		t.Fatalf("processed %d events, want 2 (non-message type skipped)", len(h.events))
	}
	if h.events[0].SenderID != "77911111" || h.events[0].Text != "مرحبا" {
		t.Errorf("first event = %+v", h.events[0])
	}
	if h.events[0].SenderName != "زيد" {
		t.Errorf("sender name = %q", h.events[0].SenderName)
	}
	if h.events[1].SenderID != "77922222" {
		t.Errorf("second event = %+v", h.events[1])
	}
	if h.events[1].SenderName != fallbackSenderName {
		t.Errorf("missing name should fall back, got %q", h.events[1].SenderName)
	}
}

func TestWebhook_PanicInOneEventDoesNotAbortBatch(t *testing.T) {
	srv, h := newWebhookTest(t)
	h.panics = 1 // first event handler panics

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(batchPayload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite panic", resp.StatusCode)
	}
	if len(h.events) != 1 {
		t.Fatalf("remaining events not processed after panic: %d", len(h.events))
	}
	if h.events[0].SenderID != "77922222" {
		t.Errorf("wrong surviving event: %+v", h.events[0])
	}
}

func TestWebhook_MalformedPayloadStillAcked(t *testing.T) {
	srv, h := newWebhookTest(t)

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader("{broken"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 for malformed payload", resp.StatusCode)
	}
	if len(h.events) != 0 {
		t.Errorf("malformed payload produced events: %+v", h.events)
	}
}

func TestWebhook_GetMethodRejected(t *testing.T) {
	srv, _ := newWebhookTest(t)

	resp, err := http.Get(srv.URL + "/webhook")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestWebhook_HealthBanner(t *testing.T) {
	srv, _ := newWebhookTest(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestPhoneFromChatID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"77912345@c.us", "77912345"},
		{"77912345", "77912345"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := phoneFromChatID(tt.in); got != tt.want {
			t.Errorf("phoneFromChatID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWebhookRateLimiter(t *testing.T) {
	l := newWebhookRateLimiter()

	for i := 0; i < rateMaxHits; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d rejected within limit", i)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("request beyond limit allowed")
	}
	if !l.Allow("5.6.7.8") {
		t.Error("independent source throttled")
	}
}
