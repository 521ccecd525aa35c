package messaging

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/epimex/screenbot/internal/models"
	"github.com/epimex/screenbot/internal/twiliowhatsapp"
	"github.com/epimex/screenbot/internal/whatsapp"
)

func TestCanonicalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+52 55 1111 1111", "525511111111", false},
		{"whatsapp:+5215511111111", "5215511111111", false},
		{"5511111111", "5511111111", false},
		{"", "", true},
		{"abc", "", true},
		{"123", "", true},
	}
	for _, c := range cases {
		got, err := canonicalizePhone(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("canonicalizePhone(%q) expected error, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("canonicalizePhone(%q) unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("canonicalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWhatsAppServiceSendEmitsReceipt(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := svc.SendMessage(ctx, "+5215511111111", "hola"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.To != "5215511111111" {
			t.Errorf("receipt recipient = %q, want canonical digits", receipt.To)
		}
		if receipt.Status != models.MessageStatusSent {
			t.Errorf("receipt status = %q, want %q", receipt.Status, models.MessageStatusSent)
		}
	case <-time.After(time.Second):
		t.Fatal("no receipt emitted after SendMessage")
	}
}

func TestWhatsAppServiceRejectsInvalidRecipient(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.SendMessage(context.Background(), "not-a-number", "hola"); err == nil {
		t.Error("expected error for recipient with no digits")
	}
}

func TestTwilioServiceWebhook(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+5215511111111")
	form.Set("Body", "quiero participar")
	req := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)
	if rec.Code != 200 {
		t.Fatalf("webhook status = %d, want 200", rec.Code)
	}

	select {
	case resp := <-svc.Responses():
		if resp.From != "whatsapp:+5215511111111" {
			t.Errorf("response From = %q", resp.From)
		}
		if resp.Body != "quiero participar" {
			t.Errorf("response Body = %q", resp.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("webhook did not emit a response")
	}
}

func TestTwilioServiceWebhookMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+5215511111111")
	req := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)
	if rec.Code != 400 {
		t.Errorf("webhook status = %d, want 400 for missing Body", rec.Code)
	}
}

func TestTwilioServiceStoppedRejectsSend(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "+5215511111111", "hola"); err != ErrServiceStopped {
		t.Errorf("SendMessage after Stop = %v, want ErrServiceStopped", err)
	}
	if len(mock.SentMessages) != 0 {
		t.Errorf("stopped service sent %d messages", len(mock.SentMessages))
	}
}

// recordingHandler records handled messages and replies with a fixed echo.
type recordingHandler struct {
	mu      sync.Mutex
	handled []string
}

func (h *recordingHandler) HandleMessage(ctx context.Context, from string, body string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, from+":"+body)
	return "respuesta a " + body
}

func TestDispatcherRoutesMessagesSerially(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	handler := &recordingHandler{}
	dispatcher := NewDispatcher(svc, handler)

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(ctx)

	for i := 0; i < 3; i++ {
		form := url.Values{}
		form.Set("From", "whatsapp:+5215511111111")
		form.Set("Body", []string{"hola", "2", "Ana"}[i])
		req := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		svc.WebhookHandler(httptest.NewRecorder(), req)
	}

	deadline := time.After(2 * time.Second)
	for {
		handler.mu.Lock()
		n := len(handler.handled)
		handler.mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("handled %d of 3 messages before timeout", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	dispatcher.Wait()

	handler.mu.Lock()
	defer handler.mu.Unlock()
	want := []string{
		"+5215511111111:hola",
		"+5215511111111:2",
		"+5215511111111:Ana",
	}
	for i, w := range want {
		if handler.handled[i] != w {
			t.Errorf("handled[%d] = %q, want %q", i, handler.handled[i], w)
		}
	}
}

func TestDispatcherDropsInvalidSenders(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	handler := &recordingHandler{}
	dispatcher := NewDispatcher(svc, handler)

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(ctx)
	defer func() {
		cancel()
		dispatcher.Wait()
	}()

	dispatcher.enqueue(ctx, models.Response{From: "???", Body: "hola"})
	time.Sleep(50 * time.Millisecond)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.handled) != 0 {
		t.Errorf("invalid sender was handled: %v", handler.handled)
	}
}
