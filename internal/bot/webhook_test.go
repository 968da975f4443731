package bot

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clipbot/internal/ratelimit"
	"clipbot/internal/transport"
)

func newWebhookDispatcher(dec transport.Decoder, queueSize int) *Dispatcher {
	cfg := Config{AdminID: testAdminID, QueueSize: queueSize}
	return New(cfg, newFakeMessenger(), dec, newFakeStore(), ratelimit.New(30*time.Second), &fakeFetcher{}, &fakeBroadcaster{}, zerolog.Nop())
}

func TestWebhookAcceptsAndQueues(t *testing.T) {
	ev := textEvent(1, "hi")
	d := newWebhookDispatcher(&fakeDecoder{ev: ev}, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{"update_id":1}`))
	d.routes().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != `{"ok":true}` {
		t.Fatalf("body = %q", body)
	}
	select {
	case got := <-d.events:
		if got.FromID() != 1 {
			t.Fatalf("queued event from %d, want 1", got.FromID())
		}
	default:
		t.Fatalf("event not queued")
	}
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	d := newWebhookDispatcher(&fakeDecoder{err: errDecode}, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("not json"))
	d.routes().ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(d.events) != 0 {
		t.Fatalf("bad payload was queued")
	}
}

func TestWebhookSignalsBackpressure(t *testing.T) {
	d := newWebhookDispatcher(&fakeDecoder{ev: textEvent(1, "hi")}, 1)
	d.events <- textEvent(2, "filler")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{"update_id":2}`))
	d.routes().ServeHTTP(rec, req)

	if rec.Code != 503 {
		t.Fatalf("status = %d, want 503 when the queue is full", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	d := newWebhookDispatcher(&fakeDecoder{}, 1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	d.routes().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
