package bot

import (
	"io"
	"net/http"
)

// maxWebhookBody bounds what we read from the platform; real update
// envelopes are a few KB.
const maxWebhookBody = 1 << 20

func (d *Dispatcher) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", d.handleWebhook)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// handleWebhook acknowledges as soon as the event is queued. The response
// never waits on a fetch or broadcast.
func (d *Dispatcher) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	ev, err := d.dec.Decode(body)
	if err != nil {
		d.log.Debug().Err(err).Msg("rejected webhook payload")
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	select {
	case d.events <- ev:
	default:
		// The consumer is behind; tell the platform to redeliver later
		// rather than silently dropping the event.
		http.Error(w, "queue full", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}
