package bot

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clipbot/internal/broadcast"
	"clipbot/internal/fetch"
	"clipbot/internal/transport"
)

// Store is the slice of persistence the dispatcher needs.
type Store interface {
	UpsertUser(ctx context.Context, id int64, username string) error
	IsBanned(ctx context.Context, id int64) (bool, error)
	SetBanned(ctx context.Context, id int64, banned bool) error
	UserCount(ctx context.Context) (int64, error)
	DownloadCount(ctx context.Context) (int64, error)
	ListActiveUserIDs(ctx context.Context) ([]int64, error)
	IncrementDownloads(ctx context.Context) error
}

// Admitter decides whether a user's fetch may proceed right now.
type Admitter interface {
	Admit(userID int64, now time.Time) (bool, time.Duration)
}

// Fetcher is the admission-controlled fetch pool.
type Fetcher interface {
	Submit(url string, done func(*fetch.Artifact, error)) error
}

// Broadcaster fans a message out to a recipient list.
type Broadcaster interface {
	Send(ctx context.Context, text string, recipients []int64) broadcast.Summary
}

type Config struct {
	AdminID     int64
	ListenAddr  string
	WebhookBase string
	QueueSize   int
}

// Dispatcher owns the webhook endpoint and the per-event state machine. A
// single consumer goroutine drains the event queue, which keeps ban and
// admission checks in arrival order per user; fetches and broadcasts run on
// their own pools so the loop never blocks on them.
type Dispatcher struct {
	cfg     Config
	log     zerolog.Logger
	msgr    transport.Messenger
	dec     transport.Decoder
	store   Store
	limiter Admitter
	fetcher Fetcher
	bcast   Broadcaster

	events chan transport.Event
	srv    *http.Server
	wg     sync.WaitGroup

	// armed holds admin sessions waiting for a broadcast payload (one-shot).
	armedMu sync.Mutex
	armed   map[int64]bool
}

func New(cfg Config, msgr transport.Messenger, dec transport.Decoder, st Store, lim Admitter, f Fetcher, bc Broadcaster, log zerolog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	return &Dispatcher{
		cfg:     cfg,
		log:     log,
		msgr:    msgr,
		dec:     dec,
		store:   st,
		limiter: lim,
		fetcher: f,
		bcast:   bc,
		events:  make(chan transport.Event, cfg.QueueSize),
		armed:   make(map[int64]bool),
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	hookURL := strings.TrimRight(d.cfg.WebhookBase, "/") + "/webhook"
	if err := d.msgr.RegisterWebhook(ctx, hookURL); err != nil {
		return err
	}

	d.wg.Add(1)
	go d.loop(ctx)

	d.srv = &http.Server{
		Addr:              d.cfg.ListenAddr,
		Handler:           d.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.log.Error().Err(err).Msg("webhook server failed")
		}
	}()

	d.log.Info().Str("listen", d.cfg.ListenAddr).Str("webhook", hookURL).Msg("dispatcher started")
	return nil
}

// Stop shuts down the HTTP endpoint and waits for in-flight event handling.
// The event loop itself exits with the context passed to Start.
func (d *Dispatcher) Stop(ctx context.Context) error {
	var err error
	if d.srv != nil {
		err = d.srv.Shutdown(ctx)
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			d.route(ctx, ev)
		}
	}
}

func (d *Dispatcher) reply(ctx context.Context, to transport.ChatTarget, text string) {
	d.replyOpt(ctx, to, text, nil)
}

func (d *Dispatcher) replyOpt(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) {
	if _, err := d.msgr.SendText(ctx, to, text, opt); err != nil {
		d.log.Warn().Int64("chat_id", to.ChatID).Err(err).Msg("reply failed")
	}
}
