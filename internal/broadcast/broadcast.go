package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"clipbot/internal/transport"
)

// Summary is what the admin sees: aggregate counts only, never per-recipient
// detail.
type Summary struct {
	Sent   int
	Failed int
}

type Config struct {
	Workers    int
	RatePerSec int
}

// Engine fans a text message out to every recipient. Per-recipient failures
// (blocked bot, deactivated account) are counted and suppressed; one bad
// recipient never stops the rest. Best-effort: no retry, no ordering.
type Engine struct {
	msgr transport.Messenger
	log  zerolog.Logger

	mu      sync.Mutex
	workers int
	limiter *rate.Limiter
}

func New(cfg Config, msgr transport.Messenger, log zerolog.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 25
	}
	return &Engine{
		msgr:    msgr,
		log:     log,
		workers: cfg.Workers,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Apply swaps pacing settings at runtime. In-flight broadcasts keep the
// limiter they started with.
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg.Workers > 0 {
		e.workers = cfg.Workers
	}
	if cfg.RatePerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
}

// Send delivers text to every recipient and blocks until all attempts have
// finished. Cancelling ctx stops the pacing waits; remaining recipients are
// counted as failed.
func (e *Engine) Send(ctx context.Context, text string, recipients []int64) Summary {
	e.mu.Lock()
	workers := e.workers
	lim := e.limiter
	e.mu.Unlock()
	if len(recipients) > 0 && workers > len(recipients) {
		workers = len(recipients)
	}

	start := time.Now()
	var sent, failed atomic.Int64
	jobs := make(chan int64)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for id := range jobs {
				if err := lim.Wait(ctx); err != nil {
					failed.Add(1)
					continue
				}
				if _, err := e.msgr.SendText(ctx, transport.ChatTarget{ChatID: id}, text, nil); err != nil {
					failed.Add(1)
					e.log.Debug().Int64("chat_id", id).Err(err).Msg("broadcast send failed")
					continue
				}
				sent.Add(1)
			}
		}()
	}
	for _, id := range recipients {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	sum := Summary{Sent: int(sent.Load()), Failed: int(failed.Load())}
	ev := e.log.Info()
	if sum.Failed > 0 {
		ev = e.log.Warn()
	}
	ev.Int("total", len(recipients)).Int("sent", sum.Sent).Int("failed", sum.Failed).
		Dur("took", time.Since(start)).Msg("broadcast finished")
	return sum
}
