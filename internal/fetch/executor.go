package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrBusy is returned by Submit when the queue is full.
var ErrBusy = errors.New("fetch queue is full")

// purgeGrace protects fetches still in flight: a purge never removes files
// younger than this. A fetch that both outlives the grace window and races a
// purge over threshold could still lose its file; with the default threshold
// that needs dozens of leaked artifacts at once, so the residual risk is
// accepted.
const purgeGrace = 15 * time.Minute

type Config struct {
	Workers        int
	QueueSize      int
	ScratchDir     string
	PurgeThreshold int
}

type job struct {
	url  string
	done func(*Artifact, error)
}

// Executor runs blocking extractions on a bounded worker pool so the event
// loop stays responsive. Policy can be swapped at runtime; each job reads it
// once when it starts.
type Executor struct {
	cfg  Config
	extr Extractor
	log  zerolog.Logger

	polMu  sync.Mutex
	policy Policy

	queue    chan job
	stopCh   chan struct{}
	workerWG sync.WaitGroup

	startMu sync.Mutex
	started bool
}

func New(cfg Config, policy Policy, extr Extractor, log zerolog.Logger) *Executor {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.PurgeThreshold <= 0 {
		cfg.PurgeThreshold = 50
	}
	return &Executor{
		cfg:    cfg,
		extr:   extr,
		log:    log,
		policy: policy,
		queue:  make(chan job, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
}

func (e *Executor) Start(ctx context.Context) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if e.started {
		return nil
	}
	if err := os.MkdirAll(e.cfg.ScratchDir, 0o755); err != nil {
		return fmt.Errorf("scratch dir: %w", err)
	}
	e.started = true

	e.workerWG.Add(e.cfg.Workers)
	for i := 0; i < e.cfg.Workers; i++ {
		idx := i
		go func() {
			defer e.workerWG.Done()
			e.worker(ctx, idx)
		}()
	}
	e.log.Info().Int("workers", e.cfg.Workers).Int("queue", cap(e.queue)).Msg("fetch executor started")
	return nil
}

// Stop waits for in-flight fetches to finish. Queued but unstarted jobs are
// abandoned; their done callbacks never run.
func (e *Executor) Stop() {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if !e.started {
		return
	}
	close(e.stopCh)
	e.workerWG.Wait()
}

// Submit queues a fetch. done runs on a worker goroutine with either the
// artifact or a classified error, never both.
func (e *Executor) Submit(url string, done func(*Artifact, error)) error {
	select {
	case e.queue <- job{url: url, done: done}:
		return nil
	default:
		return ErrBusy
	}
}

func (e *Executor) SetPolicy(p Policy) {
	e.polMu.Lock()
	e.policy = p
	e.polMu.Unlock()
}

func (e *Executor) currentPolicy() Policy {
	e.polMu.Lock()
	defer e.polMu.Unlock()
	return e.policy
}

func (e *Executor) worker(ctx context.Context, idx int) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case j := <-e.queue:
			e.runJob(ctx, idx, j)
		}
	}
}

// runJob recovers panics per job, not per worker: a panicking extractor or
// done callback must not shrink the pool. Unless done itself was mid-flight,
// the callback still receives a classified error so the caller can clean up.
func (e *Executor) runJob(ctx context.Context, idx int, j job) {
	doneCalled := false
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Int("worker", idx).Str("url", j.url).Any("panic", r).Str("stack", string(debug.Stack())).Msg("panic in fetch job")
			if !doneCalled {
				j.done(nil, &Error{Kind: ErrUnknown, Err: fmt.Errorf("fetch panicked: %v", r)})
			}
		}
	}()
	art, err := e.execOne(ctx, j.url)
	doneCalled = true
	j.done(art, err)
}

func (e *Executor) execOne(ctx context.Context, url string) (*Artifact, error) {
	pol := e.currentPolicy()
	e.maybePurge()

	// The filename comes from a fetch-scoped id, never from user input, so
	// concurrent fetches cannot collide and links cannot inject paths.
	pattern := filepath.Join(e.cfg.ScratchDir, uuid.NewString()+".%(ext)s")

	var lastErr error
	for attempt := 0; attempt <= pol.RetryMax; attempt++ {
		actx := ctx
		cancel := context.CancelFunc(func() {})
		if pol.AttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, pol.AttemptTimeout)
		}
		info, err := e.extr.Extract(actx, url, pattern, pol.MaxHeight)
		cancel()
		if err == nil {
			return e.finish(info, pol)
		}
		lastErr = err
		if KindOf(err) != ErrTransient || attempt == pol.RetryMax {
			break
		}
		e.log.Debug().Str("url", url).Int("attempt", attempt+1).Err(err).Msg("transient extraction failure, retrying")
	}

	var fe *Error
	if errors.As(lastErr, &fe) {
		return nil, fe
	}
	return nil, &Error{Kind: ErrUnknown, Err: lastErr}
}

func (e *Executor) finish(info Info, pol Policy) (*Artifact, error) {
	if pol.MaxDuration > 0 && info.Duration > pol.MaxDuration {
		_ = os.Remove(info.Path)
		return nil, &Error{Kind: ErrTooLong, Err: fmt.Errorf("duration %s exceeds limit %s", info.Duration, pol.MaxDuration)}
	}
	fi, err := os.Stat(info.Path)
	if err != nil {
		return nil, &Error{Kind: ErrUnknown, Err: fmt.Errorf("stat artifact: %w", err)}
	}
	a := &Artifact{
		Path:     info.Path,
		Size:     fi.Size(),
		Duration: info.Duration,
		Kind:     kindForExt(filepath.Ext(info.Path)),
	}
	if pol.LargeFileBytes > 0 && a.Size > pol.LargeFileBytes {
		a.Large = true
	}
	return a, nil
}

// maybePurge evicts the scratch area before a new fetch when it holds too
// many entries. Crude full purge rather than LRU: artifacts are meant to die
// right after relay, so anything accumulating here is already leaked.
func (e *Executor) maybePurge() {
	entries, err := os.ReadDir(e.cfg.ScratchDir)
	if err != nil || len(entries) < e.cfg.PurgeThreshold {
		return
	}
	if n := e.removeOlderThan(time.Now().Add(-purgeGrace)); n > 0 {
		e.log.Info().Int("removed", n).Msg("scratch directory purged")
	}
}

// SweepStale removes artifacts older than maxAge. Wired to a cron schedule so
// files leaked by relays that failed before cleanup do not pile up between
// threshold purges.
func (e *Executor) SweepStale(maxAge time.Duration) int {
	return e.removeOlderThan(time.Now().Add(-maxAge))
}

func (e *Executor) removeOlderThan(cutoff time.Time) int {
	entries, err := os.ReadDir(e.cfg.ScratchDir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		fi, err := ent.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(e.cfg.ScratchDir, ent.Name())); err == nil {
			removed++
		}
	}
	return removed
}

func kindForExt(ext string) MediaKind {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp4", "mov", "webm", "mkv":
		return KindVideo
	}
	return KindDocument
}
