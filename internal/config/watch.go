package config

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounce absorbs the burst of WRITE/CREATE/RENAME events editors produce
// when saving a file.
const debounce = 250 * time.Millisecond

// Watch reloads the tuning file after edits and hands the result to onChange.
// The watch is on the parent directory: editors replace files on save, which
// would drop a watch installed on the file itself. A failed reload keeps the
// previous tuning in effect.
func Watch(ctx context.Context, path string, log zerolog.Logger, onChange func(Tuning)) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return err
	}
	base := filepath.Base(path)

	go func() {
		defer w.Close()
		var timer *time.Timer
		var timerC <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
					timerC = timer.C
				} else {
					timer.Reset(debounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("tuning watcher error")
			case <-timerC:
				t, err := LoadTuning(path)
				if err != nil {
					log.Warn().Err(err).Msg("tuning reload failed, keeping previous values")
					continue
				}
				log.Info().Msg("tuning reloaded")
				onChange(t)
			}
		}
	}()
	return nil
}
