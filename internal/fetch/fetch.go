package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type MediaKind string

const (
	KindVideo    MediaKind = "video"
	KindDocument MediaKind = "document"
)

// Artifact is the transient local file a fetch produced. The executor owns it
// until the done callback runs; the callback must remove the file once the
// relay has succeeded or failed.
type Artifact struct {
	Path     string
	Size     int64
	Kind     MediaKind
	Duration time.Duration
	// Large marks artifacts above the policy size threshold so the caller
	// relays them as a plain document instead of inline video.
	Large bool
}

type ErrKind int

const (
	ErrTransient ErrKind = iota
	ErrTooLong
	ErrUnknown
)

func (k ErrKind) String() string {
	switch k {
	case ErrTransient:
		return "transient"
	case ErrTooLong:
		return "too_long"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure. The kind drives retry and logging
// only; users always see the same fixed failure message.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
	}
	return "fetch " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies an arbitrary fetch error; unclassified values count as
// unknown.
func KindOf(err error) ErrKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ErrUnknown
}

// Info is what an Extractor reports about a completed extraction.
type Info struct {
	Path     string
	Duration time.Duration
}

// Extractor resolves a URL to a local file written according to outPattern
// (a yt-dlp style output template ending in ".%(ext)s").
type Extractor interface {
	Extract(ctx context.Context, url, outPattern string, maxHeight int) (Info, error)
}

// Policy bounds a single fetch.
type Policy struct {
	MaxHeight      int
	MaxDuration    time.Duration
	RetryMax       int
	AttemptTimeout time.Duration
	LargeFileBytes int64
}
