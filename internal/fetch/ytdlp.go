package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// YTDLP shells out to the yt-dlp binary. The binary resolves the page,
// negotiates formats and merges audio+video; this wrapper only passes bounds
// and parses the info JSON printed by -j --no-simulate.
type YTDLP struct {
	// Bin defaults to "yt-dlp" on PATH.
	Bin string
	Log zerolog.Logger
}

type ytdlpInfo struct {
	Duration           float64 `json:"duration"`
	Filename           string  `json:"_filename"`
	RequestedDownloads []struct {
		Filepath string `json:"filepath"`
	} `json:"requested_downloads"`
}

func (y *YTDLP) Extract(ctx context.Context, url, outPattern string, maxHeight int) (Info, error) {
	bin := y.Bin
	if bin == "" {
		bin = "yt-dlp"
	}
	format := "b"
	if maxHeight > 0 {
		format = fmt.Sprintf("bv*[height<=%d]+ba/b[height<=%d]/b", maxHeight, maxHeight)
	}
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--restrict-filenames",
		"-f", format,
		"-o", outPattern,
		"-j", "--no-simulate",
		"--", url,
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return Info{}, classifyExtract(ctx, err, stderr.String())
	}

	var info ytdlpInfo
	if err := json.Unmarshal(firstLine(stdout.Bytes()), &info); err != nil {
		return Info{}, &Error{Kind: ErrUnknown, Err: fmt.Errorf("parse yt-dlp output: %w", err)}
	}
	path := info.Filename
	if len(info.RequestedDownloads) > 0 && info.RequestedDownloads[0].Filepath != "" {
		path = info.RequestedDownloads[0].Filepath
	}
	if path == "" {
		return Info{}, &Error{Kind: ErrUnknown, Err: errors.New("yt-dlp reported no output file")}
	}

	y.Log.Debug().Str("url", url).Dur("took", time.Since(start)).Msg("extraction finished")
	return Info{Path: path, Duration: time.Duration(info.Duration * float64(time.Second))}, nil
}

// transientMarkers are stderr fragments indicating a retryable condition.
var transientMarkers = []string{
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
	"temporary failure",
	"http error 429",
	"http error 502",
	"http error 503",
	"unable to download",
}

func classifyExtract(ctx context.Context, err error, stderr string) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTransient, Err: fmt.Errorf("extraction timed out: %w", err)}
	}
	low := strings.ToLower(stderr)
	for _, m := range transientMarkers {
		if strings.Contains(low, m) {
			return &Error{Kind: ErrTransient, Err: fmt.Errorf("%v: %s", err, tail(stderr, 300))}
		}
	}
	return &Error{Kind: ErrUnknown, Err: fmt.Errorf("%v: %s", err, tail(stderr, 300))}
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i]
	}
	return b
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
