package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/brollweave/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (a *Adapter) Normalize(ctx context.Context, in, out string, p types.Profile) error {
	return a.run(ctx, "normalize",
		"-y",
		"-i", in,
		"-vf", fmt.Sprintf("scale=%d:%d", p.Width, p.Height),
		"-r", strconv.Itoa(p.FPS),
		"-c:v", p.VideoCodec,
		"-c:a", p.AudioCodec,
		out,
	)
}

func (a *Adapter) ExtractAudio(ctx context.Context, in, out string) error {
	return a.run(ctx, "extract audio",
		"-y",
		"-i", in,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "44100",
		"-ac", "2",
		"-b:a", "128k",
		out,
	)
}

func (a *Adapter) TrimHead(ctx context.Context, in, out string, seconds int) error {
	return a.run(ctx, "trim head",
		"-y",
		"-i", in,
		"-t", strconv.Itoa(seconds),
		"-c", "copy",
		out,
	)
}

func (a *Adapter) TrimFrom(ctx context.Context, in, out string, offset int) error {
	return a.run(ctx, "trim from",
		"-y",
		"-i", in,
		"-ss", strconv.Itoa(offset),
		"-c", "copy",
		out,
	)
}

func (a *Adapter) ExtractChunk(ctx context.Context, in, out string, start, duration int) error {
	return a.run(ctx, "extract chunk",
		"-y",
		"-ss", strconv.Itoa(start),
		"-t", strconv.Itoa(duration),
		"-i", in,
		"-c", "copy",
		out,
	)
}

func (a *Adapter) PrepareOverlayClip(ctx context.Context, in, out string, seconds int, p types.Profile) error {
	return a.run(ctx, "prepare overlay clip",
		"-y",
		"-i", in,
		"-t", strconv.Itoa(seconds),
		"-vf", fmt.Sprintf("scale=%d:%d,setpts=PTS-STARTPTS", p.Width, p.Height),
		"-r", strconv.Itoa(p.FPS),
		"-c:v", p.VideoCodec,
		"-preset", "veryfast",
		out,
	)
}

func (a *Adapter) Overlay(ctx context.Context, base, clip, out string, windowStart, windowEnd int) error {
	// -map 0:a carries the base audio through untouched; the overlay only
	// ever replaces pixels.
	filter := fmt.Sprintf(
		"[0:v][1:v] overlay=enable='between(t,%d,%d)':eof_action=stop,format=auto",
		windowStart, windowEnd,
	)
	return a.run(ctx, "overlay",
		"-y",
		"-i", base,
		"-i", clip,
		"-filter_complex", filter,
		"-map", "0:a",
		"-c:v", "libx264",
		"-c:a", "aac",
		out,
	)
}

func (a *Adapter) Concatenate(ctx context.Context, inputs []string, listPath, out string) error {
	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("ffmpeg concatenate: resolve %q: %w", in, err)
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("ffmpeg concatenate: write manifest: %w", err)
	}
	return a.run(ctx, "concatenate",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		out,
	)
}

func (a *Adapter) ProbeDuration(ctx context.Context, in string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		in,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func (a *Adapter) run(ctx context.Context, op string, args ...string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w\n%s", op, err, string(b))
	}
	return nil
}
