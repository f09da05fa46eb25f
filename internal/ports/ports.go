package ports

import (
	"context"
	"time"

	"github.com/forPelevin/brollweave/internal/types"
)

// Fetcher streams a remote resource to a local path without buffering it
// fully in memory.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// Transcoder is the uniform contract over the external media engine. Every
// operation takes local artifact paths plus declarative parameters and
// produces exactly one new artifact. Callers are responsible for only
// concatenating inputs that share one normalize profile.
type Transcoder interface {
	Normalize(ctx context.Context, in, out string, p types.Profile) error
	ExtractAudio(ctx context.Context, in, out string) error

	// TrimHead keeps the first seconds of in; TrimFrom keeps everything
	// from offset to the end. A splice needs both halves of a cut.
	TrimHead(ctx context.Context, in, out string, seconds int) error
	TrimFrom(ctx context.Context, in, out string, offset int) error

	// ExtractChunk copies [start, start+duration) of in via stream copy.
	ExtractChunk(ctx context.Context, in, out string, start, duration int) error

	// PrepareOverlayClip trims in to the given duration, rescales it to the
	// profile and resets its timestamps to start at zero so it can be
	// composited from t=0 of the overlay window.
	PrepareOverlayClip(ctx context.Context, in, out string, seconds int, p types.Profile) error

	// Overlay composites clip onto base's video track during
	// [windowStart, windowEnd), keeping base's audio track unmodified for
	// the whole duration.
	Overlay(ctx context.Context, base, clip, out string, windowStart, windowEnd int) error

	// Concatenate joins inputs in order via a manifest written to listPath.
	Concatenate(ctx context.Context, inputs []string, listPath, out string) error

	ProbeDuration(ctx context.Context, in string) (time.Duration, error)
}

// Transcriber turns an audio artifact into plain transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Advisor asks the language-advisory service for an insertion time and
// returns the raw reply text. The reply is untrusted: parsing, fallback and
// clamping happen in one shared validation step downstream.
type Advisor interface {
	Suggest(ctx context.Context, transcript string, upperBound int) (string, error)
}
