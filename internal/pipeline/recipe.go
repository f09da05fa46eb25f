package pipeline

import (
	"context"

	"github.com/forPelevin/brollweave/internal/types"
)

const (
	// overlaySeconds is how long an overlaid B-roll clip stays on screen.
	overlaySeconds = 5
	// chunkSeconds bounds the cost of every stage in the chunked recipe to
	// one slice of the main video.
	chunkSeconds = 30
	// maxOutputSeconds caps the spliced output; concatenation is the only
	// combine strategy that can make the output longer than its input.
	maxOutputSeconds = 30
	// spliceAdvisoryCeiling keeps splice suggestions within the capped
	// portion of the output even for long inputs.
	spliceAdvisoryCeiling = 30
)

// recipe parameterizes the one shared stage sequence. Rather than three
// near-duplicate pipelines, the orchestrator varies the normalize profile,
// the advisory upper bound and the combine strategy.
type recipe struct {
	profile types.Profile

	// chunked extracts a bounded slice of the main video before
	// normalizing, so later stages never read outside it.
	chunked bool

	// normalizeBroll re-encodes the B-roll to the shared profile during
	// NORMALIZING. Required for concatenation; the overlay strategies
	// prepare the B-roll themselves while combining.
	normalizeBroll bool

	// upperBound derives the half-open advisory bound [0, upperBound) from
	// the probed duration of the segment being spliced or overlaid.
	upperBound func(mainSeconds int) int

	combine func(ctx context.Context, o *Orchestrator, j *jobState) error
}

var recipes = map[types.Recipe]recipe{
	types.RecipeSplice: {
		profile:        types.Profile{Width: 1280, Height: 720, FPS: 30, VideoCodec: "libx264", AudioCodec: "aac"},
		normalizeBroll: true,
		upperBound: func(mainSeconds int) int {
			if mainSeconds > spliceAdvisoryCeiling {
				return spliceAdvisoryCeiling
			}
			return mainSeconds
		},
		combine: combineSplice,
	},
	types.RecipeOverlay: {
		profile: types.Profile{Width: 640, Height: 360, FPS: 24, VideoCodec: "libx264", AudioCodec: "aac"},
		upperBound: func(mainSeconds int) int {
			return mainSeconds - overlaySeconds
		},
		combine: combineOverlay,
	},
	types.RecipeChunkedOverlay: {
		profile: types.Profile{Width: 480, Height: 270, FPS: 20, VideoCodec: "libx264", AudioCodec: "aac"},
		chunked: true,
		upperBound: func(mainSeconds int) int {
			return mainSeconds - overlaySeconds
		},
		combine: combineOverlay,
	},
}

func recipeFor(r types.Recipe) (recipe, bool) {
	rc, ok := recipes[r]
	return rc, ok
}
