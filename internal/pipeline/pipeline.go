// Package pipeline sequences one job through acquire → normalize →
// extract-audio → transcribe → decide → combine → finalize. Stages run
// strictly in order; every stage's artifact must be fully written before
// the next begins. All media work goes through the adapter ports; the
// orchestrator only owns sequencing, validation and failure handling.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forPelevin/brollweave/internal/domain/insertion"
	"github.com/forPelevin/brollweave/internal/ports"
	"github.com/forPelevin/brollweave/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/brollweave/internal/ports/adapters/httpfetch"
	"github.com/forPelevin/brollweave/internal/ports/adapters/openrouter"
	"github.com/forPelevin/brollweave/internal/ports/adapters/whisperapi"
	"github.com/forPelevin/brollweave/internal/store"
	"github.com/forPelevin/brollweave/internal/types"
)

type Config struct {
	FFmpegPath  string
	FFprobePath string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	WhisperModel  string

	OpenRouterAPIKey       string
	OpenRouterModel        string
	OpenRouterBaseURL      string
	OpenRouterAllowedHosts []string

	// StageTimeout bounds each external engine/service call so an
	// unresponsive collaborator cannot pin a worker forever. Zero disables
	// the bound.
	StageTimeout time.Duration
}

func (c Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.OpenRouterAPIKey == "" {
		return errors.New("OPENROUTER_API_KEY is required")
	}
	return openrouter.ValidateBaseURL(c.OpenRouterBaseURL, c.OpenRouterAllowedHosts)
}

type Deps struct {
	Store   *store.Store
	Fetcher ports.Fetcher
	Video   ports.Transcoder
	ASR     ports.Transcriber
	LLM     ports.Advisor

	Logger       *zap.Logger
	StageTimeout time.Duration
}

type Orchestrator struct {
	d Deps
}

// New assembles the production adapters around the given artifact store.
func New(cfg Config, st *store.Store, log *zap.Logger) *Orchestrator {
	return NewWithDeps(Deps{
		Store:        st,
		Fetcher:      httpfetch.New(nil),
		Video:        ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath),
		ASR:          whisperapi.New(cfg.OpenAIAPIKey, cfg.WhisperModel, cfg.OpenAIBaseURL),
		LLM:          openrouter.New(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterBaseURL),
		Logger:       log,
		StageTimeout: cfg.StageTimeout,
	})
}

func NewWithDeps(d Deps) *Orchestrator {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Orchestrator{d: d}
}

// Request is one job's input.
type Request struct {
	Recipe     types.Recipe
	MainURL    string
	BrollURL   string
	ChunkStart int
}

type jobState struct {
	id         string
	req        Request
	rc         recipe
	log        *zap.Logger
	transcript string
	point      int
	result     types.Result
}

// Run executes one job to completion. The job either reaches DONE and
// returns a result pointing at a playable artifact, or fails with a
// *StageError naming the stage that broke. Advisory misbehavior never
// fails a job; it degrades to the fallback insertion point.
func (o *Orchestrator) Run(ctx context.Context, req Request) (types.Result, error) {
	rc, ok := recipeFor(req.Recipe)
	if !ok {
		return types.Result{}, fmt.Errorf("unknown recipe %q", req.Recipe)
	}
	if req.MainURL == "" {
		return types.Result{}, errors.New("main video URL is required")
	}
	if req.BrollURL == "" {
		return types.Result{}, errors.New("a B-roll URL is required")
	}
	if req.ChunkStart < 0 {
		return types.Result{}, fmt.Errorf("chunk start must be >= 0, got %d", req.ChunkStart)
	}

	j := &jobState{
		id:  store.NewJobID(),
		req: req,
		rc:  rc,
	}
	j.log = o.d.Logger.With(zap.String("job_id", j.id), zap.String("recipe", string(req.Recipe)))

	if err := o.d.Store.InitJob(j.id); err != nil {
		return types.Result{}, err
	}
	j.log.Info("job started",
		zap.String("main_url", req.MainURL),
		zap.String("broll_url", req.BrollURL))

	steps := []struct {
		stage Stage
		run   func(context.Context, *jobState) error
	}{
		{StageAcquiring, o.acquire},
		{StageNormalizing, o.normalize},
		{StageExtractingAudio, o.extractAudio},
		{StageTranscribing, o.transcribe},
		{StageDeciding, o.decide},
		{StageCombining, o.combine},
		{StageFinalizing, o.finalize},
	}
	for _, step := range steps {
		if err := step.run(ctx, j); err != nil {
			j.log.Error("job failed", zap.String("stage", string(step.stage)), zap.Error(err))
			return types.Result{}, &StageError{Stage: step.stage, Err: err}
		}
		j.log.Debug("stage complete", zap.String("stage", string(step.stage)))
	}

	j.log.Info("job done",
		zap.Int("insertion_point", j.point),
		zap.String("output", j.result.OutputRef))
	return j.result, nil
}

func (o *Orchestrator) acquire(ctx context.Context, j *jobState) error {
	if err := o.fetch(ctx, j.req.MainURL, o.path(j, types.RoleRawMain)); err != nil {
		return &AcquisitionError{URL: j.req.MainURL, Err: err}
	}
	if err := o.fetch(ctx, j.req.BrollURL, o.path(j, types.RoleRawBroll)); err != nil {
		return &AcquisitionError{URL: j.req.BrollURL, Err: err}
	}
	return nil
}

func (o *Orchestrator) normalize(ctx context.Context, j *jobState) error {
	in := o.path(j, types.RoleRawMain)

	if j.rc.chunked {
		chunk := o.path(j, types.RoleChunk)
		err := o.call(ctx, func(c context.Context) error {
			return o.d.Video.ExtractChunk(c, in, chunk, j.req.ChunkStart, chunkSeconds)
		})
		if err != nil {
			return &TranscodeError{Op: "extract-chunk", Inputs: []string{in}, Err: err}
		}
		in = chunk
	}

	out := o.path(j, types.RoleNormalizedMain)
	err := o.call(ctx, func(c context.Context) error {
		return o.d.Video.Normalize(c, in, out, j.rc.profile)
	})
	if err != nil {
		return &TranscodeError{Op: "normalize", Inputs: []string{in}, Err: err}
	}

	if j.rc.normalizeBroll {
		rawBroll := o.path(j, types.RoleRawBroll)
		normBroll := o.path(j, types.RoleNormalizedBroll)
		err := o.call(ctx, func(c context.Context) error {
			return o.d.Video.Normalize(c, rawBroll, normBroll, j.rc.profile)
		})
		if err != nil {
			return &TranscodeError{Op: "normalize", Inputs: []string{rawBroll}, Err: err}
		}
	}
	return nil
}

func (o *Orchestrator) extractAudio(ctx context.Context, j *jobState) error {
	in := o.path(j, types.RoleNormalizedMain)
	out := o.path(j, types.RoleAudio)
	err := o.call(ctx, func(c context.Context) error {
		return o.d.Video.ExtractAudio(c, in, out)
	})
	if err != nil {
		return &TranscodeError{Op: "extract-audio", Inputs: []string{in}, Err: err}
	}
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, j *jobState) error {
	audio := o.path(j, types.RoleAudio)
	var text string
	err := o.call(ctx, func(c context.Context) error {
		var trErr error
		text, trErr = o.d.ASR.Transcribe(c, audio)
		return trErr
	})
	if err != nil {
		return &TranscriptionError{Err: err}
	}
	j.transcript = text
	return nil
}

func (o *Orchestrator) decide(ctx context.Context, j *jobState) error {
	normMain := o.path(j, types.RoleNormalizedMain)
	var dur time.Duration
	err := o.call(ctx, func(c context.Context) error {
		var pErr error
		dur, pErr = o.d.Video.ProbeDuration(c, normMain)
		return pErr
	})
	if err != nil {
		return &TranscodeError{Op: "probe-duration", Inputs: []string{normMain}, Err: err}
	}

	upper := j.rc.upperBound(int(dur.Seconds()))

	var raw string
	err = o.call(ctx, func(c context.Context) error {
		var aErr error
		raw, aErr = o.d.LLM.Suggest(c, j.transcript, upper)
		return aErr
	})
	if err != nil {
		// The advisory service is allowed to misbehave; the insertion
		// decision degrades to the fallback instead of aborting the job.
		j.log.Warn("advisory call failed, using fallback", zap.Error(err))
		raw = ""
	}

	j.point = insertion.Decide(raw, upper)
	j.log.Info("insertion point decided",
		zap.Int("upper_bound", upper),
		zap.String("raw_suggestion", raw),
		zap.Int("insertion_point", j.point))
	return nil
}

func (o *Orchestrator) combine(ctx context.Context, j *jobState) error {
	return j.rc.combine(ctx, o, j)
}

func combineSplice(ctx context.Context, o *Orchestrator, j *jobState) error {
	normMain := o.path(j, types.RoleNormalizedMain)
	normBroll := o.path(j, types.RoleNormalizedBroll)
	pre := o.path(j, types.RolePreSegment)
	post := o.path(j, types.RolePostSegment)
	list := o.path(j, types.RoleConcatManifest)
	joined := o.path(j, types.RoleJoined)
	out := o.path(j, types.RoleFinalOutput)

	err := o.call(ctx, func(c context.Context) error {
		return o.d.Video.TrimHead(c, normMain, pre, j.point)
	})
	if err != nil {
		return &TranscodeError{Op: "trim-head", Inputs: []string{normMain}, Err: err}
	}

	err = o.call(ctx, func(c context.Context) error {
		return o.d.Video.TrimFrom(c, normMain, post, j.point)
	})
	if err != nil {
		return &TranscodeError{Op: "trim-from", Inputs: []string{normMain}, Err: err}
	}

	inputs := []string{pre, normBroll, post}
	err = o.call(ctx, func(c context.Context) error {
		return o.d.Video.Concatenate(c, inputs, list, joined)
	})
	if err != nil {
		return &TranscodeError{Op: "concatenate", Inputs: inputs, Err: err}
	}

	// Output cap: min(pre + broll + post, maxOutputSeconds).
	err = o.call(ctx, func(c context.Context) error {
		return o.d.Video.TrimHead(c, joined, out, maxOutputSeconds)
	})
	if err != nil {
		return &TranscodeError{Op: "trim-head", Inputs: []string{joined}, Err: err}
	}
	return nil
}

func combineOverlay(ctx context.Context, o *Orchestrator, j *jobState) error {
	rawBroll := o.path(j, types.RoleRawBroll)
	trimmed := o.path(j, types.RoleTrimmedBroll)
	normMain := o.path(j, types.RoleNormalizedMain)
	out := o.path(j, types.RoleFinalOutput)

	err := o.call(ctx, func(c context.Context) error {
		return o.d.Video.PrepareOverlayClip(c, rawBroll, trimmed, overlaySeconds, j.rc.profile)
	})
	if err != nil {
		return &TranscodeError{Op: "prepare-overlay-clip", Inputs: []string{rawBroll}, Err: err}
	}

	err = o.call(ctx, func(c context.Context) error {
		return o.d.Video.Overlay(c, normMain, trimmed, out, j.point, j.point+overlaySeconds)
	})
	if err != nil {
		return &TranscodeError{Op: "overlay", Inputs: []string{normMain, trimmed}, Err: err}
	}
	return nil
}

func (o *Orchestrator) finalize(_ context.Context, j *jobState) error {
	if !o.d.Store.Exists(j.id, types.RoleFinalOutput) {
		return fmt.Errorf("final artifact missing for job %s", j.id)
	}
	j.result = types.Result{
		JobID:          j.id,
		Recipe:         j.req.Recipe,
		InsertionPoint: j.point,
		Transcript:     j.transcript,
		ChunkStart:     j.req.ChunkStart,
		OutputPath:     o.path(j, types.RoleFinalOutput),
		OutputRef:      o.d.Store.DownloadRef(j.id, types.RoleFinalOutput),
	}
	if j.req.Recipe != types.RecipeSplice {
		j.result.BrollDuration = overlaySeconds
	}
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, url, dest string) error {
	return o.call(ctx, func(c context.Context) error {
		return o.d.Fetcher.Fetch(c, url, dest)
	})
}

func (o *Orchestrator) path(j *jobState, role types.Role) string {
	return o.d.Store.Allocate(j.id, role)
}

// call runs one external engine/service call under the per-stage deadline.
func (o *Orchestrator) call(ctx context.Context, fn func(context.Context) error) error {
	if o.d.StageTimeout <= 0 {
		return fn(ctx)
	}
	c, cancel := context.WithTimeout(ctx, o.d.StageTimeout)
	defer cancel()
	return fn(c)
}

// ensure adapters implement ports
var (
	_ ports.Fetcher     = (*httpfetch.Adapter)(nil)
	_ ports.Transcoder  = (*ffmpeg.Adapter)(nil)
	_ ports.Transcriber = (*whisperapi.Adapter)(nil)
	_ ports.Advisor     = (*openrouter.Adapter)(nil)
)
