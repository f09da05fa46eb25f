package pipeline

import (
	"fmt"
	"strings"
)

// Stage identifies how far a job progressed. Progression is strictly
// linear; the stage is reported on failure so callers can tell which
// collaborator broke.
type Stage string

const (
	StageAcquiring       Stage = "acquiring"
	StageNormalizing     Stage = "normalizing"
	StageExtractingAudio Stage = "extracting-audio"
	StageTranscribing    Stage = "transcribing"
	StageDeciding        Stage = "deciding"
	StageCombining       Stage = "combining"
	StageFinalizing      Stage = "finalizing"
)

// StageError wraps a fatal job error with the stage it happened in. A
// StageError aborts the job: no later stage runs.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// AcquisitionError means a remote source could not be fetched.
type AcquisitionError struct {
	URL string
	Err error
}

func (e *AcquisitionError) Error() string { return fmt.Sprintf("acquire %s: %v", e.URL, e.Err) }
func (e *AcquisitionError) Unwrap() error { return e.Err }

// TranscodeError means an engine operation failed. It carries the failed
// operation and its inputs; no partial output is returned.
type TranscodeError struct {
	Op     string
	Inputs []string
	Err    error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s (%s): %v", e.Op, strings.Join(e.Inputs, ", "), e.Err)
}
func (e *TranscodeError) Unwrap() error { return e.Err }

// TranscriptionError means speech-to-text failed or produced nothing.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcribe: %v", e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }
