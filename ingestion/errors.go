package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrCollectionRequired is returned when a sink has no collection to write to.
	ErrCollectionRequired = errors.New("collection required")

	// ErrConnectorRequired is returned when a pipeline has no way to reach the store.
	ErrConnectorRequired = errors.New("connector required")

	// ErrAlreadyRunning is returned when Run is called on a pipeline that is running.
	ErrAlreadyRunning = errors.New("pipeline already running")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// Stage is a pipeline state.
type Stage int32

const (
	StageIdle Stage = iota
	StageConnecting
	StageLoading
	StageSplitting
	StageEmbeddingAndStoring
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageConnecting:
		return "connecting"
	case StageLoading:
		return "loading"
	case StageSplitting:
		return "splitting"
	case StageEmbeddingAndStoring:
		return "embedding_and_storing"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int32(s))
	}
}

// StageError records the stage a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return StageIdle, false
}
