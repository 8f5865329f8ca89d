// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the classification pipeline.
var (
	// ErrArtifactUnavailable means the model artifact could not be provisioned locally.
	ErrArtifactUnavailable = errors.New("model artifact unavailable")
	// ErrModelLoad means a local artifact exists but could not be turned into a model.
	ErrModelLoad = errors.New("model could not be loaded")
	// ErrInvalidImage means the supplied bytes are not a supported, decodable image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrExampleFetch means a preset example image could not be retrieved.
	ErrExampleFetch = errors.New("example image could not be fetched")

	// ErrMissingConfig means a required dependency or setting was not provided.
	ErrMissingConfig = errors.New("missing configuration")
)

// Stage names the step of the pipeline that failed.
type Stage string

// Pipeline stages.
const (
	StageArtifact Stage = "artifact"
	StageModel    Stage = "model"
	StageUpload   Stage = "upload"
	StageExample  Stage = "example"
	StageDecode   Stage = "decode"
	StageClassify Stage = "classify"
)

// StageError ties a failure to the stage that produced it and to one of the
// error kinds above. errors.Is matches both the kind and the underlying cause.
type StageError struct {
	Kind  error
	Err   error
	Stage Stage
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStageError wraps err as a failure of the given kind at the given stage.
func NewStageError(stage Stage, kind, err error) error {
	return &StageError{
		Stage: stage,
		Kind:  kind,
		Err:   err,
	}
}

// StageOf returns the failing stage recorded in err, if any.
func StageOf(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}

// IsFatal reports whether err prevents serving any prediction at all.
func IsFatal(err error) bool {
	return errors.Is(err, ErrArtifactUnavailable) || errors.Is(err, ErrModelLoad)
}

// UserMessage renders err as a message suitable for showing to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var msg string
	switch {
	case errors.Is(err, ErrArtifactUnavailable):
		msg = "The classifier model could not be downloaded"
	case errors.Is(err, ErrModelLoad):
		msg = "The classifier model could not be loaded"
	case errors.Is(err, ErrInvalidImage):
		msg = "That file is not a valid JPEG or PNG image"
	case errors.Is(err, ErrExampleFetch):
		msg = "The example image could not be fetched"
	default:
		return fmt.Sprintf("Error: %v", err)
	}

	if stage, ok := StageOf(err); ok {
		return fmt.Sprintf("%s (stage: %s): %v", msg, stage, err)
	}
	return fmt.Sprintf("%s: %v", msg, err)
}
