package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyAlert is returned when a run is started without alert text.
var ErrEmptyAlert = errors.New("alert text is empty")

// ErrNilPipeline is returned when a run is started without a pipeline.
var ErrNilPipeline = errors.New("pipeline is required")

// CycleError reports a dependency cycle. Path starts and ends at the same stage.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// UnknownDependencyError reports a dependency that names no stage.
type UnknownDependencyError struct {
	Stage      string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("stage %s depends on unknown stage %s", e.Stage, e.Dependency)
}

// DuplicateStageError reports two stages sharing an ID.
type DuplicateStageError struct {
	Stage string
}

func (e *DuplicateStageError) Error() string {
	return fmt.Sprintf("duplicate stage id: %s", e.Stage)
}

// MissingDependencyOutputError means a stage was assembled before one of its
// dependencies produced output. The runner's ordering guarantees this never
// happens.
type MissingDependencyOutputError struct {
	Stage      string
	Dependency string
}

func (e *MissingDependencyOutputError) Error() string {
	return fmt.Sprintf("stage %s: no output recorded for dependency %s", e.Stage, e.Dependency)
}

// CompletionError wraps a failure of the completion step of a stage.
type CompletionError struct {
	Stage string
	Err   error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("stage %s: completion failed: %v", e.Stage, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// RunNotSucceededError is returned by TerminalOutput for runs that did not succeed.
type RunNotSucceededError struct {
	RunID  string
	Status Status
}

func (e *RunNotSucceededError) Error() string {
	return fmt.Sprintf("run %s has status %s", e.RunID, e.Status)
}

// StageNotFoundError is returned when a stage has no recorded output.
type StageNotFoundError struct {
	Stage string
}

func (e *StageNotFoundError) Error() string {
	return fmt.Sprintf("stage %s has no recorded output", e.Stage)
}
