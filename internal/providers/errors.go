package providers

import "fmt"

// Call failure stages, used for logging and metrics labels.
const (
	StageTransport  = "transport"
	StageStatus     = "status"
	StageParse      = "parse"
	StageConfidence = "confidence"
)

// CallError is a single provider call failing. It is always recovered by
// the fan-out executor and never reaches the orchestrator's caller.
type CallError struct {
	Provider string
	Stage    string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Stage, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

func callErr(provider, stage, format string, args ...interface{}) *CallError {
	return &CallError{Provider: provider, Stage: stage, Err: fmt.Errorf(format, args...)}
}
