package editor

import (
	"errors"
	"log/slog"
)

var (
	// ErrDisposed is returned by every operation after Dispose.
	ErrDisposed = errors.New("editor is disposed")
	// ErrTransitionInProgress rejects a request made while a mode transition is running.
	ErrTransitionInProgress = errors.New("mode transition in progress")
	// ErrConversionFailed wraps a parse or serialize failure during a mode change.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrWrongMode rejects an operation that is not valid in the current mode.
	ErrWrongMode = errors.New("operation not available in the current mode")
	// ErrPreviewUnavailable is returned when no preview renderer is configured or preview is hidden.
	ErrPreviewUnavailable = errors.New("preview unavailable")
	// ErrSplitModeUnavailable is returned when split view is disabled for the session.
	ErrSplitModeUnavailable = errors.New("split mode unavailable")
	// ErrUnknownAction is returned by Exec for an action id the registry does not know.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidEdit rejects an edit that does not fit the current document.
	ErrInvalidEdit = errors.New("invalid edit")
)

// ErrorReporter receives failures the session recovered from.
type ErrorReporter interface {
	Report(err error)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(err error)

// Report implements ErrorReporter.
func (f ErrorReporterFunc) Report(err error) {
	f(err)
}

// LogReporter logs reported errors.
type LogReporter struct {
	Logger *slog.Logger
}

// Report implements ErrorReporter.
func (r LogReporter) Report(err error) {
	if r.Logger != nil {
		r.Logger.Error("editor failure", "error", err)
	}
}
