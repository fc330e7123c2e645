package igen

import (
	"errors"
	"fmt"
)

// Facility is the interface generator as seen by the bootstrap.
// Every method blocks until igen has finished the operation.
type Facility interface {
	// Configure sets the igen root, the project identifier, the staging
	// directory and the template path, in that order.
	Configure(root, project, outputDir, templatePath string) error

	// NewCollector returns a fresh collector.
	NewCollector() (Collector, error)

	// Build hands the full process argument vector to igen.
	Build(args []string) error
}

// Collector gathers interface definitions for the registered groups.
type Collector interface {
	// AddGroups registers a scan group. How prefix is applied to the
	// discovered symbols is up to igen.
	AddGroups(name, prefix string) error

	// Collect scans all registered groups.
	Collect() error

	// Write persists what Collect gathered.
	Write() error
}

var (
	// ErrProtocol reports a malformed or out-of-sequence bridge exchange.
	ErrProtocol = errors.New("igen bridge protocol error")

	// ErrClosed is returned by operations on a closed Bridge.
	ErrClosed = errors.New("igen bridge closed")
)

// DelegateError is a failure reported by igen itself.
//
// Message is igen's own diagnostic (a Python traceback for exceptions) and
// is returned by Error unchanged. ExitCode is the status igen asked
// for, or 1 when it raised.
type DelegateError struct {
	// Op is the contract operation that failed, e.g. "collect".
	Op string

	// Message is the native error text. Empty when igen exited with a
	// bare status code.
	Message string

	// ExitCode is the process exit status to report.
	ExitCode int
}

func (e *DelegateError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("igen %s exited with status %d", e.Op, e.ExitCode)
	}
	return e.Message
}
