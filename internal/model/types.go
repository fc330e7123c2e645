package model

import (
	"fmt"
	"strings"
)

// Literal values handed to the interface generator's configure step.
// They name the quanta project layout and stay fixed unless a settings
// file overrides them.
const (
	// DefaultProject is the project identifier igen generates interfaces for.
	DefaultProject = "quanta"

	// DefaultOutputDir is the staging directory igen writes into.
	DefaultOutputDir = "tmp"

	// DefaultTemplatePath is the template igen renders generated
	// interfaces from, relative to the working directory.
	DefaultTemplatePath = "dep/togo/scripts/igen_interface.template"
)

// Group is a single scan group registration: a named category of sources
// and the prefix igen associates with it.
//
// The meaning of Prefix belongs to igen. It is passed through untouched
// and may be empty.
type Group struct {
	// Name is the group name, e.g. "lib" or "app".
	Name string `json:"name" yaml:"name"`

	// Prefix is the symbol prefix associated with the group.
	Prefix string `json:"prefix" yaml:"prefix"`
}

// String returns a human-readable representation of the group.
// Format: "name (prefix "p")"
func (g Group) String() string {
	return fmt.Sprintf("%s (prefix %q)", g.Name, g.Prefix)
}

// DefaultGroups returns the quanta scan groups in registration order:
// the libraries first, then the applications.
//
// A fresh slice is returned on every call so callers may modify it.
func DefaultGroups() []Group {
	return []Group{
		{Name: "lib", Prefix: ""},
		{Name: "app", Prefix: "app_"},
	}
}

// Settings holds everything the bootstrap passes to the interface
// generator. Root comes from IGEN_ROOT; the rest defaults to the
// literal quanta values.
type Settings struct {
	// Root is the igen installation root directory.
	Root string

	// Project is the project identifier.
	Project string

	// OutputDir is the staging directory name.
	OutputDir string

	// TemplatePath is the relative path of the generation template.
	TemplatePath string

	// Groups are registered with the collector in slice order.
	Groups []Group
}

// DefaultSettings returns the quanta settings for the given igen root.
func DefaultSettings(root string) Settings {
	return Settings{
		Root:         root,
		Project:      DefaultProject,
		OutputDir:    DefaultOutputDir,
		TemplatePath: DefaultTemplatePath,
		Groups:       DefaultGroups(),
	}
}

// Validate checks that every value igen requires is present and that
// group names are unique. An empty group list is allowed.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Root) == "" {
		return fmt.Errorf("settings: igen root must not be empty")
	}
	if s.Project == "" {
		return fmt.Errorf("settings: project must not be empty")
	}
	if s.OutputDir == "" {
		return fmt.Errorf("settings: output directory must not be empty")
	}
	if s.TemplatePath == "" {
		return fmt.Errorf("settings: template path must not be empty")
	}

	seen := make(map[string]bool, len(s.Groups))
	for i, g := range s.Groups {
		if g.Name == "" {
			return fmt.Errorf("settings: group %d: name must not be empty", i)
		}
		if seen[g.Name] {
			return fmt.Errorf("settings: group %q registered more than once", g.Name)
		}
		seen[g.Name] = true
	}
	return nil
}

// ExitCode defines the process exit codes of run-igen.
// Codes reported by igen itself (e.g. from its build step) are passed
// through as-is and are not listed here.
type ExitCode int

const (
	// ExitSuccess indicates the whole sequence completed.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates IGEN_ROOT is missing or a settings
	// file could not be used.
	ExitConfigError ExitCode = 2

	// ExitFacilityUnavailable indicates the interpreter hosting igen
	// could not be started.
	ExitFacilityUnavailable ExitCode = 3
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
