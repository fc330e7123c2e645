// Package model defines the domain types and value objects for the
// run-igen build step.
//
// This package contains pure data structures with no external dependencies:
// the scan group registrations, the settings handed to the interface
// generator, and the exit codes plus the CLIError type that carries them
// to the process boundary.
package model
