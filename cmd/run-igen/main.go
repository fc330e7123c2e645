// Package main is the entry point for the run-igen build step.
//
// The binary configures and drives the igen interface generator for the
// quanta project. All functionality lives in the internal/cli package;
// the process arguments are handed to igen's build step unchanged.
package main

import (
	"github.com/shinji-kodama/run-igen/internal/cli"
)

func main() {
	cli.Execute()
}
