// Package cli implements the cobra command for run-igen.
//
// run-igen takes no flags of its own. Flag parsing is disabled, so every
// argument, including things like --help, is forwarded untouched to igen's
// build step together with the program name. Optional behavior is
// controlled through IGEN_* environment variables instead (see package
// config).
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shinji-kodama/run-igen/internal/bootstrap"
	"github.com/shinji-kodama/run-igen/internal/config"
	"github.com/shinji-kodama/run-igen/internal/igen"
	"github.com/shinji-kodama/run-igen/internal/logging"
	"github.com/shinji-kodama/run-igen/internal/model"
)

// Options carries the process-level collaborators. The zero value is not
// usable; DefaultOptions returns the real process wiring.
type Options struct {
	// Lookup reads environment variables.
	Lookup config.LookupFunc

	// Environ is the environment handed to the igen interpreter.
	// Nil means os.Environ().
	Environ []string

	// Stdin, Stdout and Stderr are the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Open overrides how the facility is obtained. Nil starts the bridge.
	Open bootstrap.Opener
}

// DefaultOptions wires Options to the current process.
func DefaultOptions() Options {
	return Options{
		Lookup: os.LookupEnv,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// NewRootCommand creates the run-igen command. program is the argv[0]
// value prepended to the arguments before they reach build.
//
// The command has no subcommands and no flags of its own: it exists to
// carry the help text and the process streams. Run invokes its RunE
// directly rather than through cobra's Execute, because Execute
// routes some argument vectors (notably those starting with
// "__complete") to cobra's built-in shell completion handler.
func NewRootCommand(program string, opts Options) *cobra.Command {
	cmd := &cobra.Command{
		// Use is the one-line usage pattern shown in help output.
		Use:   "run-igen [build arguments...]",
		Short: "Generate the quanta interfaces with igen",
		Long: `run-igen configures the igen interface generator for the quanta project,
collects the "lib" and "app" groups, writes the generated interfaces, and
runs igen's build step with the arguments it was given.

Environment:
  IGEN_ROOT     igen installation root (required)
  IGEN_PYTHON   interpreter hosting igen (default: python2)
  IGEN_CONFIG   optional .json, .jsonc, .yaml or .yml settings file
  IGEN_VERBOSE  set to 1 for debug output on stderr`,

		// DisableFlagParsing hands every argument, including --help and
		// anything after "--", to RunE untouched. They all belong to igen.
		DisableFlagParsing: true,

		// ArbitraryArgs accepts any number of positional arguments.
		Args: cobra.ArbitraryArgs,

		// SilenceUsage prevents cobra from printing usage on every error.
		// SilenceErrors leaves error output to Run, which also decides
		// the exit code.
		SilenceUsage:  true,
		SilenceErrors: true,

		// There is nothing to complete: the "completion" subcommand would
		// only shadow an argument meant for igen.
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},

		// RunE restores the full argument vector (program name first)
		// and runs the build step.
		RunE: func(cmd *cobra.Command, args []string) error {
			argv := append([]string{program}, args...)
			return runBuildStep(opts, argv)
		},
	}

	// Route cobra's own output (help, if ever requested by a caller)
	// through the injected streams so tests can capture it.
	cmd.SetIn(opts.Stdin)
	cmd.SetOut(opts.Stdout)
	cmd.SetErr(opts.Stderr)
	return cmd
}

// runBuildStep resolves the configuration, builds the logger and runs the
// bootstrap sequence.
//
// The logger writes to stderr so that stdout carries only the banner and
// igen's own output. When no Opener is injected, igen is hosted by a
// child interpreter through igen.Bridge.
func runBuildStep(opts Options, argv []string) error {
	env := config.FromEnv(opts.Lookup)

	logger := logging.New(logging.IsVerbose(env.Verbose), opts.Stderr)
	defer func() { _ = logger.Sync() }()

	open := opts.Open
	if open == nil {
		open = bridgeOpener(opts, env, logger)
	}

	runner := &bootstrap.Runner{
		Lookup: opts.Lookup,
		Open:   open,
		Settings: func(root string) (model.Settings, error) {
			return config.Load(env.ConfigPath, root)
		},
		Stdout: opts.Stdout,
		Logger: logger,
	}
	return runner.Run(argv)
}

// bridgeOpener starts igen in a child interpreter with $IGEN_ROOT/src
// appended to its module search path.
//
// The child shares the process streams, so igen's progress output and
// diagnostics reach the user exactly as igen prints them. The explicit
// nil return on failure keeps a nil *Bridge from turning into a non-nil
// igen.Facility.
func bridgeOpener(opts Options, env config.Env, logger *zap.Logger) bootstrap.Opener {
	return func(root string) (igen.Facility, error) {
		b, err := igen.Start(igen.BridgeOptions{
			Interpreter: env.Python,
			SourcePath:  bootstrap.SourcePath(root),
			Env:         opts.Environ,
			Stdin:       opts.Stdin,
			Stdout:      opts.Stdout,
			Stderr:      opts.Stderr,
			Logger:      logger.Named("bridge"),
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// Run executes run-igen for the argument vector argv (program name
// first) and returns the process exit code.
//
// The arguments after argv[0] are passed to the command's RunE as-is.
// cobra's command lookup is bypassed on purpose: with a single command
// there is nothing to look up, and the lookup would reserve the
// "__complete" and "__completeNoDesc" arguments for shell completion.
func Run(argv []string, opts Options) int {
	program := "run-igen"
	args := []string{}
	if len(argv) > 0 {
		program, args = argv[0], argv[1:]
	}

	cmd := NewRootCommand(program, opts)
	if err := cmd.RunE(cmd, args); err != nil {
		return reportError(opts.Stderr, err)
	}
	return int(model.ExitSuccess)
}

// Execute runs run-igen for the current process and exits.
// This is the main entry point called from main.go.
func Execute() {
	os.Exit(Run(os.Args, DefaultOptions()))
}

// reportError prints err in the form its kind calls for and returns the
// matching exit code.
//
// igen's failures are printed verbatim and keep igen's exit status;
// run-igen's own errors get an "Error:" prefix and a model.ExitCode.
func reportError(w io.Writer, err error) int {
	var delegateErr *igen.DelegateError
	if errors.As(err, &delegateErr) {
		if msg := delegateErr.Message; msg != "" {
			if !strings.HasSuffix(msg, "\n") {
				msg += "\n"
			}
			fmt.Fprint(w, msg)
		}
		return delegateErr.ExitCode
	}

	code := model.ExitGeneralError
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		code = cliErr.Code
	}
	fmt.Fprintf(w, "%s %s\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err.Error())
	return int(code)
}
