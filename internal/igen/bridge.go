package igen

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/shinji-kodama/run-igen/internal/model"
)

// DefaultInterpreter is the interpreter igen is written for.
const DefaultInterpreter = "python2"

//go:embed driver.py
var driverSource string

// BridgeOptions configures the child interpreter that hosts igen.
type BridgeOptions struct {
	// Interpreter is the executable to run. Defaults to DefaultInterpreter.
	Interpreter string

	// SourcePath is appended to the child's sys.path before igen is
	// imported, so that `from igen import interface` resolves. Usually
	// $IGEN_ROOT/src. It is handed to the driver as its only argument
	// and never exported through the environment.
	SourcePath string

	// Dir is the child's working directory. Empty means the current one.
	Dir string

	// Env is the child's environment. Nil means os.Environ().
	Env []string

	// Stdin, Stdout and Stderr are connected to the child as-is.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Logger receives one debug entry per round trip. Nil disables it.
	Logger *zap.Logger
}

// request is one line sent to the driver.
type request struct {
	ID     int      `json:"id"`
	Op     string   `json:"op"`
	Handle int      `json:"handle,omitempty"`
	Args   []string `json:"args,omitempty"`
}

// response is one line received from the driver.
type response struct {
	ID     int    `json:"id"`
	OK     bool   `json:"ok"`
	Handle int    `json:"handle,omitempty"`
	Error  string `json:"error,omitempty"`
	Exit   *int   `json:"exit,omitempty"`
}

// Bridge is a Facility backed by a child interpreter running igen.
//
// Calls are serialized; each one is a single request/response round trip.
// Close must be called to reap the child.
type Bridge struct {
	mu     sync.Mutex
	enc    *json.Encoder
	dec    *json.Decoder
	req    io.Closer
	log    *zap.Logger
	nextID int
	closed bool

	waitOnce sync.Once
	wait     func() error
	waitErr  error
}

// Start launches the interpreter with the embedded driver and returns a
// Bridge connected to it.
//
// Returns a model.CLIError with ExitFacilityUnavailable if the
// interpreter cannot be started. A failing `import igen` is only noticed
// on the first call, as a DelegateError.
func Start(opts BridgeOptions) (*Bridge, error) {
	interpreter := opts.Interpreter
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}

	// Two one-way pipes: the child reads requests from fd 3 and writes
	// responses to fd 4. ExtraFiles[i] becomes fd 3+i in the child.
	reqR, reqW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create request pipe: %w", err)
	}
	respR, respW, err := os.Pipe()
	if err != nil {
		reqR.Close()
		reqW.Close()
		return nil, fmt.Errorf("failed to create response pipe: %w", err)
	}

	// With -c the driver sees sys.argv == ["-c", SourcePath].
	// #nosec G204: the interpreter is chosen by the operator
	cmd := exec.Command(interpreter, "-c", driverSource, opts.SourcePath)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	cmd.ExtraFiles = []*os.File{reqR, respW}

	if err := cmd.Start(); err != nil {
		reqR.Close()
		reqW.Close()
		respR.Close()
		respW.Close()
		return nil, model.WrapCLIError(
			model.ExitFacilityUnavailable,
			fmt.Sprintf("failed to start %s", interpreter),
			err,
		)
	}

	// The child holds its own copies now. Closing ours lets EOF
	// propagate when either side goes away.
	reqR.Close()
	respW.Close()

	return newBridge(reqW, respR, opts.Logger, func() error {
		defer respR.Close()
		return cmd.Wait()
	}), nil
}

// newBridge wires a Bridge to an arbitrary transport. wait is called
// once, after the request stream is closed or the response stream ends.
func newBridge(w io.WriteCloser, r io.Reader, logger *zap.Logger, wait func() error) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if wait == nil {
		wait = func() error { return nil }
	}
	return &Bridge{
		enc:  json.NewEncoder(w),
		dec:  json.NewDecoder(r),
		req:  w,
		log:  logger,
		wait: wait,
	}
}

// Configure implements Facility.
func (b *Bridge) Configure(root, project, outputDir, templatePath string) error {
	_, err := b.call("configure", 0, root, project, outputDir, templatePath)
	return err
}

// NewCollector implements Facility.
func (b *Bridge) NewCollector() (Collector, error) {
	resp, err := b.call("collector", 0)
	if err != nil {
		return nil, err
	}
	if resp.Handle == 0 {
		return nil, fmt.Errorf("collector: %w: no handle in response", ErrProtocol)
	}
	return &bridgeCollector{bridge: b, handle: resp.Handle}, nil
}

// Build implements Facility.
func (b *Bridge) Build(args []string) error {
	_, err := b.call("build", 0, args...)
	return err
}

// Close ends the request stream and waits for the child to exit.
// It returns the child's exit error, if any. Calling Close again is a no-op.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	closeErr := b.req.Close()
	if err := b.reap(); err != nil {
		return err
	}
	return closeErr
}

func (b *Bridge) reap() error {
	b.waitOnce.Do(func() {
		b.waitErr = b.wait()
	})
	return b.waitErr
}

// call performs one round trip. A response with ok=false becomes a
// DelegateError; anything unexpected on the wire becomes ErrProtocol.
func (b *Bridge) call(op string, handle int, args ...string) (*response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("%s: %w", op, ErrClosed)
	}

	b.nextID++
	req := request{ID: b.nextID, Op: op, Handle: handle, Args: args}
	b.log.Debug("igen request", zap.Int("id", req.ID), zap.String("op", op), zap.Strings("args", args))

	if err := b.enc.Encode(&req); err != nil {
		return nil, b.transportError(op, err)
	}

	var resp response
	if err := b.dec.Decode(&resp); err != nil {
		return nil, b.transportError(op, err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("%s: %w: response id %d, want %d", op, ErrProtocol, resp.ID, req.ID)
	}

	b.log.Debug("igen response", zap.Int("id", resp.ID), zap.Bool("ok", resp.OK))

	if !resp.OK {
		code := int(model.ExitGeneralError)
		if resp.Exit != nil {
			code = *resp.Exit
		}
		return nil, &DelegateError{Op: op, Message: resp.Error, ExitCode: code}
	}
	return &resp, nil
}

// transportError explains a broken pipe. When the child has exited (for
// example because `import igen` failed, or igen called os._exit), its exit
// status is reported as a DelegateError: igen has already printed its own
// diagnostic on stderr.
func (b *Bridge) transportError(op string, err error) error {
	b.closed = true
	b.req.Close()

	var exitErr *exec.ExitError
	if waitErr := b.reap(); errors.As(waitErr, &exitErr) {
		return &DelegateError{Op: op, ExitCode: exitStatus(exitErr.ExitCode())}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrProtocol, err)
}

// exitStatus turns a child exit code into one the process can report.
// ExitCode is -1 when the child was killed by a signal.
func exitStatus(code int) int {
	if code < 1 {
		return int(model.ExitGeneralError)
	}
	return code
}

// bridgeCollector is a Collector living inside the child, addressed by
// the handle the driver assigned to it.
type bridgeCollector struct {
	bridge *Bridge
	handle int
}

func (c *bridgeCollector) AddGroups(name, prefix string) error {
	_, err := c.bridge.call("add_groups", c.handle, name, prefix)
	return err
}

func (c *bridgeCollector) Collect() error {
	_, err := c.bridge.call("collect", c.handle)
	return err
}

func (c *bridgeCollector) Write() error {
	_, err := c.bridge.call("write", c.handle)
	return err
}
