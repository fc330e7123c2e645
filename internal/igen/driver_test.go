package igen

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInterface is a stand-in igen.interface module. Every call appends
// one "|"-separated line to $FAKE_IGEN_LOG; $FAKE_IGEN_BUILD picks how
// build ends.
const fakeInterface = `import os
import signal
import sys


def log(*parts):
    with open(os.environ["FAKE_IGEN_LOG"], "a") as f:
        f.write("|".join(str(p) for p in parts) + "\n")


def configure(root, project, output_dir, template):
    log("configure", root, project, output_dir, template)


class Collector(object):
    count = 0

    def __init__(self):
        Collector.count += 1
        self.n = Collector.count

    def add_groups(self, name, prefix):
        log("add_groups", self.n, name, prefix)

    def collect(self):
        log("collect", self.n)

    def write(self):
        log("write", self.n)


def build(args):
    log("build", *args)
    log("argv", *sys.argv)
    log("path_last", sys.path[-1])
    mode = os.environ.get("FAKE_IGEN_BUILD", "")
    if mode == "exit0":
        sys.exit(0)
    if mode == "exit_none":
        sys.exit()
    if mode == "exit3":
        sys.exit(3)
    if mode == "raise":
        raise RuntimeError("template exploded")
    if mode == "kill":
        os.kill(os.getpid(), signal.SIGKILL)
`

// findInterpreter returns the first Python interpreter on PATH, or skips
// the test when there is none.
func findInterpreter(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"python2", "python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no python interpreter on PATH")
	return ""
}

// driverFixture is a fake igen installation plus the call log it writes.
type driverFixture struct {
	interpreter string
	sourcePath  string
	logPath     string
}

// newDriverFixture writes the fake igen package under t.TempDir()/src.
func newDriverFixture(t *testing.T) *driverFixture {
	t.Helper()
	interpreter := findInterpreter(t)

	root := t.TempDir()
	pkg := filepath.Join(root, "src", "igen")
	require.NoError(t, os.MkdirAll(pkg, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "__init__.py"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "interface.py"), []byte(fakeInterface), 0644))

	return &driverFixture{
		interpreter: interpreter,
		sourcePath:  filepath.Join(root, "src"),
		logPath:     filepath.Join(root, "calls.log"),
	}
}

// start launches the real driver against the fake package. buildMode is
// exported as FAKE_IGEN_BUILD.
func (f *driverFixture) start(t *testing.T, buildMode string, stderr *bytes.Buffer) *Bridge {
	t.Helper()
	env := append(os.Environ(), "FAKE_IGEN_LOG="+f.logPath, "FAKE_IGEN_BUILD="+buildMode)
	b, err := Start(BridgeOptions{
		Interpreter: f.interpreter,
		SourcePath:  f.sourcePath,
		Dir:         t.TempDir(),
		Env:         env,
		Stderr:      stderr,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// calls returns the lines the fake package logged.
func (f *driverFixture) calls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(f.logPath)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// runQuantaSequence drives the standard quanta sequence and returns the build
// error.
func runQuantaSequence(t *testing.T, b *Bridge) error {
	t.Helper()
	require.NoError(t, b.Configure("/opt/igen", "quanta", "tmp", "dep/togo/scripts/igen_interface.template"))
	c, err := b.NewCollector()
	require.NoError(t, err)
	require.NoError(t, c.AddGroups("lib", ""))
	require.NoError(t, c.AddGroups("app", "app_"))
	require.NoError(t, c.Collect())
	require.NoError(t, c.Write())
	return b.Build([]string{"run_igen", "x", ""})
}

// TestDriver_FullSequence runs the embedded driver against the fake igen
// and checks every call arrived with its exact arguments, that sys.argv
// is the build argument vector, and that the source directory was
// appended last to sys.path.
func TestDriver_FullSequence(t *testing.T) {
	f := newDriverFixture(t)
	var stderr bytes.Buffer
	b := f.start(t, "", &stderr)

	require.NoError(t, runQuantaSequence(t, b))
	require.NoError(t, b.Close(), "stderr: %s", stderr.String())

	assert.Equal(t, []string{
		"configure|/opt/igen|quanta|tmp|dep/togo/scripts/igen_interface.template",
		"add_groups|1|lib|",
		"add_groups|1|app|app_",
		"collect|1",
		"write|1",
		"build|run_igen|x|",
		"argv|run_igen|x|",
		"path_last|" + f.sourcePath,
	}, f.calls(t))
}

// TestDriver_CollectorHandles verifies that each collector keeps its own
// identity inside the child.
func TestDriver_CollectorHandles(t *testing.T) {
	f := newDriverFixture(t)
	b := f.start(t, "", &bytes.Buffer{})

	first, err := b.NewCollector()
	require.NoError(t, err)
	second, err := b.NewCollector()
	require.NoError(t, err)

	require.NoError(t, second.AddGroups("app", "app_"))
	require.NoError(t, first.AddGroups("lib", ""))
	require.NoError(t, b.Close())

	assert.Equal(t, []string{"add_groups|2|app|app_", "add_groups|1|lib|"}, f.calls(t))
}

// TestDriver_BuildOutcomes covers how build can end: plain return,
// SystemExit(0), SystemExit(), SystemExit(3), an exception, and a signal.
func TestDriver_BuildOutcomes(t *testing.T) {
	tests := []struct {
		mode        string
		wantCode    int
		wantMessage string
	}{
		{mode: "", wantCode: 0},
		{mode: "exit0", wantCode: 0},
		{mode: "exit_none", wantCode: 0},
		{mode: "exit3", wantCode: 3},
		{mode: "raise", wantCode: 1, wantMessage: "RuntimeError: template exploded"},
		{mode: "kill", wantCode: 1},
	}

	for _, tt := range tests {
		name := tt.mode
		if name == "" {
			name = "return"
		}
		t.Run(name, func(t *testing.T) {
			f := newDriverFixture(t)
			b := f.start(t, tt.mode, &bytes.Buffer{})

			err := runQuantaSequence(t, b)
			if tt.wantCode == 0 {
				assert.NoError(t, err)
				assert.NoError(t, b.Close())
				return
			}

			var de *DelegateError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, "build", de.Op)
			assert.Equal(t, tt.wantCode, de.ExitCode)
			if tt.wantMessage == "" {
				assert.Empty(t, de.Message)
				return
			}
			assert.Contains(t, de.Message, "Traceback")
			assert.Contains(t, de.Message, tt.wantMessage)
		})
	}
}

// TestDriver_MissingPackage verifies that a failing `import igen` shows up
// on the first call as an empty-message DelegateError with status 1,
// while Python's own traceback goes to stderr.
func TestDriver_MissingPackage(t *testing.T) {
	f := newDriverFixture(t)
	var stderr bytes.Buffer
	b, err := Start(BridgeOptions{
		Interpreter: f.interpreter,
		SourcePath:  filepath.Join(t.TempDir(), "src"),
		Stderr:      &stderr,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	err = b.Configure("/opt/igen", "quanta", "tmp", "t")

	var de *DelegateError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, DelegateError{Op: "configure", ExitCode: 1}, *de)
	assert.Contains(t, stderr.String(), "igen")

	_, err = b.NewCollector()
	assert.ErrorIs(t, err, ErrClosed)
}

// TestExitStatus maps child exit codes to reportable process codes.
func TestExitStatus(t *testing.T) {
	assert.Equal(t, 1, exitStatus(-1), "killed by a signal")
	assert.Equal(t, 1, exitStatus(0))
	assert.Equal(t, 1, exitStatus(1))
	assert.Equal(t, 7, exitStatus(7))
}
