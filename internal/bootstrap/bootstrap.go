// Package bootstrap runs the igen build step for the quanta project.
//
// The sequence is strictly linear: check IGEN_ROOT, open igen with
// $IGEN_ROOT/src on its search path, configure it, register the scan
// groups, collect, write, and hand the process arguments to build. The
// first error ends the sequence and is returned exactly as igen reported
// it.
package bootstrap

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/shinji-kodama/run-igen/internal/config"
	"github.com/shinji-kodama/run-igen/internal/igen"
	"github.com/shinji-kodama/run-igen/internal/logging"
	"github.com/shinji-kodama/run-igen/internal/model"
)

// Banner is printed on stdout before anything else happens.
const Banner = "run_igen"

// Opener obtains the facility for an igen root.
type Opener func(root string) (igen.Facility, error)

// RequireRoot returns the value of IGEN_ROOT exactly as set. An unset or
// blank value is a model.CLIError with ExitConfigError.
func RequireRoot(lookup config.LookupFunc) (string, error) {
	root, _ := lookup(config.EnvRoot)
	if strings.TrimSpace(root) == "" {
		return "", model.NewCLIError(model.ExitConfigError, config.EnvRoot+" not set")
	}
	return root, nil
}

// SourcePath returns the directory igen's modules are loaded from.
func SourcePath(root string) string {
	return filepath.Join(root, "src")
}

// Runner holds the collaborators of one run. Open and Lookup are required.
type Runner struct {
	// Lookup reads environment variables, normally os.LookupEnv.
	Lookup config.LookupFunc

	// Open obtains the facility once IGEN_ROOT is known.
	Open Opener

	// Settings resolves the configure values and groups for a root.
	// Nil means model.DefaultSettings.
	Settings func(root string) (model.Settings, error)

	// Stdout receives the banner. Nil discards it.
	Stdout io.Writer

	// Logger receives one debug entry per step. Nil disables logging.
	Logger *zap.Logger
}

// Run executes the build step with args as the full process argument
// vector, program name included.
func (r *Runner) Run(args []string) (err error) {
	log := r.Logger
	if log == nil {
		log = logging.Nop()
	}
	if r.Stdout != nil {
		fmt.Fprintln(r.Stdout, Banner)
	}

	root, err := RequireRoot(r.Lookup)
	if err != nil {
		return err
	}
	log.Debug("resolved igen root", zap.String("root", root), zap.String("source", SourcePath(root)))

	settings := model.DefaultSettings(root)
	if r.Settings != nil {
		if settings, err = r.Settings(root); err != nil {
			return err
		}
	}

	facility, err := r.Open(root)
	if err != nil {
		return err
	}
	if closer, ok := facility.(io.Closer); ok {
		defer func() {
			// A delegate error takes precedence over whatever the
			// shutdown reports.
			if cerr := closer.Close(); err == nil {
				err = cerr
			}
		}()
	}

	return runSequence(facility, settings, args, log)
}

// runSequence performs the facility calls in order and stops at the
// first error.
func runSequence(f igen.Facility, s model.Settings, args []string, log *zap.Logger) error {
	log.Debug("configure",
		zap.String("project", s.Project),
		zap.String("outputDir", s.OutputDir),
		zap.String("template", s.TemplatePath),
	)
	if err := f.Configure(s.Root, s.Project, s.OutputDir, s.TemplatePath); err != nil {
		return err
	}

	c, err := f.NewCollector()
	if err != nil {
		return err
	}

	for _, g := range s.Groups {
		log.Debug("add group", zap.String("name", g.Name), zap.String("prefix", g.Prefix))
		if err := c.AddGroups(g.Name, g.Prefix); err != nil {
			return err
		}
	}

	log.Debug("collect")
	if err := c.Collect(); err != nil {
		return err
	}

	log.Debug("write")
	if err := c.Write(); err != nil {
		return err
	}

	log.Debug("build", zap.Strings("args", args))
	return f.Build(args)
}
