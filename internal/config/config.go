// Package config resolves run-igen's configuration from the environment
// and an optional settings file.
//
// Settings files may be JSON with comments (.json, .jsonc) or YAML
// (.yaml, .yml). JSONC is handled by github.com/tidwall/jsonc, which
// strips comments and trailing commas before encoding/json parses the
// result; YAML is parsed with gopkg.in/yaml.v3.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/run-igen/internal/model"
)

// Environment variables read by run-igen.
const (
	// EnvRoot names the igen installation root. Required.
	EnvRoot = "IGEN_ROOT"

	// EnvPython overrides the interpreter that hosts igen.
	EnvPython = "IGEN_PYTHON"

	// EnvConfig points to an optional settings file.
	EnvConfig = "IGEN_CONFIG"

	// EnvVerbose enables debug logging when set to a true-ish value.
	EnvVerbose = "IGEN_VERBOSE"
)

// LookupFunc has the signature of os.LookupEnv. Tests substitute a map.
type LookupFunc func(key string) (string, bool)

// Env holds the optional environment settings. IGEN_ROOT is not part
// of it: the bootstrap reads and checks that one itself.
type Env struct {
	// Python is the interpreter executable. Empty means the bridge default.
	Python string

	// ConfigPath is the settings file path. Empty means none.
	ConfigPath string

	// Verbose is the raw IGEN_VERBOSE value.
	Verbose string
}

// FromEnv reads the optional environment settings through lookup.
func FromEnv(lookup LookupFunc) Env {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	return Env{
		Python:     get(EnvPython),
		ConfigPath: get(EnvConfig),
		Verbose:    get(EnvVerbose),
	}
}

// File is the on-disk settings format. Every field is optional; an
// omitted field keeps its quanta default.
type File struct {
	// Project overrides the project identifier.
	Project string `json:"project,omitempty" yaml:"project,omitempty"`

	// OutputDir overrides the staging directory.
	OutputDir string `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`

	// Template overrides the generation template path.
	Template string `json:"template,omitempty" yaml:"template,omitempty"`

	// Groups, when present, replaces the default group list as a whole.
	// Order is preserved.
	Groups []model.Group `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Load returns the settings for root. With an empty path the quanta
// defaults are returned unchanged; otherwise the file at path is parsed
// and applied on top of them.
//
// Every failure is a model.CLIError with ExitConfigError.
func Load(path, root string) (model.Settings, error) {
	settings := model.DefaultSettings(root)
	if path == "" {
		return settings, nil
	}

	f, err := LoadFile(path)
	if err != nil {
		return model.Settings{}, err
	}
	f.Apply(&settings)

	if err := settings.Validate(); err != nil {
		return model.Settings{}, model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("invalid settings in %s", path),
			err,
		)
	}
	return settings, nil
}

// LoadFile reads and parses a settings file, choosing the format by
// file extension.
func LoadFile(path string) (*File, error) {
	// Check the extension first so an unsupported file is rejected
	// without touching the disk.
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json", ".jsonc", ".yaml", ".yml":
	default:
		return nil, model.NewCLIError(
			model.ExitConfigError,
			fmt.Sprintf("unsupported settings file %s (valid: .json, .jsonc, .yaml, .yml)", path),
		)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("failed to read settings file %s", path),
			err,
		)
	}

	var f File
	if ext == ".yaml" || ext == ".yml" {
		err = yaml.Unmarshal(data, &f)
	} else {
		err = json.Unmarshal(jsonc.ToJSON(data), &f)
	}
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("failed to parse settings file %s", path),
			err,
		)
	}
	return &f, nil
}

// Apply overlays the non-empty fields of f onto s.
func (f *File) Apply(s *model.Settings) {
	if f.Project != "" {
		s.Project = f.Project
	}
	if f.OutputDir != "" {
		s.OutputDir = f.OutputDir
	}
	if f.Template != "" {
		s.TemplatePath = f.Template
	}
	if f.Groups != nil {
		s.Groups = append([]model.Group(nil), f.Groups...)
	}
}
