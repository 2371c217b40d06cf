// Package job lays out the per-run folder and writes the configuration
// dump, the raw console capture, the statistics and the full series.
package job

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/telemetry"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	placeholder = "{}"
	stampLayout = "021504" // ddhhmm

	dirPerm  = 0o755
	filePerm = 0o644
)

// Names are the configured artifact names. Each may hold a {} placeholder
// that is replaced by the ddhhmm stamp of the run.
type Names struct {
	JobDir  string
	LogFile string
	CnfFile string
	CliFile string
	StaFile string
	SerFile string
}

func (n Names) Validate() error {
	if n.JobDir == "" {
		return errors.New().WithMessage(ErrInvalidNames, "job folder name is empty")
	}
	for _, name := range []string{n.LogFile, n.CnfFile, n.CliFile, n.StaFile, n.SerFile} {
		if name != "" && filepath.Base(name) != name {
			return errors.New().WithMessage(ErrInvalidNames, "artifact names must not contain a path: "+name)
		}
	}
	return nil
}

// Artifacts are the resolved paths of one run.
type Artifacts struct {
	fs afero.Fs

	Stamp   string
	Dir     string
	LogPath string
	CnfPath string
	CliPath string
	StaPath string
	SerPath string
}

// Stamp formats now as ddhhmm.
func Stamp(now time.Time) string {
	return now.Format(stampLayout)
}

// Prepare resolves every name against now and creates the job folder.
func Prepare(fs afero.Fs, names Names, now time.Time) (*Artifacts, error) {
	if err := names.Validate(); err != nil {
		return nil, err
	}

	stamp := Stamp(now)
	dir := expand(names.JobDir, stamp)
	if err := fs.MkdirAll(dir, dirPerm); err != nil {
		return nil, errors.New().Wrap(ErrPrepareFailed, err)
	}

	path := func(name string) string {
		if name == "" {
			return ""
		}
		return filepath.Join(dir, expand(name, stamp))
	}

	return &Artifacts{
		fs:      fs,
		Stamp:   stamp,
		Dir:     dir,
		LogPath: path(names.LogFile),
		CnfPath: path(names.CnfFile),
		CliPath: path(names.CliFile),
		StaPath: path(names.StaFile),
		SerPath: path(names.SerFile),
	}, nil
}

// WriteConfig dumps cfg as YAML. Callers pass a copy with credentials
// blanked.
func (a *Artifacts) WriteConfig(cfg any) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.New().Wrap(ErrWriteArtifact, err)
	}
	return a.appendTo(a.CnfPath, data)
}

// WriteCapture writes the console blocks joined by newlines.
func (a *Artifacts) WriteCapture(blocks []string) error {
	return a.appendTo(a.CliPath, []byte(strings.Join(blocks, "\n")))
}

func (a *Artifacts) WriteStats(report *telemetry.Report) error {
	return a.writeJSON(a.StaPath, report.Stats())
}

func (a *Artifacts) WriteSeries(report *telemetry.Report) error {
	return a.writeJSON(a.SerPath, report)
}

// Paths lists the artifact files that are configured.
func (a *Artifacts) Paths() []string {
	var paths []string
	for _, p := range []string{a.CnfPath, a.CliPath, a.StaPath, a.SerPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func (a *Artifacts) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return errors.New().Wrap(ErrWriteArtifact, err)
	}
	return a.appendTo(path, data)
}

// appendTo adds data to path. An empty path disables the artifact.
func (a *Artifacts) appendTo(path string, data []byte) error {
	if path == "" {
		return nil
	}

	f, err := a.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return errors.New().Wrap(ErrWriteArtifact, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.New().Wrap(ErrWriteArtifact, err)
	}
	if err := f.Close(); err != nil {
		return errors.New().Wrap(ErrWriteArtifact, err)
	}
	return nil
}

func expand(name, stamp string) string {
	return strings.ReplaceAll(name, placeholder, stamp)
}
