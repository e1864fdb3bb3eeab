// Package output writes the results of a run into a fresh directory: the
// text report, the settings, the measurements and their plots.
package output

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// OutputCollisionError is returned when the output directory of a run
// already exists. Runs never write into an existing directory.
type OutputCollisionError struct {
	Dir string
}

func (e *OutputCollisionError) Error() string {
	return fmt.Sprintf("output: the folder %s already exists", e.Dir)
}

// DefaultPath names the output directory of a run of script started at t.
func DefaultPath(script string, t time.Time) string {
	return filepath.Join("plots", fmt.Sprintf("%s_%s", script, t.Format("20060102-150405")))
}

// Dir is an output directory.
type Dir struct {
	Path string
}

// Create makes the directory path, which must not exist yet. Nothing is
// removed on later failures; partial output stays for inspection.
func Create(path string) (*Dir, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, &OutputCollisionError{Dir: path}
		}
		return nil, fmt.Errorf("output: could not create folder %s: %w", path, err)
	}
	return &Dir{Path: path}, nil
}

// Open returns an existing directory, typically the output of an earlier
// run.
func Open(path string) (*Dir, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("output: %s is not a folder", path)
	}
	return &Dir{Path: path}, nil
}

func (d *Dir) Join(name string) string { return filepath.Join(d.Path, name) }

// Results is an append-only report. It is safe for concurrent use; each
// call writes whole lines.
type Results struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// Results opens the report file name in d for appending.
func (d *Dir) Results(name string) (*Results, error) {
	f, err := os.OpenFile(d.Join(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	return &Results{w: f}, nil
}

func (r *Results) Printf(format string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.w, format, args...)
	return err
}

// Write appends p as a single block.
func (r *Results) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Write(p)
}

func (r *Results) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Close()
}

// Settings documents how a run was configured.
type Settings struct {
	Luminosity  float64
	Systematics []string
	Weight      string
	Selection   string
	Config      string
	Files       map[string][]string // by process
}

// WriteSettings writes s to plot-settings.txt in d.
func (d *Dir) WriteSettings(s Settings) error {
	f, err := os.Create(d.Join("plot-settings.txt"))
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "\nluminosity:\n%g\n", s.Luminosity)
	fmt.Fprintf(f, "\nsystSet:\n%v\n", s.Systematics)
	fmt.Fprintf(f, "\nweightExpression:\n%s\n", s.Weight)
	fmt.Fprintf(f, "\nselection:\n%s\n", s.Selection)
	fmt.Fprintf(f, "\nconfig:\n%s\n", s.Config)
	fmt.Fprintf(f, "\nrunning over the files:\n")

	procs := make([]string, 0, len(s.Files))
	for name := range s.Files {
		procs = append(procs, name)
	}
	sort.Strings(procs)
	for _, name := range procs {
		fmt.Fprintf(f, "\nProcess: %s\n", name)
		for _, fname := range s.Files[name] {
			fmt.Fprintf(f, "File: %s\n", fname)
		}
	}
	return f.Close()
}
