package splice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/go-analyze/bulk"
)

const ErrorLogPrefix = "!! "

// Config holds settings and state for an Engine.
type Config struct {
	FilesFlag, ProfileFile, StateDir string
	DryRun, Check, ShowDiff, NoColor bool
	// DebugStorage enables badger logging and periodic snapshot cache metrics.
	DebugStorage bool
	// RestoreAll restores every snapshotted file, listed files are then optional.
	RestoreAll bool
	CacheMB    int
	// Custom flags support - all stored as strings for ease of use
	CustomFlags map[string]string
	// Computed fields
	Files   []string
	Profile *Profile
	// Internal state tracking
	prepared, restore bool
}

// Prepare validates the configuration, resolves target files and loads the profile.
func (c *Config) Prepare() error {
	if c.prepared {
		return errors.New("config has already been prepared")
	}

	for _, f := range strings.Split(c.FilesFlag, ",") {
		if f = strings.TrimSpace(f); f != "" {
			c.Files = append(c.Files, filepath.Clean(f))
		}
	}
	if len(c.Files) == 0 && !(c.restore && c.RestoreAll) {
		return errors.New("at least one target file is required")
	}
	for _, f := range c.Files {
		if info, err := os.Stat(f); c.restore && errors.Is(err, os.ErrNotExist) {
			continue // restore recreates removed files
		} else if err != nil {
			return fmt.Errorf("target file does not exist or is not accessible: %w", err)
		} else if info.IsDir() {
			return fmt.Errorf("target %s is a directory, expected a source file", f)
		}
	}
	if counts := bulk.SliceToCounts(c.Files); len(counts) != len(c.Files) {
		return errors.New("target files must not be listed more than once")
	}

	if c.CacheMB < 1 || c.CacheMB > 10240 { // 10GB limit
		return fmt.Errorf("cache size must be between 1 and 10240 MB, got %d", c.CacheMB)
	}

	if c.ProfileFile == "" {
		c.Profile = DefaultProfile()
	} else if profile, err := LoadProfile(c.ProfileFile); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	} else {
		c.Profile = profile
	}

	if c.StateDir != "" {
		absState, err := filepath.Abs(c.StateDir)
		if err != nil {
			return fmt.Errorf("error resolving state directory: %w", err)
		}
		c.StateDir = absState
	}

	c.prepared = true
	return nil
}

// Engine runs patch and restore operations described by a Config.
type Engine struct {
	config *Config
	out    io.Writer
}

// NewEngine creates an Engine writing diffs and reports to stdout.
func NewEngine(config *Config) *Engine {
	return &Engine{config: config, out: os.Stdout}
}

func (e *Engine) prepare() error {
	if !e.config.prepared {
		if err := e.config.Prepare(); err != nil {
			return err
		}
	}
	if e.config.NoColor {
		color.NoColor = true
	}
	return nil
}

func (e *Engine) openSnapshots() (*SnapshotStore, func(), error) {
	if e.config.StateDir == "" || e.config.DryRun || e.config.Check {
		return nil, func() {}, nil
	}
	store, err := NewBadgerStorage(e.config.StateDir, e.config.CacheMB, e.config.DebugStorage)
	if err != nil {
		return nil, nil, err
	}
	return NewSnapshotStore(store), store.Close, nil
}

// Run patches every configured file.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.prepare(); err != nil {
		return err
	}
	patcher, err := NewPatcher(e.config.Profile)
	if err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	snapshots, closeSnapshots, err := e.openSnapshots()
	if err != nil {
		return err
	}
	defer closeSnapshots()

	runner := &Runner{
		Patcher:   patcher,
		Source:    NewFileSourceStore(),
		Snapshots: snapshots,
		DryRun:    e.config.DryRun,
		Check:     e.config.Check,
	}
	if e.config.ShowDiff || e.config.DryRun || e.config.Check {
		runner.Diff = e.out
	}

	log.Printf("Patching %d files, %d registered units", len(e.config.Files), patcher.Table().Len())
	reports, err := runner.PatchFiles(ctx, e.config.Files)
	for _, r := range reports {
		if r == nil {
			continue
		} else if werr := WriteReport(e.out, r); werr != nil {
			log.Printf("%sFailed to write report: %v", ErrorLogPrefix, werr)
		}
	}
	return err
}

// Restore writes snapshotted originals back to every configured file, or to every snapshotted
// file when RestoreAll is set.
func (e *Engine) Restore(force bool) error {
	e.config.restore = true
	if err := e.prepare(); err != nil {
		return err
	} else if e.config.StateDir == "" {
		return errors.New("a state directory is required to restore")
	}
	store, err := NewBadgerStorage(e.config.StateDir, e.config.CacheMB, e.config.DebugStorage)
	if err != nil {
		return err
	}
	defer store.Close()

	snapshots := NewSnapshotStore(store)
	targets, err := e.restoreTargets(snapshots)
	if err != nil {
		return err
	} else if len(targets) == 0 {
		log.Printf("No snapshots recorded in %s", e.config.StateDir)
		return nil
	}

	source := NewFileSourceStore()
	var errs []error
	for _, f := range targets {
		if err := snapshots.Restore(f, source, force); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Printf("Restored %s", f)
	}
	return errors.Join(errs...)
}

func (e *Engine) restoreTargets(snapshots *SnapshotStore) ([]string, error) {
	if !e.config.RestoreAll {
		return e.config.Files, nil
	}
	targets, err := snapshots.Paths()
	if err != nil {
		return nil, fmt.Errorf("list snapshots failed: %w", err)
	}
	known := bulk.SliceToSet(targets)
	for _, f := range e.config.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		} else if _, ok := known[abs]; !ok {
			targets = append(targets, f) // reported as missing a snapshot
		}
	}
	return targets, nil
}
