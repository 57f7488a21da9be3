package splice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrWouldChange is returned in check mode for files a pass would modify.
var ErrWouldChange = errors.New("file would be changed")

// Runner drives complete passes over files: load, apply, snapshot, store.
type Runner struct {
	Patcher *Patcher
	Source  SourceStore
	// Snapshots records originals before the first write, nil disables undo support.
	Snapshots *SnapshotStore
	// DryRun computes the result without storing it.
	DryRun bool
	// Check behaves like DryRun but reports ErrWouldChange for files that would be modified.
	Check bool
	// Diff receives a unified diff for every changed file, nil disables diff output.
	Diff io.Writer
}

// PatchFile runs a single pass over path. The file is never written when an error is returned.
func (r *Runner) PatchFile(ctx context.Context, path string) (*Report, error) {
	var diff bytes.Buffer
	report, err := r.patchFile(ctx, path, &diff)
	if r.Diff != nil && diff.Len() > 0 {
		if werr := WriteColorDiff(r.Diff, diff.String()); werr != nil {
			err = errors.Join(err, werr)
		}
	}
	return report, err
}

func (r *Runner) patchFile(ctx context.Context, path string, diff *bytes.Buffer) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := r.Source.Load(path)
	if err != nil {
		return nil, err
	}
	out, report, err := r.Patcher.Apply(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	report.Path = path

	if !report.Changed() {
		log.Printf("Unchanged %s: %s", path, report.Summary())
		return report, nil
	}
	if r.Diff != nil {
		if d, err := UnifiedDiff(path, text, out); err != nil {
			return report, fmt.Errorf("diff failure %s: %w", path, err)
		} else {
			diff.WriteString(d)
		}
	}
	if r.Check {
		return report, fmt.Errorf("%w: %s", ErrWouldChange, path)
	} else if r.DryRun {
		log.Printf("Dry run %s: %s", path, report.Summary())
		return report, nil
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if r.Snapshots != nil {
		if err := r.Snapshots.Record(path, text, out); err != nil {
			return report, fmt.Errorf("snapshot failure %s: %w", path, err)
		}
	}
	if err := r.Source.Store(path, out); err != nil {
		return report, fmt.Errorf("write failure %s: %w", path, err)
	}
	log.Printf("Patched %s: %s", path, report.Summary())
	return report, nil
}

// PatchFiles runs independent passes over paths concurrently, one goroutine per file.
// Reports are returned in path order, a nil entry marks a file that failed before a report existed.
// All per-file errors are joined, a failing file never prevents the others from being processed.
func (r *Runner) PatchFiles(ctx context.Context, paths []string) ([]*Report, error) {
	reports := make([]*Report, len(paths))
	errs := make([]error, len(paths))
	diffs := make([]bytes.Buffer, len(paths))

	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		eg.Go(func() error {
			reports[i], errs[i] = r.patchFile(ctx, path, &diffs[i])
			return nil
		})
	}
	_ = eg.Wait()

	if r.Diff != nil { // written after the batch so output order is deterministic
		for i := range diffs {
			if diffs[i].Len() == 0 {
				continue
			} else if err := WriteColorDiff(r.Diff, diffs[i].String()); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return reports, errors.Join(errs...)
}
