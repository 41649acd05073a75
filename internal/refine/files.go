package refine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/recovery"
)

// Suffixes of the files written by RefineFile.
const (
	TableSuffix = ".refined.xlsx"
	ReplySuffix = ".reply.txt"
)

// ErrDuplicateInput is reported for a file given to RefineFiles more than
// once. Only its first occurrence is refined.
var ErrDuplicateInput = errors.New("file is listed more than once")

// FileResult is the outcome of refining one spreadsheet on disk.
type FileResult struct {
	Source string
	Output string
	Result *Result
	Err    error
}

// Status is "recovered", "unrecovered" or "error".
func (f *FileResult) Status() string {
	if f.Err != nil || f.Result == nil {
		return "error"
	}
	return f.Result.Outcome.Status()
}

// RefineFile loads path, refines it and writes the outcome into outDir.
//
// A recovered table goes to <outDir>/<name>.refined.xlsx. An unrecovered
// reply goes to <outDir>/<name>.reply.txt with the diagnostic first, so no
// answer from the provider is ever lost. An empty outDir means a "refined"
// folder next to the input. Nothing is written when loading or inference
// fails.
func (r *Refiner) RefineFile(ctx context.Context, path, instruction, outDir string) (*FileResult, error) {
	return r.refineTo(ctx, path, instruction, outputDir(path, outDir), stem(path))
}

func (r *Refiner) refineTo(ctx context.Context, path, instruction, dir, name string) (*FileResult, error) {
	fr := &FileResult{Source: path}

	t, err := xlsx.LoadFile(path, xlsx.LoadOptions{})
	if err != nil {
		return fr, err
	}
	res, err := r.Refine(ctx, t, instruction)
	if err != nil {
		return fr, err
	}
	fr.Result = res

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fr, fmt.Errorf("could not create output folder: %w", err)
	}

	switch out := res.Outcome.(type) {
	case recovery.Recovered:
		fr.Output = filepath.Join(dir, name+TableSuffix)
		if err := xlsx.WriteFile(out.Table, fr.Output); err != nil {
			return fr, err
		}
	case recovery.Unrecovered:
		fr.Output = filepath.Join(dir, name+ReplySuffix)
		body := fmt.Sprintf("%s\n\n%s\n", out.Diagnostic, out.Raw)
		if err := os.WriteFile(fr.Output, []byte(body), 0644); err != nil {
			return fr, fmt.Errorf("could not save reply: %w", err)
		}
	}
	return fr, nil
}

func outputDir(path, outDir string) string {
	if outDir != "" {
		return outDir
	}
	return filepath.Join(filepath.Dir(path), "refined")
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// outputNames picks an output name for each path so that no two files write
// to the same place. The first file with a given name keeps it; later ones
// become name-2, name-3 and so on, skipping names another input already
// owns. A path listed twice gets ErrDuplicateInput instead.
func outputNames(paths []string, outDir string) ([]string, []error) {
	names := make([]string, len(paths))
	errs := make([]error, len(paths))

	owned := make(map[string]bool, len(paths))
	for _, p := range paths {
		owned[filepath.Join(outputDir(p, outDir), stem(p))] = true
	}

	inputs := make(map[string]bool, len(paths))
	claimed := make(map[string]bool, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		if inputs[abs] {
			errs[i] = fmt.Errorf("%s: %w", p, ErrDuplicateInput)
			continue
		}
		inputs[abs] = true

		dir, name := outputDir(p, outDir), stem(p)
		if claimed[filepath.Join(dir, name)] {
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s-%d", stem(p), n)
				key := filepath.Join(dir, candidate)
				if !claimed[key] && !owned[key] {
					name = candidate
					break
				}
			}
		}
		claimed[filepath.Join(dir, name)] = true
		names[i] = name
	}
	return names, errs
}

// RefineFiles runs RefineFile over paths with at most limit requests in
// flight. Files are independent: one failure never stops the others, and
// results come back in input order. Files that share a name get distinct
// outputs (see outputNames). done, when set, is called as each file
// finishes.
func (r *Refiner) RefineFiles(ctx context.Context, paths []string, instruction, outDir string, limit int, done func(*FileResult)) []*FileResult {
	if limit <= 0 {
		limit = 1
	}
	results := make([]*FileResult, len(paths))
	names, errs := outputNames(paths, outDir)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			fr, err := &FileResult{Source: path}, errs[i]
			if err == nil {
				fr, err = r.refineTo(gctx, path, instruction, outputDir(path, outDir), names[i])
			}
			fr.Err = err
			results[i] = fr
			if done != nil {
				done(fr)
			}
			return nil
		})
	}
	g.Wait()
	return results
}
