// Package dupscan walks config shares and reports duplicated config
// keys. Roots are scanned concurrently with a bounded worker pool, and
// each root is bounded by its own timeout: a hung share is reported as
// unreachable and the rest of the scan continues.
package dupscan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options control one scan.
type Options struct {
	// Roots are the share directories to walk.
	Roots []string

	// KeyPattern extracts a key name; the first capture group is the
	// key.
	KeyPattern string

	// Workers bounds concurrent root walks.
	Workers int

	// RootTimeout bounds each root walk.
	RootTimeout time.Duration
}

// Occurrence is one file defining a key.
type Occurrence struct {
	File  string `json:"file"`
	Count int    `json:"count"`
}

// Report is the structured scan result.
type Report struct {
	FilesScanned int                     `json:"files_scanned"`
	Keys         map[string][]Occurrence `json:"-"`
	Unreachable  []string                `json:"unreachable,omitempty"`
}

// WithinFile lists keys defined more than once inside a single file,
// with the offending files, sorted.
func (r *Report) WithinFile() map[string][]string {
	out := make(map[string][]string)
	for key, occs := range r.Keys {
		for _, o := range occs {
			if o.Count > 1 {
				out[key] = append(out[key], o.File)
			}
		}
	}
	for _, files := range out {
		sort.Strings(files)
	}
	return out
}

// AcrossFiles lists keys defined in more than one file, sorted.
func (r *Report) AcrossFiles() []string {
	var out []string
	for key, occs := range r.Keys {
		if len(occs) > 1 {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// Scan walks every root and aggregates key occurrences.
func Scan(ctx context.Context, opts Options, log *zap.Logger) (*Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(opts.Roots) == 0 {
		return nil, fmt.Errorf("at least one root is required")
	}
	re, err := regexp.Compile(opts.KeyPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid key pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("key pattern needs a capture group for the key name")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	report := &Report{Keys: make(map[string][]Occurrence)}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, root := range opts.Roots {
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(ctx, opts.RootTimeout)
			defer cancel()

			// The walk runs in its own goroutine so a filesystem call
			// blocked on a hung share cannot stall the worker: on
			// deadline the root is abandoned mid-call and its partial
			// counts discarded.
			outcome := make(chan walkOutcome, 1)
			go func() {
				res, err := walkRoot(rctx, root, re)
				outcome <- walkOutcome{res: res, err: err}
			}()

			var err error
			select {
			case o := <-outcome:
				if o.err == nil {
					mu.Lock()
					report.FilesScanned += o.res.filesScanned
					for key, occs := range o.res.keys {
						report.Keys[key] = append(report.Keys[key], occs...)
					}
					mu.Unlock()
					return nil
				}
				err = o.err
			case <-rctx.Done():
				err = rctx.Err()
			}

			log.Warn("root unreachable, skipping",
				zap.String("root", root),
				zap.Error(err))
			mu.Lock()
			report.Unreachable = append(report.Unreachable, root)
			mu.Unlock()
			return nil
		})
	}
	// Per-root failures are swallowed above, so Wait cannot fail; it
	// only fences the workers.
	_ = g.Wait()

	sort.Strings(report.Unreachable)
	for key := range report.Keys {
		occs := report.Keys[key]
		sort.Slice(occs, func(i, j int) bool { return occs[i].File < occs[j].File })
	}
	return report, nil
}

// rootResult holds one root's counts until the walk finishes in time;
// an abandoned walk never reaches the shared report.
type rootResult struct {
	filesScanned int
	keys         map[string][]Occurrence
}

type walkOutcome struct {
	res *rootResult
	err error
}

func walkRoot(ctx context.Context, root string, re *regexp.Regexp) (*rootResult, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}
	res := &rootResult{keys: make(map[string][]Occurrence)}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".config") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		counts := make(map[string]int)
		for _, m := range re.FindAllStringSubmatch(string(data), -1) {
			counts[m[1]]++
		}

		res.filesScanned++
		for key, n := range counts {
			res.keys[key] = append(res.keys[key], Occurrence{File: path, Count: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
