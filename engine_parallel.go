package polyinject

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/jward/polyinject/internal/jsast"
	"github.com/jward/polyinject/internal/store"
)

// workItem holds everything a transform worker needs.
type workItem struct {
	path    string
	content []byte
	fileID  int64
	batch   *store.BatchedStore // nil without a store

	unchanged bool
}

// transformParallel transforms files using a three-phase pipeline:
//
//	Phase A (serial):   Hash check, delete old data, prepare file records.
//	Phase B (parallel): Parse, dispatch and write output via a worker pool.
//	Phase C (serial):   Commit batches to SQLite.
func (e *Engine) transformParallel(ctx context.Context, paths []string, force bool) (*Run, error) {
	run := &Run{}
	var errs []error

	// ---- Phase A: Serial file preparation ----
	var items []workItem
	for _, path := range paths {
		item, skip, err := e.prepareFile(path, force)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			if item.unchanged {
				run.Unchanged = append(run.Unchanged, path)
			}
			continue
		}
		items = append(items, item)
	}

	// ---- Phase B: Parallel transformation ----
	numWorkers := max(min(runtime.NumCPU(), len(items)), 1)

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item workItem
		res  *Result
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// The Plugin is shared read-only; each call owns its unit and
			// the BatchedStore per item isolates writes.
			for item := range workCh {
				if err := ctx.Err(); err != nil {
					resultCh <- result{item: item, err: err}
					continue
				}
				res, err := e.transformFile(ctx, item)
				resultCh <- result{item: item, res: res, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	for r := range resultCh {
		if r.err != nil {
			e.discard(r.item)
			errs = append(errs, fmt.Errorf("transform %s: %w", r.item.path, r.err))
			continue
		}
		if err := e.commitFile(r.item, r.res); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", r.item.path, err))
			continue
		}
		run.Results = append(run.Results, r.res)
	}

	if len(errs) > 0 {
		return run, fmt.Errorf("parallel transform had %d error(s): %w", len(errs), errs[0])
	}
	return run, nil
}

// prepareFile does Phase A work for a single file: hash check, cleanup, file
// record. skip=true means the file is unsupported or, with item.unchanged
// set, already indexed with the same content.
func (e *Engine) prepareFile(path string, force bool) (workItem, bool, error) {
	if _, ok := jsast.LanguageForFile(path); !ok {
		return workItem{}, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	item := workItem{path: path, content: content}
	if e.store == nil {
		return item, false, nil
	}

	hash := store.ContentHash(content)
	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && !force && existing.Hash == hash && existing.Method == string(e.plugin.Method()) {
		e.logger.Debug("unchanged", "path", path)
		return workItem{path: path, unchanged: true}, true, nil
	}

	if existing != nil {
		if err := e.store.DeleteFileData(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete old data: %w", err)
		}
	}

	fileID, err := e.store.InsertFile(&store.File{
		Path:          path,
		Hash:          hash,
		Method:        string(e.plugin.Method()),
		LastProcessed: time.Now(),
	})
	if err != nil {
		return workItem{}, false, fmt.Errorf("insert file: %w", err)
	}
	item.fileID = fileID
	item.batch = store.NewBatchedStore(e.store)
	return item, false, nil
}

// transformFile does Phase B work: run the plugin, write the output and
// buffer the usage rows.
func (e *Engine) transformFile(ctx context.Context, item workItem) (*Result, error) {
	res, err := e.plugin.TransformSource(ctx, item.path, item.content)
	if err != nil {
		return nil, err
	}

	if out := e.outputPath(item.path); out != "" && (res.Modified || !e.inPlace) {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
		if err := os.WriteFile(out, res.Code, 0o644); err != nil {
			return nil, fmt.Errorf("write output: %w", err)
		}
		e.logger.Debug("wrote", "path", out, "modified", res.Modified)
	}

	if item.batch != nil {
		if err := recordResult(item.batch, item.fileID, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// recordResult buffers the usages and injections of res under fileID.
func recordResult(ds store.DataStore, fileID int64, res *Result) error {
	for _, u := range res.Usages {
		_, err := ds.InsertUsage(&store.Usage{
			FileID:    fileID,
			Kind:      string(u.Kind),
			Name:      u.Name,
			Source:    u.Source,
			Object:    u.Object,
			Key:       u.Key,
			Placement: string(u.Placement),
			Line:      u.Line,
			Col:       u.Col,
			HandledBy: u.HandledBy,
		})
		if err != nil {
			return fmt.Errorf("record usage: %w", err)
		}
	}
	for _, inj := range res.Injections {
		_, err := ds.InsertInjection(&store.Injection{
			FileID:     fileID,
			Source:     inj.Source,
			ExportName: inj.ExportName,
			Binding:    inj.Binding,
			Provider:   inj.Provider,
			Position:   inj.Position.String(),
		})
		if err != nil {
			return fmt.Errorf("record injection: %w", err)
		}
	}
	return nil
}

// commitFile does Phase C work for one file. A file rewritten in place is
// recorded under the hash of its new content.
func (e *Engine) commitFile(item workItem, res *Result) error {
	if item.batch == nil {
		return nil
	}
	if err := e.store.CommitBatch(item.batch); err != nil {
		return err
	}
	if e.inPlace && res.Modified {
		return e.store.UpdateFileHash(item.fileID, store.ContentHash(res.Code))
	}
	return nil
}

// discard drops the file record of a failed transform so the next run
// retries it.
func (e *Engine) discard(item workItem) {
	if item.batch == nil {
		return
	}
	if err := e.store.DeleteFileData(item.fileID); err != nil {
		e.logger.Warn("discard failed file", "path", item.path, "err", err)
	}
}
