package pipeline

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Michael-F-Ellis/midipipe/internal/config"
	"github.com/Michael-F-Ellis/midipipe/internal/model"
	"github.com/Michael-F-Ellis/midipipe/internal/repair"
	"github.com/Michael-F-Ellis/midipipe/internal/smf"
	"github.com/Michael-F-Ellis/midipipe/internal/store"
)

// counters are the batch-wide atomic tallies (imported, skipped,
// errored) backing the batch summary; there are no per-stage counts.
// No lock is held across an I/O suspension;
// every field here is updated with atomic.AddInt64 alone.
type counters struct {
	imported int64
	skipped  int64
	errored  int64
}

func (c *counters) incImported() { atomic.AddInt64(&c.imported, 1) }
func (c *counters) incSkipped()  { atomic.AddInt64(&c.skipped, 1) }
func (c *counters) incErrored()  { atomic.AddInt64(&c.errored, 1) }

// Runtime wires the five stages into concurrent worker pools connected
// by bounded Queues, per one ImportBatch's worth of work. A Runtime is
// single-use: build one with NewRuntime per call to ImportDirectory.
type Runtime struct {
	cfg   *config.Config
	store store.Store
	log   *logrus.Entry

	running  atomic.Bool
	counters counters
	tracker  *Tracker
	batch    *model.ImportBatch

	sanitizeQ *Queue[*Record]
	splitQ    *Queue[*Record]
	analyzeQ  *Queue[*Record]
	renameQ   *Queue[*Record]

	analyzeBatchMu sync.Mutex
	analyzeBatch   []store.AnalyzedRecord
}

// NewRuntime builds a Runtime against cfg's queue/worker sizing, backed
// by st for persistence.
func NewRuntime(cfg *config.Config, st store.Store) *Runtime {
	r := &Runtime{
		cfg:       cfg,
		store:     st,
		log:       logrus.WithField("component", "pipeline"),
		sanitizeQ: NewQueue[*Record](cfg.QueueCapacity),
		splitQ:    NewQueue[*Record](cfg.QueueCapacity),
		analyzeQ:  NewQueue[*Record](cfg.QueueCapacity),
		renameQ:   NewQueue[*Record](cfg.QueueCapacity),
	}
	r.running.Store(true)
	return r
}

// Stop signals every worker loop to drain and exit on its next
// iteration rather than pick up further work.
func (r *Runtime) Stop() { r.running.Store(false) }

// Progress returns the current tracker snapshot, or the zero value
// before ImportDirectory has started.
func (r *Runtime) Progress() Progress {
	if r.tracker == nil {
		return Progress{}
	}
	return r.tracker.Snapshot()
}

// ImportDirectory walks sourceDir (recursing when recursive is set),
// runs every discovered MIDI file through Import, Sanitize, Split,
// Analyze and Rename, and returns the completed ImportBatch summary.
// destDir is the root under which renamed/canonical files are written.
func (r *Runtime) ImportDirectory(ctx context.Context, sourceDir, destDir string, recursive bool, category string) (*model.ImportBatch, error) {
	batch := &model.ImportBatch{ID: uuid.New(), Status: model.BatchRunning, Category: category, StartedAt: time.Now()}
	if err := r.store.CreateImportBatch(ctx, batch); err != nil {
		return nil, err
	}
	r.batch = batch

	paths, err := discoverMIDIFiles(sourceDir, recursive)
	if err != nil {
		return nil, err
	}
	r.tracker = NewTracker(int64(len(paths)), r.cfg.ProgressEvery)

	pathQ := NewQueue[string](len(paths) + 1)
	for _, p := range paths {
		pathQ.TryPush(p)
	}

	var importDone, sanitizeDone, splitDone, analyzeDone atomic.Bool

	g, gctx := errgroup.WithContext(ctx)

	var importWG, sanitizeWG, splitWG, analyzeWG sync.WaitGroup
	r.spawnPool(g, &importWG, r.cfg.Workers.Import, func() error {
		return r.importWorker(gctx, pathQ, category)
	})
	r.spawnPool(g, &sanitizeWG, r.cfg.Workers.Sanitize, func() error {
		return r.sanitizeWorker(gctx, &importDone)
	})
	r.spawnPool(g, &splitWG, r.cfg.Workers.Split, func() error {
		return r.splitWorker(gctx, &sanitizeDone)
	})
	r.spawnPool(g, &analyzeWG, r.cfg.Workers.Analyze, func() error {
		return r.analyzeWorker(gctx, &splitDone)
	})
	r.spawnPool(g, nil, r.cfg.Workers.Rename, func() error {
		return r.renameWorker(gctx, &analyzeDone, destDir)
	})

	g.Go(func() error { importWG.Wait(); importDone.Store(true); return nil })
	g.Go(func() error { sanitizeWG.Wait(); sanitizeDone.Store(true); return nil })
	g.Go(func() error { splitWG.Wait(); splitDone.Store(true); return nil })
	g.Go(func() error { analyzeWG.Wait(); analyzeDone.Store(true); return nil })

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.flushAnalyzeBatch(ctx)

	finished := time.Now()
	batch.Status = model.BatchCompleted
	batch.FinishedAt = &finished
	batch.Imported = int(atomic.LoadInt64(&r.counters.imported))
	batch.Skipped = int(atomic.LoadInt64(&r.counters.skipped))
	if err := r.store.UpdateImportBatch(ctx, batch); err != nil {
		return batch, err
	}
	return batch, nil
}

// spawnPool launches n copies of work under g, each joined to wg (if
// non-nil) so a caller can detect when the whole pool has drained.
func (r *Runtime) spawnPool(g *errgroup.Group, wg *sync.WaitGroup, n int, work func() error) {
	if wg != nil {
		wg.Add(n)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if wg != nil {
				defer wg.Done()
			}
			return work()
		})
	}
}

// importWorker drains the finite, pre-populated path queue. There is no
// upstream producer, so an empty TryPop means the worker's share of the
// batch is done.
func (r *Runtime) importWorker(ctx context.Context, paths *Queue[string], category string) error {
	for {
		if ctx.Err() != nil || !r.running.Load() {
			return nil
		}
		path, ok := paths.TryPop()
		if !ok {
			return nil
		}
		rec, forward := r.runImport(ctx, path, category)
		if !forward {
			continue
		}
		r.pushWithBackoff(ctx, r.sanitizeQ, rec)
		r.tracker.Observe("import", path)
	}
}

func (r *Runtime) sanitizeWorker(ctx context.Context, upstreamDone *atomic.Bool) error {
	for {
		rec, ok := r.sanitizeQ.TryPop()
		if !ok {
			if upstreamDone.Load() && r.sanitizeQ.Len() == 0 {
				return nil
			}
			if !r.waitOrStop(ctx) {
				return nil
			}
			continue
		}
		r.runSanitize(ctx, rec)
		r.pushWithBackoff(ctx, r.splitQ, rec)
		r.tracker.Observe("sanitize", rec.SourcePath)
	}
}

func (r *Runtime) splitWorker(ctx context.Context, upstreamDone *atomic.Bool) error {
	for {
		rec, ok := r.splitQ.TryPop()
		if !ok {
			if upstreamDone.Load() && r.splitQ.Len() == 0 {
				return nil
			}
			if !r.waitOrStop(ctx) {
				return nil
			}
			continue
		}
		for _, out := range r.runSplit(ctx, rec) {
			r.pushWithBackoff(ctx, r.analyzeQ, out)
		}
		r.tracker.Observe("split", rec.SourcePath)
	}
}

func (r *Runtime) analyzeWorker(ctx context.Context, upstreamDone *atomic.Bool) error {
	for {
		rec, ok := r.analyzeQ.TryPop()
		if !ok {
			if upstreamDone.Load() && r.analyzeQ.Len() == 0 {
				return nil
			}
			if !r.waitOrStop(ctx) {
				return nil
			}
			continue
		}
		r.runAnalyze(ctx, rec)
		r.pushWithBackoff(ctx, r.renameQ, rec)
		r.tracker.Observe("analyze", rec.SourcePath)
	}
}

func (r *Runtime) renameWorker(ctx context.Context, upstreamDone *atomic.Bool, destDir string) error {
	for {
		rec, ok := r.renameQ.TryPop()
		if !ok {
			if upstreamDone.Load() && r.renameQ.Len() == 0 {
				return nil
			}
			if !r.waitOrStop(ctx) {
				return nil
			}
			continue
		}
		r.runRename(ctx, rec, destDir)
		r.tracker.Complete(rec.SourcePath)
	}
}

// pushWithBackoff retries TryPush against a full queue, sleeping
// PushBackoff between attempts, until it succeeds or the runtime stops.
func (r *Runtime) pushWithBackoff(ctx context.Context, q *Queue[*Record], rec *Record) {
	for {
		if q.TryPush(rec) {
			return
		}
		if !r.waitOrStop(ctx) {
			return
		}
	}
}

// waitOrStop sleeps PollInterval and reports whether the caller should
// keep looping (true) or stop (false, on cancellation or Stop()).
func (r *Runtime) waitOrStop(ctx context.Context) bool {
	if !r.running.Load() {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(r.cfg.PollInterval):
		return true
	}
}

// appendAnalyzed adds one record to the shared analyze batch buffer,
// flushing it to the store once AnalyzeBatchSize is reached.
func (r *Runtime) appendAnalyzed(ctx context.Context, rec store.AnalyzedRecord) {
	r.analyzeBatchMu.Lock()
	r.analyzeBatch = append(r.analyzeBatch, rec)
	full := len(r.analyzeBatch) >= r.cfg.AnalyzeBatchSize
	var batch []store.AnalyzedRecord
	if full {
		batch = r.analyzeBatch
		r.analyzeBatch = nil
	}
	r.analyzeBatchMu.Unlock()

	if full {
		r.flushBatch(ctx, batch)
	}
}

// flushAnalyzeBatch flushes whatever remains in the buffer, called once
// after every worker has stopped (a partial flush on shutdown).
func (r *Runtime) flushAnalyzeBatch(ctx context.Context) {
	r.analyzeBatchMu.Lock()
	batch := r.analyzeBatch
	r.analyzeBatch = nil
	r.analyzeBatchMu.Unlock()
	r.flushBatch(ctx, batch)
}

func (r *Runtime) flushBatch(ctx context.Context, batch []store.AnalyzedRecord) {
	if len(batch) == 0 {
		return
	}
	if err := r.store.BatchInsertAnalyzed(ctx, batch); err != nil {
		r.log.WithField("stage", "analyze").Warnf("batch insert of %d records failed: %v", len(batch), err)
		for range batch {
			r.counters.incErrored()
		}
	}
}

// AnalyzePending re-runs analysis for every File row with analyzed_at
// still unset, the retry path for a ParseError or RepairFailed seen
// during an earlier import. It reads each file's bytes back off disk at
// its stored path, attempting the same one-pass repair Sanitize does,
// and reports how many it managed to analyze versus leave pending.
func (r *Runtime) AnalyzePending(ctx context.Context, pageSize int) (analyzed, stillPending int, err error) {
	// A file that analyzes successfully drops out of ListUnanalyzed, so
	// offset advances only past the files that stayed pending; those are
	// never refetched. A page starting with the same row as the previous
	// one ends the loop.
	offset := 0
	var prevFirst uuid.UUID
	for {
		pending, perr := r.store.ListUnanalyzed(ctx, pageSize, offset)
		if perr != nil {
			return analyzed, stillPending, perr
		}
		if len(pending) == 0 || pending[0].ID == prevFirst {
			return analyzed, stillPending, nil
		}
		prevFirst = pending[0].ID
		failed := 0
		for _, f := range pending {
			if r.analyzeOne(ctx, f) {
				analyzed++
			} else {
				stillPending++
				failed++
			}
		}
		if len(pending) < pageSize {
			return analyzed, stillPending, nil
		}
		offset += failed
	}
}

func (r *Runtime) analyzeOne(ctx context.Context, f *model.File) bool {
	raw, err := os.ReadFile(f.Filepath)
	if err != nil {
		r.logStageError("analyze-pending", f.Filepath, err)
		return false
	}
	parsed, err := smf.Parse(raw)
	if err != nil {
		result := repair.AttemptRepair(raw)
		if result.Status != repair.Repaired {
			r.logStageError("analyze-pending", f.Filepath, err)
			return false
		}
		reparsed, rerr := smf.Parse(result.Data)
		if rerr != nil {
			r.logStageError("analyze-pending", f.Filepath, rerr)
			return false
		}
		parsed = reparsed
	}

	f.Format = model.SMFFormat(parsed.Format)
	f.TrackCount = len(parsed.Tracks)
	f.TicksPerQtr = parsed.TicksPerQuarterNote()

	rec := &Record{SourcePath: f.Filepath, File: f, Parsed: parsed}
	r.runAnalyze(ctx, rec)
	r.flushAnalyzeBatch(ctx)
	return true
}
