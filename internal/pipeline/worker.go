package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgallion1/regdocs/internal/record"
	"github.com/dgallion1/regdocs/internal/vectorstore"
)

// Worker processes document jobs. One Worker may be shared by several
// goroutines; jobs for documents with the same stem run one at a time.
type Worker struct {
	runner *Runner
	log    *slog.Logger
	locks  *docLocks
}

func NewWorker(runner *Runner, log *slog.Logger) *Worker {
	return &Worker{runner: runner, log: log, locks: newDocLocks()}
}

// Process runs every stage for a job's document. A file whose rows are
// already in the store is skipped unless the job forces a reload, which
// replaces them. The duplicate check and the run happen while the
// document's stem is held.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "file", job.Filename)
	defer job.releaseFileData()

	release, err := w.locks.acquire(ctx, record.DocumentStem(job.Filename), func() {
		log.Info("waiting for in-flight job on the same document")
	})
	if err != nil {
		job.AddError(fmt.Sprintf("waiting: %s", err))
		job.SetStatus(StatusFailed, string(StatusQueued))
		return
	}
	defer release()

	exists, err := w.checkDuplicate(ctx, job)
	if err != nil {
		log.Warn("dedup check failed, proceeding", "error", err)
	} else if exists && !job.Force {
		log.Info("file already loaded, skipping")
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}

	var current JobStatus
	opts := RunOptions{
		Replace: job.Force,
		OnStage: func(s JobStatus) {
			if current != "" {
				job.StageDone()
			}
			current = s
			job.SetStatus(s, string(s))
		},
	}
	rep, err := w.runner.RunReader(ctx, bytes.NewReader(job.FileData()), job.Filename, opts)
	if err != nil {
		log.Error("ingest failed", "stage", current, "error", err)
		job.AddError(fmt.Sprintf("%s: %s", current, err))
		job.SetStatus(StatusFailed, string(current))
		return
	}
	job.StageDone()
	job.SetResult(rep.Files, rep.Inserted)
	job.SetStatus(StatusCompleted, "done")
	log.Info("ingest complete", "inserted", rep.Inserted, "duration_ms", rep.Duration.Milliseconds())
}

// checkDuplicate reports whether the store already holds rows for the file.
func (w *Worker) checkDuplicate(ctx context.Context, job *Job) (bool, error) {
	if w.runner.Store == nil {
		return false, nil
	}
	n, err := w.runner.Store.Count(ctx, vectorstore.Filter{FileName: job.Filename})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// docLocks is the set of document stems with a job in flight. Stage files
// are named by stem, so two jobs on one stem would overwrite each other.
type docLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newDocLocks() *docLocks {
	return &docLocks{held: map[string]chan struct{}{}}
}

// acquire blocks until stem is free or ctx is done. onWait is called once
// if the stem is busy on the first attempt.
func (l *docLocks) acquire(ctx context.Context, stem string, onWait func()) (func(), error) {
	waited := false
	for {
		l.mu.Lock()
		busy, ok := l.held[stem]
		if !ok {
			done := make(chan struct{})
			l.held[stem] = done
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				delete(l.held, stem)
				l.mu.Unlock()
				close(done)
			}, nil
		}
		l.mu.Unlock()

		if !waited && onWait != nil {
			onWait()
		}
		waited = true
		select {
		case <-busy:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
