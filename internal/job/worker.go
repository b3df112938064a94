package job

import (
	"context"
	"errors"

	"docnerd/internal/errs"
)

// JobStore is the subset of the store's contract the Worker needs, per
// spec §4.5/§4.7. Kept as a narrow interface (the teacher's own
// boundary-interface style) so worker_test.go can fake it without a
// database.
type JobStore interface {
	RemoveAllDocuments(ctx context.Context, versionID int64) error
	DeletePage(ctx context.Context, pageID int64) error
	AddScrapeResult(ctx context.Context, versionID int64, depth int, result ScrapeResult) (int64, error)
}

// Strategy performs the actual crawl, reporting one ProgressEvent per page
// via report. It must stop as soon as cancelled() becomes true.
type Strategy interface {
	Scrape(ctx context.Context, opts ScraperOptions, report func(ProgressEvent), cancelled func() bool) error
}

// Callbacks lets the Manager observe a running job without the Worker
// reaching back into the job table itself.
type Callbacks struct {
	OnProgress func(event ProgressEvent)
	OnError    func(err error, result *ScrapeResult)
}

// Worker runs exactly one job per ExecuteJob call. It never mutates the
// Job directly; all state changes happen through callbacks, per §4.7.
type Worker struct {
	store JobStore
}

func NewWorker(store JobStore) *Worker {
	return &Worker{store: store}
}

// ExecuteJob implements §4.7's steps in order.
func (w *Worker) ExecuteJob(ctx context.Context, j *Job, strategy Strategy, cancelled func() bool, cb Callbacks) error {
	if !j.Options.IsRefresh {
		if err := w.store.RemoveAllDocuments(ctx, j.VersionID); err != nil {
			return errs.NewStoreError("remove all documents before initial scrape", err, true)
		}
	}

	var fatalErr error
	report := func(event ProgressEvent) {
		if err := w.handleProgress(ctx, j, event); err != nil {
			if cb.OnError != nil {
				cb.OnError(err, event.Result)
			}
			var e *errs.Error
			if fatalErr == nil && errors.As(err, &e) && e.Fatal {
				fatalErr = err
			}
		}
		if cb.OnProgress != nil {
			cb.OnProgress(event)
		}
	}
	stop := func() bool { return fatalErr != nil || cancelled() }

	err := strategy.Scrape(ctx, j.Options, report, stop)
	if fatalErr != nil {
		return fatalErr
	}
	if cancelled() {
		return errs.NewCancellationError("Job cancelled")
	}
	return err
}

// handleProgress applies one progress event's store side effects, per the
// dispatch table in §4.7 step 3. Fatal errors (page delete failures) are
// returned and rethrown by the caller; AddScrapeResult failures are
// reported but non-fatal so the crawl continues.
func (w *Worker) handleProgress(ctx context.Context, j *Job, event ProgressEvent) error {
	switch {
	case event.Deleted && event.HasPageID:
		if err := w.store.DeletePage(ctx, event.PageID); err != nil {
			return errs.NewStoreError("delete page during refresh", err, true)
		}
		return nil

	case event.Result == nil && event.HasPageID:
		// 304 / not-modified: no store action.
		return nil

	case event.Result != nil && event.HasPageID:
		if err := w.store.DeletePage(ctx, event.PageID); err != nil {
			return errs.NewStoreError("delete page before reinsert", err, true)
		}
		_, err := w.store.AddScrapeResult(ctx, j.VersionID, event.Depth, toStoreResult(event.Result))
		return err

	case event.Result != nil:
		_, err := w.store.AddScrapeResult(ctx, j.VersionID, event.Depth, toStoreResult(event.Result))
		return err

	default:
		return nil
	}
}

func toStoreResult(r *ScrapeResult) ScrapeResult {
	return *r
}
