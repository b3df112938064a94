package job

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"docnerd/internal/errs"
	"docnerd/internal/logging"
)

// ManagerStore is the subset of the store's metadata/version contract the
// Manager needs, per spec §4.5/§4.8.
type ManagerStore interface {
	JobStore
	EnsureVersion(ctx context.Context, library, version, sourceURL, optionsJSON string) (int64, error)
	UpdateVersionStatus(ctx context.Context, versionID int64, status, errorMessage string) error
	UpdateVersionProgress(ctx context.Context, versionID int64, pagesScraped, totalPages int) error
	StoreScraperOptions(ctx context.Context, versionID int64, optionsJSON string) error
	GetScraperOptions(ctx context.Context, versionID int64) (string, error)
}

// Manager owns the in-memory job table, a bounded work pool, and the
// per-(library,version) mutual exclusion rule (§4.8). Grounded on the
// teacher's Orchestrator control surface (Pause/Resume/Stop via a guarded
// cancelFunc, status persisted through updateCampaignStatus) generalized
// from one campaign to many concurrently tracked jobs.
type Manager struct {
	store    ManagerStore
	worker   *Worker
	strategy Strategy
	bus      *EventBus

	mu      sync.Mutex
	jobs    map[string]*Job
	cancels map[string]context.CancelFunc
	locked  map[string]string       // "library\x00version" -> jobID holding the slot
	waiters map[string][]lockWaiter // FIFO queue of jobs blocked on that same key
	sem     *semaphore.Weighted
	nextID  atomic.Uint64
}

// lockWaiter is one job blocked in acquireLock, woken by a close of ch when
// the key is handed to it.
type lockWaiter struct {
	id string
	ch chan struct{}
}

func NewManager(store ManagerStore, strategy Strategy, concurrency int) *Manager {
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Manager{
		store:    store,
		worker:   NewWorker(store),
		strategy: strategy,
		bus:      NewEventBus(),
		jobs:     make(map[string]*Job),
		cancels:  make(map[string]context.CancelFunc),
		locked:   make(map[string]string),
		waiters:  make(map[string][]lockWaiter),
		sem:      semaphore.NewWeighted(int64(concurrency)),
	}
}

func (m *Manager) Events() *EventBus { return m.bus }

// lockKey normalizes library the same way the store's library name
// comparison key is normalized (case-insensitive, per spec §3), so "React"
// and "react" jobs mutually exclude each other.
func lockKey(library, version string) string { return strings.ToLower(library) + "\x00" + version }

// EnqueueScrapeJob creates/updates the Version row with status queued and
// schedules the job on the work pool.
func (m *Manager) EnqueueScrapeJob(ctx context.Context, opts ScraperOptions) (string, error) {
	opts = DefaultScraperOptions(opts)
	optionsJSON, err := EncodeScraperOptions(opts)
	if err != nil {
		return "", errs.NewConfigurationError("marshal scraper options: " + err.Error())
	}

	versionID, err := m.store.EnsureVersion(ctx, opts.Library, opts.Version, opts.URL, optionsJSON)
	if err != nil {
		return "", err
	}
	if err := m.store.UpdateVersionStatus(ctx, versionID, "queued", ""); err != nil {
		return "", err
	}

	j := &Job{
		ID:        m.newJobID(),
		Library:   opts.Library,
		Version:   opts.Version,
		VersionID: versionID,
		Status:    StatusQueued,
		Options:   opts,
	}
	m.schedule(j)
	return j.ID, nil
}

// EnqueueRefreshJob requires an existing Version with stored scraper
// options; the caller is responsible for loading the page frontier
// (initialQueue) into opts before calling this, since only the store layer
// knows the existing Page rows.
func (m *Manager) EnqueueRefreshJob(ctx context.Context, versionID int64, opts ScraperOptions) (string, error) {
	opts = DefaultScraperOptions(opts)
	opts.IsRefresh = true

	if err := m.store.UpdateVersionStatus(ctx, versionID, "queued", ""); err != nil {
		return "", err
	}

	j := &Job{
		ID:        m.newJobID(),
		Library:   opts.Library,
		Version:   opts.Version,
		VersionID: versionID,
		Status:    StatusQueued,
		Options:   opts,
	}
	m.schedule(j)
	return j.ID, nil
}

func (m *Manager) newJobID() string {
	return fmt.Sprintf("job-%d", m.nextID.Add(1))
}

func (m *Manager) schedule(j *Job) {
	m.mu.Lock()
	m.jobs[j.ID] = j
	m.mu.Unlock()

	m.emitStatus(j, "")

	go m.run(j)
}

// run blocks on the per-(library,version) lock and the pool semaphore
// before executing the job body, implementing §4.8's FIFO/mutual-exclusion
// rule and testable property 8.
func (m *Manager) run(j *Job) {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancels[j.ID] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, j.ID)
		m.mu.Unlock()
		cancel()
	}()

	key := lockKey(j.Library, j.Version)
	if !m.acquireLock(ctx, key, j.ID) {
		m.finish(j, StatusCancelled, "Job cancelled")
		return
	}
	defer m.releaseLock(key, j.ID)

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.finish(j, StatusCancelled, "Job cancelled")
		return
	}
	defer m.sem.Release(1)

	m.setStatus(j, StatusRunning, "")

	cancelled := func() bool { return ctx.Err() != nil }
	cb := Callbacks{
		OnProgress: func(event ProgressEvent) { m.onProgress(j, event) },
		OnError: func(err error, _ *ScrapeResult) {
			logging.Get(logging.CategoryStore).Error("job %s: %v", j.ID, err)
		},
	}

	err := m.worker.ExecuteJob(ctx, j, m.strategy, cancelled, cb)
	switch {
	case err != nil && errs.IsKind(err, errs.KindCancellation):
		m.finish(j, StatusCancelled, err.Error())
	case err != nil:
		m.finish(j, StatusFailed, err.Error())
	default:
		m.finish(j, StatusCompleted, "")
	}
}

// acquireLock blocks job id until it holds key, handed over FIFO from
// whichever job released it last, rather than polling (§4.8). It returns
// false if ctx is cancelled first, having removed id from the wait queue
// (or, if the handoff raced with cancellation, released the key again).
func (m *Manager) acquireLock(ctx context.Context, key, id string) bool {
	m.mu.Lock()
	if _, held := m.locked[key]; !held {
		m.locked[key] = id
		m.mu.Unlock()
		return true
	}
	ch := make(chan struct{})
	m.waiters[key] = append(m.waiters[key], lockWaiter{id: id, ch: ch})
	m.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		m.mu.Lock()
		q := m.waiters[key]
		for i, w := range q {
			if w.id == id {
				m.waiters[key] = append(q[:i:i], q[i+1:]...)
				m.mu.Unlock()
				return false
			}
		}
		// Lost the race: already handed the key before we saw ctx.Done().
		m.mu.Unlock()
		m.releaseLock(key, id)
		return false
	}
}

// releaseLock hands key to the next FIFO waiter, if any, or frees it.
func (m *Manager) releaseLock(key, id string) {
	m.mu.Lock()
	if m.locked[key] != id {
		m.mu.Unlock()
		return
	}
	q := m.waiters[key]
	if len(q) == 0 {
		delete(m.locked, key)
		delete(m.waiters, key)
		m.mu.Unlock()
		return
	}
	next := q[0]
	m.waiters[key] = q[1:]
	m.locked[key] = next.id
	m.mu.Unlock()
	close(next.ch)
}

func (m *Manager) onProgress(j *Job, event ProgressEvent) {
	m.mu.Lock()
	j.Progress = event
	if event.Result != nil {
		j.Progress.PagesScraped++
	}
	m.mu.Unlock()

	_ = m.store.UpdateVersionProgress(context.Background(), j.VersionID, event.PagesScraped, event.TotalPages)
	m.bus.Emit(Event{Kind: EventJobProgress, JobID: j.ID, Library: j.Library, Version: j.Version, Progress: event})
}

// setStatus updates the in-memory Job and writes the Version row through to
// the store before emitting the status-change event, so a reader polling
// the Version row directly (not just the event bus) always sees the job's
// current status, including non-terminal ones like running/cancelling.
func (m *Manager) setStatus(j *Job, status Status, errMsg string) {
	m.mu.Lock()
	j.Status = status
	j.ErrorMessage = errMsg
	m.mu.Unlock()
	_ = m.store.UpdateVersionStatus(context.Background(), j.VersionID, string(status), errMsg)
	m.emitStatus(j, errMsg)
}

func (m *Manager) finish(j *Job, status Status, errMsg string) {
	m.setStatus(j, status, errMsg)
	m.bus.Emit(Event{Kind: EventLibraryChange})
}

func (m *Manager) emitStatus(j *Job, errMsg string) {
	m.bus.Emit(Event{Kind: EventJobStatusChange, JobID: j.ID, Library: j.Library, Version: j.Version, Status: j.Status, Error: errMsg})
}

func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok
}

func (m *Manager) GetJobs(status Status) []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Job
	for _, j := range m.jobs {
		if status == "" || j.Status == status {
			out = append(out, j)
		}
	}
	return out
}

// CancelJob signals the job's cancellation. A queued-but-not-yet-running
// job is cancelled before it ever acquires the pool slot; a running job
// transitions through cancelling to cancelled.
func (m *Manager) CancelJob(id string) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	cancel, hasCancel := m.cancels[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	if j.Status == StatusRunning {
		m.setStatus(j, StatusCancelling, "")
	}
	if hasCancel {
		cancel()
	}
}

// ClearCompletedJobs removes terminal jobs from memory and returns the count removed.
func (m *Manager) ClearCompletedJobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, j := range m.jobs {
		if j.Status.Terminal() {
			delete(m.jobs, id)
			n++
		}
	}
	return n
}

// WaitForJobCompletion blocks until the job reaches a terminal state,
// using the event stream rather than polling the job table, matching the
// Remote Client's own implementation (§4.9) so local and remote behave
// identically.
func (m *Manager) WaitForJobCompletion(ctx context.Context, id string) error {
	if j, ok := m.GetJob(id); ok && j.Status.Terminal() {
		return terminalError(j)
	}

	events, unsubscribe := m.bus.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return fmt.Errorf("event bus closed before job %s reached a terminal state", id)
			}
			if e.Kind != EventJobStatusChange || e.JobID != id {
				continue
			}
			if j, ok := m.GetJob(id); ok && j.Status.Terminal() {
				return terminalError(j)
			}
		}
	}
}

func terminalError(j *Job) error {
	if j.Status == StatusFailed {
		return fmt.Errorf("%s", j.ErrorMessage)
	}
	return nil
}

// RecoverOnStart scans Versions left running/queued from a prior process,
// per §7's recovery policy: queued versions are always requeued; running
// versions are requeued when enableRequeue is set and otherwise marked
// failed with "interrupted".
func (m *Manager) RecoverOnStart(ctx context.Context, running, queued []VersionRef, enableRequeue bool) error {
	for _, v := range append(append([]VersionRef(nil), running...), queued...) {
		if !enableRequeue && contains(running, v) {
			if err := m.store.UpdateVersionStatus(ctx, v.ID, string(StatusFailed), "interrupted"); err != nil {
				return err
			}
			continue
		}
		optionsJSON, err := m.store.GetScraperOptions(ctx, v.ID)
		if err != nil {
			return err
		}
		opts, err := DecodeScraperOptions(optionsJSON)
		if err != nil {
			return err
		}
		j := &Job{ID: m.newJobID(), Library: v.Library, Version: v.Version, VersionID: v.ID, Status: StatusQueued, Options: opts}
		m.schedule(j)
	}
	return nil
}

// VersionRef identifies a Version row for recovery scanning.
type VersionRef struct {
	ID      int64
	Library string
	Version string
}

func contains(refs []VersionRef, v VersionRef) bool {
	for _, r := range refs {
		if r.ID == v.ID {
			return true
		}
	}
	return false
}
