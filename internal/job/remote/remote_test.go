package remote

import (
	"context"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docnerd/internal/job"
)

type instantStrategy struct {
	events []job.ProgressEvent
}

func (s *instantStrategy) Scrape(ctx context.Context, opts job.ScraperOptions, report func(job.ProgressEvent), cancelled func() bool) error {
	for _, e := range s.events {
		report(e)
	}
	return nil
}

type fakeStore struct {
	versions    map[int64]string
	optionsJSON map[int64]string
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{versions: map[int64]string{}, optionsJSON: map[int64]string{}}
}

func (f *fakeStore) RemoveAllDocuments(ctx context.Context, versionID int64) error { return nil }
func (f *fakeStore) DeletePage(ctx context.Context, pageID int64) error            { return nil }
func (f *fakeStore) AddScrapeResult(ctx context.Context, versionID int64, depth int, result job.ScrapeResult) (int64, error) {
	return 1, nil
}
func (f *fakeStore) EnsureVersion(ctx context.Context, library, version, sourceURL, optionsJSON string) (int64, error) {
	f.nextID++
	f.versions[f.nextID] = "queued"
	return f.nextID, nil
}
func (f *fakeStore) UpdateVersionStatus(ctx context.Context, versionID int64, status, errorMessage string) error {
	f.versions[versionID] = status
	return nil
}
func (f *fakeStore) UpdateVersionProgress(ctx context.Context, versionID int64, pagesScraped, totalPages int) error {
	return nil
}
func (f *fakeStore) StoreScraperOptions(ctx context.Context, versionID int64, optionsJSON string) error {
	f.optionsJSON[versionID] = optionsJSON
	return nil
}
func (f *fakeStore) GetScraperOptions(ctx context.Context, versionID int64) (string, error) {
	return f.optionsJSON[versionID], nil
}

// dialPipe connects an in-memory rpc client/server pair over net.Pipe,
// using the JSON-RPC codec (net/rpc/jsonrpc) rather than the gob default,
// matching §6's payload serialization decision (see DESIGN.md).
func dialPipe(t *testing.T, manager *job.Manager) *rpc.Client {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	srv := rpc.NewServer()
	s, err := Register(srv, manager)
	require.NoError(t, err)
	go srv.ServeCodec(jsonrpc.NewServerCodec(serverConn))

	t.Cleanup(func() {
		clientConn.Close()
		s.Close()
	})
	return jsonrpc.NewClient(clientConn)
}

func TestClientEnqueueScrapeJobRoundTrips(t *testing.T) {
	manager := job.NewManager(newFakeStore(), &instantStrategy{events: []job.ProgressEvent{{Result: &job.ScrapeResult{URL: "https://x.test/"}}}}, 2)
	client := NewClient(dialPipe(t, manager))

	id, err := client.EnqueueScrapeJob(context.Background(), job.ScraperOptions{URL: "https://x.test/", Library: "foo", Version: "1.0"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := client.GetJob(id); ok && j.Status.Terminal() {
			assert.Equal(t, job.StatusCompleted, j.Status)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
}

func TestClientGetJobsFiltersByStatus(t *testing.T) {
	manager := job.NewManager(newFakeStore(), &instantStrategy{}, 2)
	client := NewClient(dialPipe(t, manager))

	_, err := client.EnqueueScrapeJob(context.Background(), job.ScraperOptions{URL: "https://x.test/", Library: "foo", Version: "1.0"})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(client.GetJobs(job.StatusCompleted)) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Len(t, client.GetJobs(job.StatusCompleted), 1)
	assert.Empty(t, client.GetJobs(job.StatusFailed))
}

func TestEventProxyForwardsEventsToClientBus(t *testing.T) {
	manager := job.NewManager(newFakeStore(), &instantStrategy{events: []job.ProgressEvent{{Result: &job.ScrapeResult{URL: "https://x.test/"}}}}, 2)
	client := NewClient(dialPipe(t, manager))

	// A dial func is only exercised on reconnect; the happy path below
	// never disconnects, so it's never actually called.
	proxy := NewEventProxy(func() (*rpc.Client, error) { return dialPipe(t, manager), nil }, client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proxy.Start(ctx)
	defer proxy.Stop()

	id, err := client.EnqueueScrapeJob(context.Background(), job.ScraperOptions{URL: "https://x.test/", Library: "foo", Version: "1.0"})
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer waitCancel()
	err = client.WaitForJobCompletion(waitCtx, id)
	assert.NoError(t, err)
}
