package remote

import (
	"context"
	"fmt"
	"net/rpc"

	"docnerd/internal/job"
)

// Client implements the same enqueue/get/cancel surface as *job.Manager,
// dispatching each call over net/rpc to a Server. WaitForJobCompletion
// resolves through the client's own EventBus (fed by an EventProxy) rather
// than polling the RPC connection directly, so callers can't tell whether
// they're holding a *job.Manager or a remote.Client.
type Client struct {
	rpc *rpc.Client
	bus *job.EventBus
}

// NewClient wraps an already-dialed *rpc.Client, expected to have been
// constructed with net/rpc/jsonrpc (jsonrpc.NewClient), matching Server's
// codec. The caller is responsible for starting an EventProxy against the
// same connection if WaitForJobCompletion is needed.
func NewClient(rpcClient *rpc.Client) *Client {
	return &Client{rpc: rpcClient, bus: job.NewEventBus()}
}

// Events exposes the client's local event bus, fed by an EventProxy.
func (c *Client) Events() *job.EventBus { return c.bus }

func (c *Client) call(method string, args, reply any) error {
	return c.rpc.Call(ServiceName+"."+method, args, reply)
}

func (c *Client) EnqueueScrapeJob(ctx context.Context, opts job.ScraperOptions) (string, error) {
	var reply EnqueueScrapeReply
	if err := c.call("EnqueueScrapeJob", EnqueueScrapeArgs{Options: opts}, &reply); err != nil {
		return "", fmt.Errorf("remote EnqueueScrapeJob: %w", err)
	}
	return reply.JobID, nil
}

func (c *Client) EnqueueRefreshJob(ctx context.Context, versionID int64, opts job.ScraperOptions) (string, error) {
	var reply EnqueueRefreshReply
	if err := c.call("EnqueueRefreshJob", EnqueueRefreshArgs{VersionID: versionID, Options: opts}, &reply); err != nil {
		return "", fmt.Errorf("remote EnqueueRefreshJob: %w", err)
	}
	return reply.JobID, nil
}

func (c *Client) GetJob(id string) (*job.Job, bool) {
	var reply GetJobReply
	if err := c.call("GetJob", GetJobArgs{ID: id}, &reply); err != nil {
		return nil, false
	}
	if !reply.Found {
		return nil, false
	}
	j := reply.Job
	return &j, true
}

func (c *Client) GetJobs(status job.Status) []*job.Job {
	var reply GetJobsReply
	if err := c.call("GetJobs", GetJobsArgs{Status: status}, &reply); err != nil {
		return nil
	}
	out := make([]*job.Job, len(reply.Jobs))
	for i := range reply.Jobs {
		out[i] = &reply.Jobs[i]
	}
	return out
}

func (c *Client) CancelJob(id string) {
	var reply CancelJobReply
	_ = c.call("CancelJob", CancelJobArgs{ID: id}, &reply)
}

func (c *Client) ClearCompletedJobs() int {
	var reply ClearCompletedReply
	if err := c.call("ClearCompletedJobs", ClearCompletedArgs{}, &reply); err != nil {
		return 0
	}
	return reply.Count
}

// WaitForJobCompletion blocks until the job reaches a terminal state,
// observed through the client's local event bus (see EventProxy), falling
// back to one last GetJob check in case the terminal event arrived before
// this call subscribed.
func (c *Client) WaitForJobCompletion(ctx context.Context, id string) error {
	if j, ok := c.GetJob(id); ok && j.Status.Terminal() {
		return terminalClientError(j)
	}

	events, unsubscribe := c.bus.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return fmt.Errorf("event stream closed before job %s reached a terminal state", id)
			}
			if e.Kind != job.EventJobStatusChange || e.JobID != id {
				continue
			}
			if j, ok := c.GetJob(id); ok && j.Status.Terminal() {
				return terminalClientError(j)
			}
		}
	}
}

func terminalClientError(j *job.Job) error {
	if j.Status == job.StatusFailed {
		return fmt.Errorf("%s", j.ErrorMessage)
	}
	return nil
}

// Close closes the underlying RPC connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}
