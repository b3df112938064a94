package remote

import (
	"context"
	"net/rpc"
	"time"

	"github.com/cenkalti/backoff/v4"

	"docnerd/internal/logging"
)

// pollInterval is how often a healthy EventProxy asks the server for new
// events; events are also what drive WaitForJobCompletion, so this bounds
// how long a caller waits after a job actually finishes remotely.
const pollInterval = 500 * time.Millisecond

// EventProxy polls a Server's PollEvents over an *rpc.Client and re-emits
// each event on a Client's local EventBus, so Client.WaitForJobCompletion
// can subscribe the same way job.Manager.WaitForJobCompletion does. On a
// connection error it reconnects with exponential backoff rather than
// failing the caller outright, matching the fetcher's own retry shape
// (internal/fetch/http.go) applied to a long-lived poll loop instead of a
// single request.
type EventProxy struct {
	dial   func() (*rpc.Client, error)
	client *Client

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewEventProxy takes a dial func so the proxy can re-establish the RPC
// connection itself after a failure, rather than being handed one fixed
// *rpc.Client it can never recover.
func NewEventProxy(dial func() (*rpc.Client, error), client *Client) *EventProxy {
	return &EventProxy{
		dial:   dial,
		client: client,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins polling in the background. Start is non-blocking; call Stop
// to shut it down.
func (p *EventProxy) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *EventProxy) run(ctx context.Context) {
	defer close(p.doneCh)

	var since uint64
	rpcClient := p.client.rpc

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		var reply PollEventsReply
		err := rpcClient.Call(ServiceName+".PollEvents", PollEventsArgs{Since: since}, &reply)
		if err != nil {
			logging.Get(logging.CategoryRemote).Warn("event proxy: poll failed, reconnecting: %v", err)
			rpcClient, err = p.reconnect(ctx)
			if err != nil {
				return // context cancelled during reconnect
			}
			p.client.rpc = rpcClient
			continue
		}

		for _, e := range reply.Events {
			p.client.bus.Emit(e.Event)
		}
		since = reply.Cursor

		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-time.After(pollInterval):
		}
	}
}

// reconnect redials with exponential backoff, uncapped in attempt count
// (a job server restart can outlast any fixed retry budget) but capped in
// per-attempt wait so it still notices ctx cancellation promptly.
func (p *EventProxy) reconnect(ctx context.Context) (*rpc.Client, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 500 * time.Millisecond
	exp.MaxInterval = 30 * time.Second
	exp.MaxElapsedTime = 0 // retry indefinitely; ctx is the only way out

	var client *rpc.Client
	op := func() error {
		c, err := p.dial()
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(exp, ctx)); err != nil {
		return nil, err
	}
	return client, nil
}

// Stop halts polling and blocks until the background goroutine exits.
func (p *EventProxy) Stop() {
	close(p.stopCh)
	<-p.doneCh
}
