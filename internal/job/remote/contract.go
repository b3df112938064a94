// Package remote implements the Manager's external contract (§4.9) over a
// small net/rpc abstraction: a Client that exposes the same enqueue/get/
// cancel surface as a local *job.Manager, and an EventProxy that polls the
// server for new events and re-emits them on a local *job.EventBus so a
// caller's WaitForJobCompletion works identically whether the Manager is
// in-process or across the wire.
package remote

import "docnerd/internal/job"

// ServiceName is the net/rpc service name Server registers under and Client
// dials against (method calls are "ServiceName.Method").
const ServiceName = "JobManager"

type EnqueueScrapeArgs struct {
	Options job.ScraperOptions
}

type EnqueueScrapeReply struct {
	JobID string
}

type EnqueueRefreshArgs struct {
	VersionID int64
	Options   job.ScraperOptions
}

type EnqueueRefreshReply struct {
	JobID string
}

type GetJobArgs struct {
	ID string
}

type GetJobReply struct {
	Job   job.Job
	Found bool
}

type GetJobsArgs struct {
	Status job.Status
}

type GetJobsReply struct {
	Jobs []job.Job
}

type CancelJobArgs struct {
	ID string
}

type CancelJobReply struct{}

type ClearCompletedArgs struct{}

type ClearCompletedReply struct {
	Count int
}

// StoredEvent pairs a job.Event with a monotonically increasing sequence
// number, so PollEvents can resume from any previously seen cursor without
// the server having to remember per-client state.
type StoredEvent struct {
	Seq   uint64
	Event job.Event
}

type PollEventsArgs struct {
	// Since is the highest Seq the caller has already consumed; the
	// server returns events with Seq > Since.
	Since uint64
}

type PollEventsReply struct {
	Events []StoredEvent
	Cursor uint64
}
