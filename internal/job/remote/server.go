package remote

import (
	"context"
	"net/rpc"
	"sync"

	"docnerd/internal/job"
)

// ringCapacity bounds how many past events the Server retains for a
// reconnecting EventProxy to catch up on; older events are dropped, same
// trade-off the EventBus itself makes for a slow subscriber.
const ringCapacity = 1024

// Server exposes a *job.Manager over net/rpc. Register it on an
// *rpc.Server with Register, then serve each connection with
// net/rpc/jsonrpc's codec (srv.ServeCodec(jsonrpc.NewServerCodec(conn)))
// rather than the gob default, so payloads round-trip through
// encoding/json the same way the rest of the external interface does.
type Server struct {
	manager *job.Manager

	unsubscribe func()

	mu      sync.Mutex
	ring    []StoredEvent
	nextSeq uint64
}

// NewServer subscribes to manager's EventBus immediately so no event is
// missed between construction and a client's first PollEvents call. Call
// Close to release the subscription once the server is no longer serving.
func NewServer(manager *job.Manager) *Server {
	s := &Server{manager: manager}
	events, unsubscribe := manager.Events().Subscribe()
	s.unsubscribe = unsubscribe
	go s.drain(events)
	return s
}

// Close releases the server's EventBus subscription, letting its drain
// goroutine exit.
func (s *Server) Close() {
	s.unsubscribe()
}

func (s *Server) drain(events <-chan job.Event) {
	for e := range events {
		s.mu.Lock()
		s.nextSeq++
		s.ring = append(s.ring, StoredEvent{Seq: s.nextSeq, Event: e})
		if len(s.ring) > ringCapacity {
			s.ring = s.ring[len(s.ring)-ringCapacity:]
		}
		s.mu.Unlock()
	}
}

func (s *Server) EnqueueScrapeJob(args EnqueueScrapeArgs, reply *EnqueueScrapeReply) error {
	id, err := s.manager.EnqueueScrapeJob(context.Background(), args.Options)
	if err != nil {
		return err
	}
	reply.JobID = id
	return nil
}

func (s *Server) EnqueueRefreshJob(args EnqueueRefreshArgs, reply *EnqueueRefreshReply) error {
	id, err := s.manager.EnqueueRefreshJob(context.Background(), args.VersionID, args.Options)
	if err != nil {
		return err
	}
	reply.JobID = id
	return nil
}

func (s *Server) GetJob(args GetJobArgs, reply *GetJobReply) error {
	j, ok := s.manager.GetJob(args.ID)
	reply.Found = ok
	if ok {
		reply.Job = *j
	}
	return nil
}

func (s *Server) GetJobs(args GetJobsArgs, reply *GetJobsReply) error {
	jobs := s.manager.GetJobs(args.Status)
	reply.Jobs = make([]job.Job, len(jobs))
	for i, j := range jobs {
		reply.Jobs[i] = *j
	}
	return nil
}

func (s *Server) CancelJob(args CancelJobArgs, reply *CancelJobReply) error {
	s.manager.CancelJob(args.ID)
	return nil
}

func (s *Server) ClearCompletedJobs(args ClearCompletedArgs, reply *ClearCompletedReply) error {
	reply.Count = s.manager.ClearCompletedJobs()
	return nil
}

func (s *Server) PollEvents(args PollEventsArgs, reply *PollEventsReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.ring {
		if e.Seq > args.Since {
			reply.Events = append(reply.Events, e)
		}
	}
	reply.Cursor = s.nextSeq
	return nil
}

// Register registers s on srv under ServiceName.
func Register(srv *rpc.Server, manager *job.Manager) (*Server, error) {
	s := NewServer(manager)
	if err := srv.RegisterName(ServiceName, s); err != nil {
		return nil, err
	}
	return s, nil
}
