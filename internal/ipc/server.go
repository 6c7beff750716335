package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"murmur/internal/api"
	"murmur/internal/daemon"
	"murmur/internal/logging"
	"murmur/internal/stage"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Murmur", svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("ipc accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Workers = status.Workers
	resp.Stats = api.FromStats(status.Stats)
	resp.Slots = api.FromSlots(status.Slots)
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.Dependencies = make([]DependencyStatus, 0, len(status.Dependencies))
	for _, dep := range status.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	if len(req.URLs) == 0 {
		return errors.New("enqueue requires at least one url")
	}
	jobs, err := s.daemon.Enqueue(s.ctx, req.URLs)
	if err != nil {
		return err
	}
	resp.Items = api.FromJobs(jobs)
	s.log().Info("jobs enqueued", logging.Int("count", len(jobs)))
	return nil
}

func (s *service) Jobs(req JobListRequest, resp *JobListResponse) error {
	statuses := make([]stage.Status, 0, len(req.Statuses))
	for _, value := range req.Statuses {
		parsed, err := stage.ParseStatus(value)
		if err != nil {
			return err
		}
		statuses = append(statuses, parsed)
	}
	jobs, err := s.daemon.ListJobs(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Items = api.FromJobs(jobs)
	return nil
}

func (s *service) Describe(req JobDescribeRequest, resp *JobDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid job id %d", req.ID)
	}
	job, err := s.daemon.GetJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Item = api.FromJob(job)
	return nil
}

func (s *service) Search(req SearchRequest, resp *SearchResponse) error {
	hits, err := s.daemon.Search(s.ctx, req.Query, req.Limit)
	if err != nil {
		return err
	}
	resp.Hits = api.FromSearchHits(hits)
	return nil
}

func (s *service) Pause(req ControlRequest, resp *ControlResponse) error {
	result, err := s.daemon.Pause(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Outcome = string(result.Outcome)
	resp.Reason = result.Reason
	s.log().Info("pause requested",
		logging.Int64("job_id", req.ID),
		logging.String("outcome", resp.Outcome))
	return nil
}

func (s *service) Resume(req ControlRequest, resp *ControlResponse) error {
	result, err := s.daemon.Resume(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Outcome = string(result.Outcome)
	resp.Reason = result.Reason
	s.log().Info("resume requested",
		logging.Int64("job_id", req.ID),
		logging.String("outcome", resp.Outcome))
	return nil
}

func (s *service) Kill(req ControlRequest, resp *ControlResponse) error {
	result, err := s.daemon.Kill(s.ctx, req.ID, req.DeleteArtifacts)
	if err != nil {
		return err
	}
	resp.Outcome = string(result.Outcome)
	resp.Reason = result.Reason
	s.log().Info("kill requested",
		logging.Int64("job_id", req.ID),
		logging.Bool("delete_artifacts", req.DeleteArtifacts),
		logging.String("outcome", resp.Outcome))
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	jobs, err := s.daemon.RetryFailed(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Items = api.FromJobs(jobs)
	s.log().Info("failed jobs retried", logging.Int("count", len(jobs)))
	return nil
}

func (s *service) ClearDone(_ ClearDoneRequest, resp *ClearDoneResponse) error {
	removed, err := s.daemon.ClearDone(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) ClearFailed(_ ClearFailedRequest, resp *ClearFailedResponse) error {
	removed, err := s.daemon.ClearFailed(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) Health(_ HealthRequest, resp *HealthResponse) error {
	health := s.daemon.LedgerHealth(s.ctx)
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.SchemaVersion = health.SchemaVersion
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalJobs = health.TotalJobs
	resp.IndexedMedia = health.IndexedMedia
	resp.Error = health.Error
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Info("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}
