package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"loom/internal/api"
	"loom/internal/daemon"
	"loom/internal/logging"
	"loom/internal/logs"
	"loom/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. onStop is
// invoked after a Stop request has been acknowledged; main wires it to the
// root context cancellation.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, onStop func()) (*Server, error) {
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
	srv := &service{daemon: d, logger: logger, ctx: ctx, onStop: onStop}
	if err := rpcServer.RegisterName("Loom", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
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
				s.logger.Warn("accept failed", logging.Error(err))
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
	onStop func()

	stopOnce sync.Once
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) GenerateAudio(req GenerateAudioRequest, resp *GenerateResponse) error {
	id, err := s.daemon.QueueAudio(s.ctx, req.Config)
	if err != nil {
		return err
	}
	s.fillGenerateResponse(id, resp)
	s.log().Info("audio generation queued", logging.String(logging.FieldTaskID, id))
	return nil
}

func (s *service) GenerateImage(req GenerateImageRequest, resp *GenerateResponse) error {
	id, err := s.daemon.QueueImage(s.ctx, req.Config, req.InitImagePath)
	if err != nil {
		return err
	}
	s.fillGenerateResponse(id, resp)
	s.log().Info("image generation queued", logging.String(logging.FieldTaskID, id))
	return nil
}

func (s *service) GenerateVideo(req GenerateVideoRequest, resp *GenerateResponse) error {
	id, err := s.daemon.QueueVideo(s.ctx, req.Config, req.InitImagePath)
	if err != nil {
		return err
	}
	s.fillGenerateResponse(id, resp)
	s.log().Info("video generation queued", logging.String(logging.FieldTaskID, id))
	return nil
}

func (s *service) fillGenerateResponse(id string, resp *GenerateResponse) {
	resp.TaskID = id
	if task, ok := s.daemon.Task(id); ok {
		resp.Task = api.FromTask(task)
	}
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	var filter map[queue.Status]bool
	if len(req.Statuses) > 0 {
		filter = make(map[queue.Status]bool, len(req.Statuses))
		for _, name := range req.Statuses {
			status, err := queue.ParseStatus(name)
			if err != nil {
				return err
			}
			filter[status] = true
		}
	}
	for _, task := range s.daemon.Tasks() {
		if filter != nil && !filter[task.Status] {
			continue
		}
		resp.Tasks = append(resp.Tasks, api.FromTask(task))
	}
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("queue describe requires a task id")
	}
	task, ok := s.daemon.Task(id)
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	resp.Task = api.FromTask(task)
	return nil
}

func (s *service) QueueCancel(req QueueCancelRequest, resp *QueueCancelResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("queue cancel requires a task id")
	}
	if _, ok := s.daemon.Task(id); !ok {
		return fmt.Errorf("task %s not found", id)
	}
	resp.Cancelled = s.daemon.CancelTask(id)
	if resp.Cancelled {
		s.log().Info("task cancelled via IPC", logging.String(logging.FieldTaskID, id))
	}
	return nil
}

func (s *service) QueueClearCompleted(_ QueueClearCompletedRequest, resp *QueueClearCompletedResponse) error {
	resp.Removed = s.daemon.ClearCompleted()
	s.log().Info("completed tasks cleared", logging.Int("removed_count", resp.Removed))
	return nil
}

func (s *service) HistoryList(req HistoryListRequest, resp *HistoryListResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	tasks, err := s.daemon.HistoryList(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Tasks = api.FromTasks(tasks)
	return nil
}

func (s *service) EnhancePrompt(req EnhancePromptRequest, resp *EnhancePromptResponse) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return errors.New("enhance requires a prompt")
	}
	enhanced, err := s.daemon.EnhancePrompt(s.ctx, req.Prompt, req.MediaKind)
	if err != nil {
		return err
	}
	resp.Enhanced = enhanced
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if req.Follow && wait <= 0 {
		wait = time.Second
	}
	ctx, cancel := context.WithTimeout(s.ctx, wait+500*time.Millisecond)
	defer cancel()

	result, err := logs.Tail(ctx, s.daemon.LogPath(), logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Info("daemon stop requested via IPC")
	resp.Stopped = true
	if s.onStop != nil {
		// Deferred so the response reaches the client before shutdown
		// tears the socket down.
		s.stopOnce.Do(func() { go s.onStop() })
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
