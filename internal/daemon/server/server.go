// Package server implements the gRPC control service for the daemon.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/watchfire-io/nowplaying/internal/daemon/reconcile"
	"github.com/watchfire-io/nowplaying/internal/models"
)

// Controller is the part of the engine the control service drives.
type Controller interface {
	Snapshot() *models.AppState
	SelectZone(id string) error
	SelectAuto()
	Diagnostics() []string
}

// WorkerStatus reports on the supervised worker.
type WorkerStatus interface {
	IsRunning() bool
	RestartCount() uint
	PID() int
}

// Options configures a Server.
type Options struct {
	Host       string
	Port       int // 0 picks a free port
	Controller Controller
	Worker     WorkerStatus
	Logger     *zap.Logger

	// Shutdown is called when a client asks the daemon to exit. The default
	// sends SIGINT to the current process.
	Shutdown func()
}

// Server is the daemon's gRPC server.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	port       int
	logger     *zap.Logger
}

// New creates a server listening on opts.Host:opts.Port.
func New(opts Options) (*Server, error) {
	host := opts.Host
	if host == "" {
		host = "localhost"
	}
	addr := net.JoinHostPort(host, fmt.Sprint(opts.Port))
	listener, err := (&net.ListenConfig{}).Listen(context.TODO(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return NewWithListener(listener, opts), nil
}

// NewWithListener creates a server on an existing listener.
func NewWithListener(listener net.Listener, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.Named("control")

	port := 0
	if tcp, ok := listener.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(logInterceptor(logger)))
	RegisterControlServer(grpcServer, &controlService{
		controller: opts.Controller,
		worker:     opts.Worker,
		shutdown:   opts.Shutdown,
	})

	return &Server{
		grpcServer: grpcServer,
		listener:   listener,
		port:       port,
		logger:     logger,
	}
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Serve starts serving requests. This blocks until Stop is called.
func (s *Server) Serve() error {
	s.logger.Info("control service listening", zap.String("addr", s.listener.Addr().String()))
	if err := s.grpcServer.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

func logInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("rpc",
			zap.String("method", info.FullMethod),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return resp, err
	}
}

type controlService struct {
	controller Controller
	worker     WorkerStatus
	shutdown   func()
}

func (s *controlService) GetState(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	view := models.NewStatusView(s.controller.Snapshot())
	if s.worker != nil {
		view.WorkerRunning = s.worker.IsRunning()
		view.WorkerRestarts = s.worker.RestartCount()
		view.WorkerPID = s.worker.PID()
	}
	view.Diagnostics = s.controller.Diagnostics()

	out, err := ViewToStruct(view)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode state: %v", err)
	}
	return out, nil
}

func (s *controlService) SelectZone(_ context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	id := req.GetValue()
	if id == "" {
		s.controller.SelectAuto()
		return &emptypb.Empty{}, nil
	}
	if err := s.controller.SelectZone(id); err != nil {
		if errors.Is(err, reconcile.ErrUnknownZone) {
			return nil, status.Errorf(codes.NotFound, "unknown zone %q", id)
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &emptypb.Empty{}, nil
}

func (s *controlService) Shutdown(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	shutdown := s.shutdown
	if shutdown == nil {
		shutdown = signalSelf
	}
	go func() {
		// Let the response reach the client first.
		time.Sleep(100 * time.Millisecond)
		shutdown()
	}()
	return &emptypb.Empty{}, nil
}

func signalSelf() {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return
	}
	_ = p.Signal(syscall.SIGINT)
}

// ViewToStruct converts a StatusView into its JSON-shaped protobuf struct.
func ViewToStruct(v models.StatusView) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// StructToView is the inverse of ViewToStruct.
func StructToView(s *structpb.Struct) (models.StatusView, error) {
	var v models.StatusView
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("failed to decode state: %w", err)
	}
	return v, nil
}
