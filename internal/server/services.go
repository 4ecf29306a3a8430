package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
)

// GRPCService serves a gRPC server on a TCP address.
type GRPCService struct {
	addr string
	srv  *grpc.Server

	mu  sync.Mutex
	lis net.Listener
}

// NewGRPCService creates a GRPCService listening on addr when started.
func NewGRPCService(addr string, srv *grpc.Server) *GRPCService {
	return &GRPCService{addr: addr, srv: srv}
}

// Start listens on the configured address and serves until Stop.
func (g *GRPCService) Start() error {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.addr, err)
	}
	g.mu.Lock()
	g.lis = lis
	g.mu.Unlock()
	if err := g.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serving grpc: %w", err)
	}
	return nil
}

// Addr returns the bound listener address, or nil before Start has listened.
func (g *GRPCService) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lis == nil {
		return nil
	}
	return g.lis.Addr()
}

// Stop drains in-flight calls and stops the server.
func (g *GRPCService) Stop() {
	g.srv.GracefulStop()
}

// LoopService runs a context-driven loop such as the session sweeper.
type LoopService struct {
	run    func(ctx context.Context) error
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLoopService wraps run. Start calls it with a context that Stop cancels.
func NewLoopService(run func(ctx context.Context) error) *LoopService {
	ctx, cancel := context.WithCancel(context.Background())
	return &LoopService{run: run, ctx: ctx, cancel: cancel}
}

// Start blocks in run. Cancellation by Stop is not an error.
func (s *LoopService) Start() error {
	if err := s.run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Stop cancels the loop's context.
func (s *LoopService) Stop() {
	s.cancel()
}
