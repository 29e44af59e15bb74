// Package server accepts TCP connections and runs each one against a
// shared kv.Engine from a bounded pool of worker goroutines.
package server

import (
	"context"
	"net"
	"sync"

	"github.com/4lexvav/logkv/internal/logging"
	"github.com/4lexvav/logkv/pkg/kv"
)

const DefaultWorkers = 8

// Server dispatches client requests to a shared storage engine. The
// engine is selected by the binary at startup; the server only knows the
// kv.Engine interface.
type Server struct {
	engine  kv.Engine
	workers int
}

func New(engine kv.Engine, workers int) *Server {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Server{engine: engine, workers: workers}
}

// Listen binds addr and serves until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled. Accepted
// connections are handed to a fixed pool of workers; each worker drives
// one connection through its request-response cycles at a time, so a
// slow connection never blocks the others beyond pool capacity.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// When ctx is cancelled, close the listener to break the accept loop.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logging.Info("server listening on %s with %d workers", ln.Addr(), s.workers)

	conns := make(chan net.Conn)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for conn := range conns {
				s.handleConn(conn)
			}
		}()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				close(conns)
				wg.Wait()
				return nil
			default:
				logging.Warn("accept failed: %v", err)
				continue
			}
		}

		select {
		case conns <- conn:
		case <-ctx.Done():
			conn.Close()
			close(conns)
			wg.Wait()
			return nil
		}
	}
}
