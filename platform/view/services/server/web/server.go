/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package web

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/server/web/middleware"
	"github.com/pkg/errors"
)

type Options struct {
	ListenAddress string
	Logger        logger
}

// Server serves the registered handlers over HTTP
type Server struct {
	options Options
	router  *mux.Router

	mutex      sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	done       chan struct{}
}

func NewServer(o Options) *Server {
	return &Server{options: o, router: mux.NewRouter()}
}

// RegisterHandler routes every request whose path starts with prefix to handler
func (s *Server) RegisterHandler(prefix string, handler http.Handler) {
	s.router.PathPrefix(prefix).Handler(handler)
}

func (s *Server) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener != nil {
		return errors.New("server already started")
	}
	listener, err := net.Listen("tcp", s.options.ListenAddress)
	if err != nil {
		return errors.Wrapf(err, "failed listening on [%s]", s.options.ListenAddress)
	}
	s.listener = listener
	s.done = make(chan struct{})
	s.httpServer = &http.Server{
		Handler:           middleware.NewChain(middleware.WithRequestLogging(s.options.Logger)).Handler(s.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.options.Logger.Errorf("web server stopped: %s", err)
		}
	}(s.httpServer, s.done)
	s.options.Logger.Infof("web server listening on [%s]", listener.Addr())
	return nil
}

func (s *Server) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	<-s.done
	s.listener = nil
	return err
}

// Addr returns the address the server listens on, empty if not started
func (s *Server) Addr() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
