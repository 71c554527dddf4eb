package iso8583

import (
	"context"
	"fmt"
	"time"

	"github.com/moov-io/iso8583"
	connection "github.com/moov-io/iso8583-connection"
	"github.com/moov-io/iso8583-connection/server"
	"golang.org/x/exp/slog"
)

// Server accepts ISO 8583 connections and answers requests through an Adapter.
type Server struct {
	Addr string

	adapter *Adapter
	logger  *slog.Logger
	server  *server.Server
	timeout time.Duration
}

func NewServer(logger *slog.Logger, addr string, adapter *Adapter) *Server {
	return &Server{
		Addr:    addr,
		adapter: adapter,
		logger:  logger.With(slog.String("component", "iso8583")),
		timeout: 10 * time.Second,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting ISO 8583 server...")

	srv := server.New(Spec, ReadMessageLength, WriteMessageLength, connection.InboundMessageHandler(s.handleMessage))
	if err := srv.Start(s.Addr); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	s.Addr = srv.Addr
	s.server = srv
	s.logger.Info("ISO 8583 server started", slog.String("addr", s.Addr))
	return nil
}

func (s *Server) handleMessage(c *connection.Connection, message *iso8583.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	response := s.adapter.Handle(ctx, message)
	if err := c.Reply(response); err != nil {
		s.logger.Error("replying to message", "err", err)
	}
}

func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("stopping ISO 8583 server...")
	s.server.Close()
	return nil
}
