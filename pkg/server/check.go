package server

import (
	"fmt"

	handlers "github.com/NeuralTrust/TrustRail/pkg/handlers/http"
	"github.com/NeuralTrust/TrustRail/pkg/middleware"

	"github.com/NeuralTrust/TrustRail/pkg/config"
	"github.com/sirupsen/logrus"
)

type (
	CheckServerDI struct {
		MiddlewareTransport middleware.Transport
		HandlerTransport    handlers.HandlerTransport
		Config              *config.Config
		Logger              *logrus.Logger
	}
	CheckServer struct {
		*BaseServer
		middlewareTransport middleware.Transport
		handlerTransport    handlers.HandlerTransport
	}
)

func NewCheckServer(di CheckServerDI) *CheckServer {
	return &CheckServer{
		BaseServer:          NewBaseServer(di.Config, di.Logger),
		middlewareTransport: di.MiddlewareTransport,
		handlerTransport:    di.HandlerTransport,
	}
}

func (s *CheckServer) Run() error {
	s.setupRoutes()
	s.setupHealthCheck()
	s.setupMetricsEndpoint()

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	s.Logger.WithField("addr", addr).Info("Starting check server")
	return s.Router.Listen(addr)
}

func (s *CheckServer) setupRoutes() {
	s.Router.Use(s.middlewareTransport.PanicRecoverMiddleware.Middleware())

	v1 := s.Router.Group("/api/v1")
	v1.Get("/version", s.handlerTransport.VersionHandler.Handle)

	check := v1.Group("/check",
		s.middlewareTransport.FingerPrintMiddleware.Middleware(),
		s.middlewareTransport.AuthMiddleware.Middleware(),
	)
	{
		check.Post("/input", s.handlerTransport.CheckInputHandler.Handle)
		check.Post("/output", s.handlerTransport.CheckOutputHandler.Handle)
	}
}

func (s *CheckServer) Shutdown() error {
	if err := s.shutdownMetrics(); err != nil {
		s.Logger.WithError(err).Warn("metrics server shutdown failed")
	}
	return s.Router.Shutdown()
}
