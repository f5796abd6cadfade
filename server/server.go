package server

import (
	"context"
	"evsim/internal"
	"evsim/internal/config"
	"evsim/models"
	"evsim/simulator"
	"evsim/utility"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

const readHeaderTimeout = 10 * time.Second

// ChargePoint is the part of the simulator the control API drives.
type ChargePoint interface {
	IsOnline() bool
	IsRegistered() bool
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	StartTransaction(ctx context.Context, connectorId int, idTag string) (*simulator.FlowResult, error)
	StopTransaction(ctx context.Context, transactionId int, idTag string) (*simulator.FlowResult, error)
	PauseTransaction(transactionId int) error
	ResumeTransaction(transactionId int) error
	Status() *models.ChargePoint
}

// Server is the operator control plane of the simulator.
type Server struct {
	conf       *config.Config
	cp         ChargePoint
	logger     internal.LogHandler
	httpServer *http.Server
}

func NewServer(conf *config.Config, cp ChargePoint, logger internal.LogHandler) *Server {
	server := Server{
		conf:   conf,
		cp:     cp,
		logger: logger,
	}
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return &server
}

func (s *Server) Register(router *httprouter.Router) {
	router.GET("/status", s.handleStatus)
	router.POST("/connect", s.handleConnect)
	router.POST("/disconnect", s.online(s.handleDisconnect))
	router.POST("/start-transaction", s.online(s.registered(s.handleStartTransaction)))
	router.POST("/pause-transaction/:transactionId", s.transactionId(s.handlePauseTransaction))
	router.POST("/resume-transaction/:transactionId", s.transactionId(s.handleResumeTransaction))
	router.POST("/stop-transaction/:transactionId", s.transactionId(s.handleStopTransaction))
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	if s.conf == nil {
		return utility.Err("configuration not loaded")
	}
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	s.logger.Debug(fmt.Sprintf("starting api server on %s", serverAddress))
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
