package server

import (
	"context"
	"errors"
	"evsim/simulator"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type startTransactionBody struct {
	IdTag       string `json:"idTag" validate:"required,max=20"`
	ConnectorId int    `json:"connectorId" validate:"required,gte=1"`
}

type stopTransactionBody struct {
	IdTag string `json:"idTag" validate:"required,max=20"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.writeJSON(w, http.StatusOK, s.cp.Status())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.cp.IsOnline() {
		s.writeError(w, http.StatusBadRequest, "Simulator is already connected")
		return
	}
	if err := s.cp.Connect(context.WithoutCancel(r.Context())); err != nil {
		if errors.Is(err, simulator.ErrAlreadyConnected) {
			s.writeError(w, http.StatusBadRequest, "Simulator is already connected")
			return
		}
		s.logger.Error("api: connect", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to connect simulator")
		return
	}
	s.writeJSON(w, http.StatusOK, "Connected")
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := s.cp.Disconnect(r.Context()); err != nil {
		s.logger.Error("api: disconnect", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to disconnect simulator")
		return
	}
	s.writeJSON(w, http.StatusOK, "Disconnected")
}

func (s *Server) handleStartTransaction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body startTransactionBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	result, err := s.cp.StartTransaction(context.WithoutCancel(r.Context()), body.ConnectorId, body.IdTag)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeFlowResult(w, result)
}

func (s *Server) handlePauseTransaction(w http.ResponseWriter, _ *http.Request, transactionId int) {
	if err := s.cp.PauseTransaction(transactionId); err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, "Paused")
}

func (s *Server) handleResumeTransaction(w http.ResponseWriter, _ *http.Request, transactionId int) {
	if err := s.cp.ResumeTransaction(transactionId); err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, "Resumed")
}

func (s *Server) handleStopTransaction(w http.ResponseWriter, r *http.Request, transactionId int) {
	var body stopTransactionBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	result, err := s.cp.StopTransaction(context.WithoutCancel(r.Context()), transactionId, body.IdTag)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeFlowResult(w, result)
}

// writeFlowResult answers with the central system result that decided the flow.
func (s *Server) writeFlowResult(w http.ResponseWriter, result *simulator.FlowResult) {
	status := http.StatusOK
	if !result.Accepted {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, result.Response)
}

func (s *Server) writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, simulator.ErrInvalidConnector):
		s.writeError(w, http.StatusBadRequest, "Invalid connector id")
	case errors.Is(err, simulator.ErrConnectorNotReady):
		s.writeError(w, http.StatusBadRequest, "Connector is not ready for charging")
	case errors.Is(err, simulator.ErrTransactionNotFound):
		s.writeError(w, http.StatusNotFound, "Transaction is not found")
	case errors.Is(err, simulator.ErrTransactionPaused):
		s.writeError(w, http.StatusBadRequest, "Transaction is already paused")
	case errors.Is(err, simulator.ErrTransactionActive):
		s.writeError(w, http.StatusBadRequest, "Transaction is already active")
	default:
		s.logger.Error("api: transaction flow", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to perform transaction")
	}
}
