package server

import (
	"encoding/json"
	"errors"
	"evsim/ocpp"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
)

const maxBodySize = 1 << 16

type transactionHandle func(w http.ResponseWriter, r *http.Request, transactionId int)

type errorResponse struct {
	Error string `json:"error"`
}

type invalidPayloadResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func (s *Server) online(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		if !s.cp.IsOnline() {
			s.writeError(w, http.StatusBadRequest, "Simulator is disconnected")
			return
		}
		next(w, r, params)
	}
}

func (s *Server) registered(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		if !s.cp.IsRegistered() {
			s.writeError(w, http.StatusBadRequest, "Simulator is not registered by CPMS")
			return
		}
		next(w, r, params)
	}
}

// transactionId parses the path parameter; lookup is left to the simulator.
func (s *Server) transactionId(next transactionHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		id, err := strconv.Atoi(params.ByName("transactionId"))
		if err != nil || id < 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid transaction id")
			return
		}
		next(w, r, id)
	}
}

// decodeBody reads a JSON body into v and validates its tags, answering 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: error reading body from %s: %s", r.RemoteAddr, err))
		s.writeInvalidPayload(w, []string{err.Error()})
		return false
	}
	if err = json.Unmarshal(body, v); err != nil {
		s.writeInvalidPayload(w, []string{err.Error()})
		return false
	}
	if err = ocpp.Validator().Struct(v); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			s.writeInvalidPayload(w, []string{err.Error()})
			return false
		}
		messages := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			messages = append(messages, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
		s.writeInvalidPayload(w, messages)
		return false
	}
	return true
}

func (s *Server) writeInvalidPayload(w http.ResponseWriter, messages []string) {
	s.writeJSON(w, http.StatusBadRequest, invalidPayloadResponse{Message: "Invalid payload", Errors: messages})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("api: encoding response", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(data); err != nil {
		s.logger.Warn(fmt.Sprintf("api: error writing response: %s", err))
	}
}
