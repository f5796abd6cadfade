package simulator

import (
	"context"
	"encoding/json"
	"evsim/metrics/counters"
	"evsim/ocpp"
	"fmt"
	"time"
)

const (
	directionIn  = "in"
	directionOut = "out"

	messageCall       = "Call"
	messageCallResult = "CallResult"
	messageCallError  = "CallError"
)

type reply struct {
	result *ocpp.CallResult
	err    error
}

type pendingRequest struct {
	call  *ocpp.Call
	reply chan reply
}

// SendRequest wraps the request into a Call and waits for the matching result.
func (s *Simulator) SendRequest(ctx context.Context, request ocpp.Request) (*ocpp.CallResult, error) {
	call, err := ocpp.NewCall(request)
	if err != nil {
		return nil, err
	}
	return s.SendCall(ctx, call)
}

// SendCall registers the call as pending, writes it and blocks until a result, a call error,
// the request timeout or ctx cancellation, whichever comes first.
func (s *Simulator) SendCall(ctx context.Context, call *ocpp.Call) (*ocpp.CallResult, error) {
	data, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", call.Action, err)
	}

	waiter := s.addPending(call)
	if err = s.client.Send(data); err != nil {
		s.takePending(call.UniqueId)
		return nil, fmt.Errorf("sending %s: %w", call.Action, err)
	}
	counters.CountMessage(s.identity, directionOut, messageCall)

	timer := time.NewTimer(s.requestTimeout)
	defer timer.Stop()

	select {
	case r := <-waiter:
		return r.result, r.err
	case <-timer.C:
		s.takePending(call.UniqueId)
		counters.CountTimeout(s.identity, call.Action)
		return nil, fmt.Errorf("%w: %s %s", ErrRequestTimeout, call.Action, call.UniqueId)
	case <-ctx.Done():
		s.takePending(call.UniqueId)
		return nil, ctx.Err()
	}
}

func (s *Simulator) addPending(call *ocpp.Call) chan reply {
	waiter := make(chan reply, 1)
	s.pendingMutex.Lock()
	s.pending[call.UniqueId] = &pendingRequest{call: call, reply: waiter}
	count := len(s.pending)
	s.pendingMutex.Unlock()
	counters.ObservePending(s.identity, count)
	return waiter
}

// takePending removes the entry, so only one of result, error or timeout ever resolves it.
func (s *Simulator) takePending(uniqueId string) *pendingRequest {
	s.pendingMutex.Lock()
	entry, ok := s.pending[uniqueId]
	if ok {
		delete(s.pending, uniqueId)
	}
	count := len(s.pending)
	s.pendingMutex.Unlock()
	counters.ObservePending(s.identity, count)
	if !ok {
		return nil
	}
	return entry
}

// releasePending fails every waiter and leaves an empty table.
func (s *Simulator) releasePending() {
	s.pendingMutex.Lock()
	released := s.pending
	s.pending = make(map[string]*pendingRequest)
	s.pendingMutex.Unlock()
	counters.ObservePending(s.identity, 0)
	for _, entry := range released {
		entry.reply <- reply{err: fmt.Errorf("%w: %s %s", ErrConnectionClosed, entry.call.Action, entry.call.UniqueId)}
	}
}

func (s *Simulator) pendingCount() int {
	s.pendingMutex.Lock()
	defer s.pendingMutex.Unlock()
	return len(s.pending)
}

func (s *Simulator) sendResult(uniqueId string, response ocpp.Response) {
	result, err := ocpp.NewCallResult(uniqueId, response)
	if err != nil {
		s.logger.Error(fmt.Sprintf("encoding %s result", response.GetFeatureName()), err)
		return
	}
	s.write(messageCallResult, result)
}

func (s *Simulator) sendCallError(callError *ocpp.CallError) {
	s.write(messageCallError, callError)
}

func (s *Simulator) write(messageType string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("encoding "+messageType, err)
		return
	}
	if err = s.client.Send(data); err != nil {
		s.logger.Error("sending "+messageType, err)
		return
	}
	counters.CountMessage(s.identity, directionOut, messageType)
}
