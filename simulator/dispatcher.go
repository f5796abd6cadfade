package simulator

import (
	"encoding/json"
	"evsim/metrics/counters"
	"evsim/ocpp"
	"evsim/ocpp/core"
	"fmt"
)

// handleMessage runs on the reader goroutine, one frame at a time in arrival order.
func (s *Simulator) handleMessage(data []byte) {
	callType, fields, err := ocpp.ParseFrame(data)

	// a rejected charge point ignores the central system, results still correlate so the boot retry can succeed
	if s.Registration() == core.RegistrationStatusRejected && (err != nil || callType == ocpp.CallTypeRequest) {
		s.logger.Warn(fmt.Sprintf("%s: registration rejected, message dropped: %s", s.identity, string(data)))
		return
	}
	if err != nil {
		s.logger.Warn(fmt.Sprintf("%s: invalid message dropped: %s", s.identity, err))
		return
	}

	switch callType {
	case ocpp.CallTypeRequest:
		s.handleCall(fields)
	case ocpp.CallTypeResult:
		s.handleCallResult(fields)
	case ocpp.CallTypeError:
		s.handleCallError(fields)
	}
}

func (s *Simulator) handleCall(fields []json.RawMessage) {
	call, err := ocpp.ParseCall(fields)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("%s: invalid call dropped: %s", s.identity, err))
		return
	}
	counters.CountMessage(s.identity, directionIn, messageCall)

	switch call.Action {
	case core.GetConfigurationFeatureName:
		request := &core.GetConfigurationRequest{}
		if s.validateCall(call, request) {
			s.handleGetConfiguration(call.UniqueId, request)
		}
	case core.ChangeConfigurationFeatureName:
		request := &core.ChangeConfigurationRequest{}
		if s.validateCall(call, request) {
			s.handleChangeConfiguration(call.UniqueId, request)
		}
	case core.ResetFeatureName:
		request := &core.ResetRequest{}
		if s.validateCall(call, request) {
			go s.handleReset(call.UniqueId, request)
		}
	default:
		s.logger.FeatureEvent(call.Action, s.identity, "action is not implemented")
		s.sendCallError(ocpp.NewCallError(call.UniqueId, ocpp.NotImplemented, fmt.Sprintf("action %s is not implemented", call.Action), nil))
	}
}

// validateCall decodes the payload into request and answers with a CallError when it does not conform.
func (s *Simulator) validateCall(call *ocpp.Call, request ocpp.Request) bool {
	err := ocpp.ValidatePayload(call.Payload, request)
	if err == nil {
		return true
	}
	s.logger.FeatureEvent(call.Action, s.identity, fmt.Sprintf("invalid request: %s", err))
	s.sendCallError(ocpp.NewCallError(call.UniqueId, ocpp.ErrorCodeOf(err), err.Error(), nil))
	return false
}

func (s *Simulator) handleCallResult(fields []json.RawMessage) {
	result, err := ocpp.ParseCallResult(fields)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("%s: invalid call result dropped: %s", s.identity, err))
		return
	}
	counters.CountMessage(s.identity, directionIn, messageCallResult)

	entry := s.takePending(result.UniqueId)
	if entry == nil {
		s.logger.Warn(fmt.Sprintf("%s: no pending request for result %s", s.identity, result.UniqueId))
		return
	}

	action := entry.call.Action
	switch action {
	case core.BootNotificationFeatureName:
		response := &core.BootNotificationResponse{}
		if !s.validateResult(action, result, response) {
			return
		}
		s.applyBootInterval(*response.Interval)
		s.setRegistration(response.Status)
	case core.AuthorizeFeatureName:
		if !s.validateResult(action, result, &core.AuthorizeResponse{}) {
			return
		}
	case core.StopTransactionFeatureName:
		if !s.validateResult(action, result, &core.StopTransactionResponse{}) {
			return
		}
	}
	entry.reply <- reply{result: result}
}

// validateResult drops a non-conforming result; the waiting caller then runs into its own timeout.
func (s *Simulator) validateResult(action string, result *ocpp.CallResult, response ocpp.Response) bool {
	if err := ocpp.ValidatePayload(result.Payload, response); err != nil {
		s.logger.FeatureEvent(action, s.identity, fmt.Sprintf("invalid result %s dropped: %s", result.UniqueId, err))
		return false
	}
	return true
}

func (s *Simulator) handleCallError(fields []json.RawMessage) {
	callError, err := ocpp.ParseCallError(fields)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("%s: invalid call error dropped: %s", s.identity, err))
		return
	}
	counters.CountMessage(s.identity, directionIn, messageCallError)

	entry := s.takePending(callError.UniqueId)
	if entry == nil {
		s.logger.Warn(fmt.Sprintf("%s: no pending request for %s", s.identity, callError))
		return
	}
	s.logger.FeatureEvent(entry.call.Action, s.identity, callError.Error())
	entry.reply <- reply{err: callError}
}
