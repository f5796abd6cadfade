package ocpp

import (
	"encoding/json"
	"errors"
	"evsim/utility"
	"fmt"
)

type CallType int

const (
	CallTypeRequest CallType = 2
	CallTypeResult  CallType = 3
	CallTypeError   CallType = 4
)

var ErrMalformedMessage = errors.New("malformed message")

// Call An OCPP-J Call message, containing an OCPP Request.
type Call struct {
	TypeId   CallType
	UniqueId string
	Action   string
	Payload  json.RawMessage
}

func (call *Call) GetFeatureName() string {
	return call.Action
}

func (call *Call) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 4)
	fields[0] = int(CallTypeRequest)
	fields[1] = call.UniqueId
	fields[2] = call.Action
	fields[3] = payloadOrEmpty(call.Payload)
	return json.Marshal(fields)
}

// CallResult An OCPP-J CallResult message, containing an OCPP Response.
type CallResult struct {
	TypeId   CallType
	UniqueId string
	Payload  json.RawMessage
}

func (callResult *CallResult) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 3)
	fields[0] = int(CallTypeResult)
	fields[1] = callResult.UniqueId
	fields[2] = payloadOrEmpty(callResult.Payload)
	return json.Marshal(fields)
}

// CallError An OCPP-J CallError message. ErrorDetails holds the details object already encoded as a JSON string.
type CallError struct {
	TypeId           CallType
	UniqueId         string
	ErrorCode        ErrorCode
	ErrorDescription string
	ErrorDetails     string
}

func (callError *CallError) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 5)
	fields[0] = int(CallTypeError)
	fields[1] = callError.UniqueId
	fields[2] = callError.ErrorCode
	fields[3] = callError.ErrorDescription
	fields[4] = callError.ErrorDetails
	return json.Marshal(fields)
}

func (callError *CallError) Error() string {
	if callError.ErrorDescription == "" {
		return fmt.Sprintf("call error %s", callError.ErrorCode)
	}
	return fmt.Sprintf("call error %s: %s", callError.ErrorCode, callError.ErrorDescription)
}

// NewCall builds a Call with a fresh random message id and the action taken from the request.
func NewCall(request Request) (*Call, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", request.GetFeatureName(), err)
	}
	return &Call{
		TypeId:   CallTypeRequest,
		UniqueId: utility.NewUUID(),
		Action:   request.GetFeatureName(),
		Payload:  payload,
	}, nil
}

func NewCallResult(uniqueId string, response Response) (*CallResult, error) {
	payload, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", response.GetFeatureName(), err)
	}
	return &CallResult{
		TypeId:   CallTypeResult,
		UniqueId: uniqueId,
		Payload:  payload,
	}, nil
}

// NewCallError builds a CallError; nil details are encoded as an empty object.
func NewCallError(uniqueId string, code ErrorCode, description string, details map[string]interface{}) *CallError {
	encoded := "{}"
	if len(details) > 0 {
		if data, err := json.Marshal(details); err == nil {
			encoded = string(data)
		}
	}
	return &CallError{
		TypeId:           CallTypeError,
		UniqueId:         uniqueId,
		ErrorCode:        code,
		ErrorDescription: description,
		ErrorDetails:     encoded,
	}
}

// ParseFrame decodes a raw frame into its elements and reports the message type from the first element.
func ParseFrame(data []byte) (CallType, []json.RawMessage, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return 0, nil, fmt.Errorf("%w: not an array: %v", ErrMalformedMessage, err)
	}
	if len(fields) == 0 {
		return 0, nil, fmt.Errorf("%w: empty array", ErrMalformedMessage)
	}
	var typeId int
	if err := json.Unmarshal(fields[0], &typeId); err != nil {
		return 0, nil, fmt.Errorf("%w: invalid message type %s", ErrMalformedMessage, string(fields[0]))
	}
	callType := CallType(typeId)
	switch callType {
	case CallTypeRequest, CallTypeResult, CallTypeError:
		return callType, fields, nil
	default:
		return 0, nil, fmt.Errorf("%w: unsupported message type %d", ErrMalformedMessage, typeId)
	}
}

func ParseCall(fields []json.RawMessage) (*Call, error) {
	if len(fields) != 4 {
		return nil, fmt.Errorf("%w: call expects 4 elements, got %d", ErrMalformedMessage, len(fields))
	}
	uniqueId, err := parseString(fields[1], "unique id")
	if err != nil {
		return nil, err
	}
	action, err := parseString(fields[2], "action")
	if err != nil {
		return nil, err
	}
	return &Call{
		TypeId:   CallTypeRequest,
		UniqueId: uniqueId,
		Action:   action,
		Payload:  fields[3],
	}, nil
}

func ParseCallResult(fields []json.RawMessage) (*CallResult, error) {
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: call result expects 3 elements, got %d", ErrMalformedMessage, len(fields))
	}
	uniqueId, err := parseString(fields[1], "unique id")
	if err != nil {
		return nil, err
	}
	return &CallResult{
		TypeId:   CallTypeResult,
		UniqueId: uniqueId,
		Payload:  fields[2],
	}, nil
}

func ParseCallError(fields []json.RawMessage) (*CallError, error) {
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: call error expects 5 elements, got %d", ErrMalformedMessage, len(fields))
	}
	uniqueId, err := parseString(fields[1], "unique id")
	if err != nil {
		return nil, err
	}
	code, err := parseString(fields[2], "error code")
	if err != nil {
		return nil, err
	}
	// description and details are informative only
	var description string
	_ = json.Unmarshal(fields[3], &description)
	details := string(fields[4])
	var detailsText string
	if json.Unmarshal(fields[4], &detailsText) == nil {
		details = detailsText
	}
	return &CallError{
		TypeId:           CallTypeError,
		UniqueId:         uniqueId,
		ErrorCode:        ErrorCode(code),
		ErrorDescription: description,
		ErrorDetails:     details,
	}, nil
}

func parseString(raw json.RawMessage, name string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: invalid %s %s", ErrMalformedMessage, name, string(raw))
	}
	return s, nil
}

func payloadOrEmpty(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 || string(payload) == "null" {
		return json.RawMessage("{}")
	}
	return payload
}
