package ocpp

type ErrorCode string

const (
	NotImplemented                ErrorCode = "NotImplemented"
	NotSupported                  ErrorCode = "NotSupported"
	InternalError                 ErrorCode = "InternalError"
	ProtocolError                 ErrorCode = "ProtocolError"
	SecurityError                 ErrorCode = "SecurityError"
	FormationViolation            ErrorCode = "FormationViolation"
	PropertyConstraintViolation   ErrorCode = "PropertyConstraintViolation"
	OccurrenceConstraintViolation ErrorCode = "OccurrenceConstraintViolation"
	TypeConstraintViolation       ErrorCode = "TypeConstraintViolation"
	GenericError                  ErrorCode = "GenericError"
)

// Constraint names produced by payload decoding, next to the validator tags.
const (
	ConstraintType     = "type"
	ConstraintDateTime = "datetime"
	ConstraintCustom   = "custom"
)

// MapConstraintToErrorCode translates the name of the first failed constraint into an OCPP error code.
func MapConstraintToErrorCode(constraint string) ErrorCode {
	switch constraint {
	case "max", "min", "len", "oneof", "unique", "datetime", "url", "uri", "email", "uuid", "uuid4", "alphanum":
		return FormationViolation
	case "type", "number", "numeric", "boolean", "string", "int":
		return TypeConstraintViolation
	case "required":
		return ProtocolError
	case "custom":
		return NotImplemented
	default:
		return GenericError
	}
}
