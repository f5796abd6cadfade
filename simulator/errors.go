package simulator

import "errors"

var (
	ErrAlreadyConnected    = errors.New("simulator is already connected")
	ErrNotConnected        = errors.New("simulator is disconnected")
	ErrNotRegistered       = errors.New("simulator is not registered by central system")
	ErrInvalidConnector    = errors.New("invalid connector id")
	ErrConnectorNotReady   = errors.New("connector is not ready for charging")
	ErrTransactionNotFound = errors.New("transaction is not found")
	ErrTransactionPaused   = errors.New("transaction is already paused")
	ErrTransactionActive   = errors.New("transaction is already active")
	ErrTransactionFailed   = errors.New("failed to perform transaction")
	ErrRequestTimeout      = errors.New("request timed out")
	ErrConnectionClosed    = errors.New("connection closed")
)
