package simulator

import (
	"context"
	"evsim/configuration"
	"evsim/connector"
	"evsim/internal"
	"evsim/ocpp"
	"evsim/ocpp/core"
	"evsim/transaction"
	"fmt"
	"math"
)

// FlowResult is the outcome of a transaction flow that reached the central system.
// Response is the result that decided the flow, reported back to the operator as is.
type FlowResult struct {
	Accepted      bool
	TransactionId int
	Response      *ocpp.CallResult
}

// StartTransaction authorizes idTag and starts a transaction on the connector.
func (s *Simulator) StartTransaction(ctx context.Context, connectorId int, idTag string) (*FlowResult, error) {
	c, ok := s.Connector(connectorId)
	if !ok {
		return nil, ErrInvalidConnector
	}
	if !c.TryPrepare() {
		return nil, ErrConnectorNotReady
	}

	if err := s.SendStatusNotification(ctx, c); err != nil {
		return nil, s.fault(ctx, c, err)
	}

	authResult, authorized, err := s.authorize(ctx, connectorId, idTag)
	if err != nil {
		return nil, s.fault(ctx, c, err)
	}
	if !authorized {
		if err = s.changeStatus(ctx, c, core.ChargePointStatusAvailable); err != nil {
			return nil, s.fault(ctx, c, err)
		}
		return &FlowResult{Response: authResult}, nil
	}

	meterStart := int(math.Round(c.TotalEnergyImportedWh()))
	startResult, err := s.SendRequest(ctx, core.NewStartTransactionRequest(connectorId, idTag, meterStart))
	if err != nil {
		return nil, s.fault(ctx, c, err)
	}
	response := &core.StartTransactionResponse{}
	if err = ocpp.ValidatePayload(startResult.Payload, response); err != nil {
		return nil, s.fault(ctx, c, err)
	}
	if !response.IdTagInfo.IsAccepted() {
		if err = s.changeStatus(ctx, c, core.ChargePointStatusAvailable); err != nil {
			return nil, s.fault(ctx, c, err)
		}
		return &FlowResult{TransactionId: response.TransactionId, Response: startResult}, nil
	}

	if err = s.changeStatus(ctx, c, core.ChargePointStatusCharging); err != nil {
		return nil, s.fault(ctx, c, err)
	}

	tx := transaction.New(transaction.Options{
		TransactionId:        response.TransactionId,
		Connector:            c,
		IdTag:                idTag,
		SampleInterval:       s.config.IntValue(configuration.KeyMeterValueSampleInterval, 0),
		ClockAlignedInterval: s.config.IntValue(configuration.KeyClockAlignedDataInterval, 0),
		TimeUnit:             s.timeUnit,
		Sender:               s,
		Logger:               s.logger,
		ChargePointId:        s.identity,
		Random:               s.random,
	})
	tx.Start()
	s.AddTransaction(tx)

	s.logger.FeatureEvent(core.StartTransactionFeatureName, s.identity, fmt.Sprintf("transaction %d started on connector %d", tx.Id(), connectorId))
	if s.events != nil {
		s.events.OnTransactionStart(&internal.EventMessage{
			ChargePointId: s.identity,
			ConnectorId:   connectorId,
			IdTag:         idTag,
			TransactionId: tx.Id(),
			Payload:       meterStart,
		})
	}
	return &FlowResult{Accepted: true, TransactionId: tx.Id(), Response: startResult}, nil
}

// StopTransaction ends the transaction locally. A foreign idTag is authorized first.
func (s *Simulator) StopTransaction(ctx context.Context, transactionId int, idTag string) (*FlowResult, error) {
	tx, ok := s.Transaction(transactionId)
	if !ok {
		return nil, ErrTransactionNotFound
	}
	c := tx.Connector()

	if idTag != tx.IdTag() {
		authResult, authorized, err := s.authorize(ctx, c.Id(), idTag)
		if err != nil {
			return nil, s.fault(ctx, c, err)
		}
		if !authorized && s.config.Value(configuration.KeyStopTransactionOnInvalidId) == "false" {
			return &FlowResult{TransactionId: transactionId, Response: authResult}, nil
		}
	}

	if err := s.changeStatus(ctx, c, core.ChargePointStatusFinishing); err != nil {
		return nil, s.fault(ctx, c, err)
	}
	tx.Stop()

	stopResult, response, err := s.stopTransaction(ctx, tx, core.ReasonLocal)
	if err != nil {
		s.RemoveTransaction(transactionId)
		return nil, s.fault(ctx, c, err)
	}
	accepted := stopAccepted(response)

	err = s.changeStatus(ctx, c, core.ChargePointStatusAvailable)
	s.RemoveTransaction(transactionId)
	if err != nil {
		return nil, s.fault(ctx, c, err)
	}

	s.logger.FeatureEvent(core.StopTransactionFeatureName, s.identity, fmt.Sprintf("transaction %d stopped, accepted: %v", transactionId, accepted))
	if s.events != nil {
		s.events.OnTransactionStop(&internal.EventMessage{
			ChargePointId: s.identity,
			ConnectorId:   c.Id(),
			IdTag:         idTag,
			TransactionId: transactionId,
			Payload:       c.TotalEnergyImportedWh(),
		})
	}
	return &FlowResult{Accepted: accepted, TransactionId: transactionId, Response: stopResult}, nil
}

// PauseTransaction keeps the transaction open but reports no current until resumed.
func (s *Simulator) PauseTransaction(transactionId int) error {
	tx, ok := s.Transaction(transactionId)
	if !ok {
		return ErrTransactionNotFound
	}
	if !tx.IsActive() {
		return ErrTransactionPaused
	}
	tx.Pause()
	s.notifyAsync(tx.Connector(), core.ChargePointStatusSuspendedEV)
	return nil
}

func (s *Simulator) ResumeTransaction(transactionId int) error {
	tx, ok := s.Transaction(transactionId)
	if !ok {
		return ErrTransactionNotFound
	}
	if tx.IsActive() {
		return ErrTransactionActive
	}
	tx.Resume()
	s.notifyAsync(tx.Connector(), core.ChargePointStatusCharging)
	return nil
}

func (s *Simulator) changeStatus(ctx context.Context, c *connector.Connector, status core.ChargePointStatus) error {
	c.SetStatus(status)
	return s.SendStatusNotification(ctx, c)
}

// notifyAsync sets the status at once and reports it without holding up the caller.
func (s *Simulator) notifyAsync(c *connector.Connector, status core.ChargePointStatus) {
	c.SetStatus(status)
	go func() {
		if err := s.SendStatusNotification(context.Background(), c); err != nil {
			s.logger.Warn(fmt.Sprintf("%s: status notification not delivered: %s", s.identity, err))
		}
	}()
}

// fault marks the connector Faulted after an unexpected failure and wraps the cause.
func (s *Simulator) fault(ctx context.Context, c *connector.Connector, cause error) error {
	s.logger.Error(fmt.Sprintf("transaction flow on connector %d", c.Id()), cause)
	if err := s.changeStatus(ctx, c, core.ChargePointStatusFaulted); err != nil {
		s.logger.Warn(fmt.Sprintf("%s: status notification not delivered: %s", s.identity, err))
	}
	return fmt.Errorf("%w: %w", ErrTransactionFailed, cause)
}

func (s *Simulator) authorize(ctx context.Context, connectorId int, idTag string) (*ocpp.CallResult, bool, error) {
	result, err := s.SendRequest(ctx, core.NewAuthorizeRequest(idTag))
	if err != nil {
		return nil, false, err
	}
	response := &core.AuthorizeResponse{}
	if err = ocpp.ValidatePayload(result.Payload, response); err != nil {
		return nil, false, err
	}
	accepted := response.IdTagInfo.IsAccepted()
	if s.events != nil {
		s.events.OnAuthorize(&internal.EventMessage{
			ChargePointId: s.identity,
			ConnectorId:   connectorId,
			IdTag:         idTag,
			Status:        string(response.IdTagInfo.Status),
		})
	}
	return result, accepted, nil
}

// stopTransaction reports the final meter reading with the transaction data collected so far.
func (s *Simulator) stopTransaction(ctx context.Context, tx *transaction.Transaction, reason core.Reason) (*ocpp.CallResult, *core.StopTransactionResponse, error) {
	meterStop := int(math.Round(tx.Connector().TotalEnergyImportedWh()))
	request := core.NewStopTransactionRequest(tx.Id(), tx.IdTag(), meterStop, reason, tx.TransactionData())
	result, err := s.SendRequest(ctx, request)
	if err != nil {
		return nil, nil, err
	}
	response := &core.StopTransactionResponse{}
	if err = ocpp.ValidatePayload(result.Payload, response); err != nil {
		return nil, nil, err
	}
	return result, response, nil
}

// stopAccepted treats a result without idTagInfo as accepted.
func stopAccepted(response *core.StopTransactionResponse) bool {
	if response == nil {
		return false
	}
	return response.IdTagInfo == nil || response.IdTagInfo.IsAccepted()
}
