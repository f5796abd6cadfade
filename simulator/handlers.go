package simulator

import (
	"context"
	"evsim/configuration"
	"evsim/ocpp/core"
	"fmt"
	"strconv"
	"time"
)

const closeTimeout = 10 * time.Second

func (s *Simulator) handleGetConfiguration(uniqueId string, request *core.GetConfigurationRequest) {
	maxKeys := s.config.IntValue(configuration.KeyGetConfigurationMaxKeys, 100)

	var known []core.ConfigurationKey
	var unknown []string
	if len(request.Key) == 0 {
		known = s.config.Configuration()
	} else {
		for _, key := range request.Key {
			if item, ok := s.config.Get(key); ok {
				known = append(known, item)
			} else {
				unknown = append(unknown, key)
			}
		}
	}
	if maxKeys >= 0 && len(known) > maxKeys {
		known = known[:maxKeys]
	}

	s.logger.FeatureEvent(request.GetFeatureName(), s.identity, fmt.Sprintf("reported %d keys, %d unknown", len(known), len(unknown)))
	s.sendResult(uniqueId, core.NewGetConfigurationResponse(known, unknown))
}

func (s *Simulator) handleChangeConfiguration(uniqueId string, request *core.ChangeConfigurationRequest) {
	status := s.changeConfiguration(request.Key, request.Value)
	s.logger.FeatureEvent(request.GetFeatureName(), s.identity, fmt.Sprintf("%s=%s: %s", request.Key, request.Value, status))
	s.sendResult(uniqueId, core.NewChangeConfigurationResponse(status))
}

func (s *Simulator) changeConfiguration(key, value string) core.ConfigurationStatus {
	item, ok := s.config.Get(key)
	if !ok {
		return core.ConfigurationStatusNotSupported
	}
	if item.Readonly || !s.config.Validate(key, value) {
		return core.ConfigurationStatusRejected
	}
	if !s.config.Set(key, value) {
		return core.ConfigurationStatusRejected
	}
	if key == configuration.KeyHeartbeatInterval {
		if interval, err := strconv.Atoi(value); err == nil {
			s.setHeartbeatInterval(interval)
		}
	}
	return core.ConfigurationStatusAccepted
}

// handleReset ends every transaction, takes the connectors out of service, confirms the reset
// and reconnects. It runs off the reader goroutine because it waits for results.
func (s *Simulator) handleReset(uniqueId string, request *core.ResetRequest) {
	ctx := context.Background()
	reason := request.StopReason()
	s.logger.FeatureEvent(request.GetFeatureName(), s.identity, fmt.Sprintf("%s reset requested", request.Type))

	for _, tx := range s.Transactions() {
		c := tx.Connector()
		c.SetStatus(core.ChargePointStatusFinishing)
		if err := s.SendStatusNotification(ctx, c); err != nil {
			s.logger.Warn(fmt.Sprintf("%s: status notification not delivered: %s", s.identity, err))
		}
		tx.Stop()
		_, response, err := s.stopTransaction(ctx, tx, reason)
		s.RemoveTransaction(tx.Id())
		if err != nil {
			s.logger.Error(fmt.Sprintf("stop transaction %d on reset", tx.Id()), err)
			continue
		}
		if !stopAccepted(response) {
			s.logger.Warn(fmt.Sprintf("%s: transaction %d stop not accepted", s.identity, tx.Id()))
		}
	}

	for _, c := range s.connectors {
		c.Update(core.ChargePointStatusUnavailable, false)
		if err := s.SendStatusNotification(ctx, c); err != nil {
			s.logger.Warn(fmt.Sprintf("%s: status notification not delivered: %s", s.identity, err))
		}
	}

	s.sendResult(uniqueId, core.NewResetResponse(core.ResetStatusAccepted))
	time.Sleep(s.resetDelay)

	closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := s.Disconnect(closeCtx); err != nil {
		s.logger.Error("reset: disconnect", err)
	}
	if err := s.Connect(ctx); err != nil {
		s.logger.Error("reset: connect", err)
	}
}
