package simulator

import (
	"context"
	"encoding/json"
	"evsim/configuration"
	"evsim/ocpp"
	"evsim/ocpp/core"
	"evsim/types"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// authorizeOnly accepts the listed id tags and blocks every other one.
func authorizeOnly(tags ...string) responder {
	return func(call *ocpp.Call) interface{} {
		var request core.AuthorizeRequest
		_ = json.Unmarshal(call.Payload, &request)
		status := types.AuthorizationStatusBlocked
		for _, tag := range tags {
			if tag == request.IdTag {
				status = types.AuthorizationStatusAccepted
			}
		}
		return core.NewAuthorizationResponse(types.NewIdTagInfo(status))
	}
}

func startCharging(t *testing.T, sim *Simulator) *FlowResult {
	result, err := sim.StartTransaction(context.Background(), 1, "TAG1")
	require.NoError(t, err)
	require.True(t, result.Accepted)
	return result
}

func TestStartAndStopTransaction(t *testing.T) {
	cs := newFakeCentralSystem(t)
	sim := newTestSimulator(t, cs, 300*time.Millisecond)
	connectRegistered(t, cs, sim)

	result := startCharging(t, sim)
	assert.Equal(t, 42, result.TransactionId)
	require.NotNil(t, result.Response)
	var started core.StartTransactionResponse
	decode(t, result.Response.Payload, &started)
	assert.Equal(t, 42, started.TransactionId)

	c, _ := sim.Connector(1)
	assert.Equal(t, core.ChargePointStatusCharging, c.Status())
	assert.Equal(t, []core.ChargePointStatus{
		core.ChargePointStatusAvailable,
		core.ChargePointStatusPreparing,
		core.ChargePointStatusCharging,
	}, cs.statuses(1))

	var start core.StartTransactionRequest
	decode(t, cs.callsFor(core.StartTransactionFeatureName)[0].Payload, &start)
	assert.Equal(t, 1, start.ConnectorId)
	assert.Equal(t, "TAG1", start.IdTag)
	assert.Equal(t, 0, start.MeterStart)

	tx, ok := sim.Transaction(42)
	require.True(t, ok)
	assert.True(t, tx.IsActive())

	meterValues := cs.waitCalls(t, core.MeterValuesFeatureName, 3)
	var first core.MeterValuesRequest
	decode(t, meterValues[0].Payload, &first)
	assert.Equal(t, 42, *first.TransactionId)
	assert.Equal(t, types.ReadingContextTransactionBegin, first.MeterValue[0].SampledValue[0].Context)

	_, err := sim.StartTransaction(context.Background(), 1, "TAG1")
	assert.ErrorIs(t, err, ErrConnectorNotReady)

	stopped, err := sim.StopTransaction(context.Background(), 42, "TAG1")
	require.NoError(t, err)
	assert.True(t, stopped.Accepted)
	assert.Len(t, cs.callsFor(core.AuthorizeFeatureName), 1)

	var stop core.StopTransactionRequest
	decode(t, cs.callsFor(core.StopTransactionFeatureName)[0].Payload, &stop)
	assert.Equal(t, 42, stop.TransactionId)
	assert.Equal(t, core.ReasonLocal, stop.Reason)
	assert.Equal(t, "TAG1", stop.IdTag)
	require.NotEmpty(t, stop.TransactionData)
	for _, mv := range stop.TransactionData {
		require.Len(t, mv.SampledValue, 1)
		assert.Equal(t, types.MeasurandEnergyActiveImportRegister, mv.SampledValue[0].Measurand)
	}
	assert.Greater(t, stop.MeterStop, 0)

	_, ok = sim.Transaction(42)
	assert.False(t, ok)
	assert.False(t, tx.IsSampling())
	assert.Equal(t, core.ChargePointStatusAvailable, c.Status())
	statuses := cs.statuses(1)
	assert.Equal(t, []core.ChargePointStatus{core.ChargePointStatusFinishing, core.ChargePointStatusAvailable}, statuses[len(statuses)-2:])
}

func TestStartTransactionAuthorizeBlocked(t *testing.T) {
	cs := newFakeCentralSystem(t)
	cs.on(core.AuthorizeFeatureName, authorizeOnly())
	sim := newTestSimulator(t, cs, 300*time.Millisecond)
	connectRegistered(t, cs, sim)

	result, err := sim.StartTransaction(context.Background(), 1, "TAG1")
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	var response core.AuthorizeResponse
	decode(t, result.Response.Payload, &response)
	assert.Equal(t, types.AuthorizationStatusBlocked, response.IdTagInfo.Status)

	c, _ := sim.Connector(1)
	assert.Equal(t, core.ChargePointStatusAvailable, c.Status())
	statuses := cs.statuses(1)
	assert.Equal(t, []core.ChargePointStatus{core.ChargePointStatusPreparing, core.ChargePointStatusAvailable}, statuses[len(statuses)-2:])
	assert.Empty(t, cs.callsFor(core.StartTransactionFeatureName))
	assert.Empty(t, sim.Transactions())
}

func TestStartTransactionRejected(t *testing.T) {
	cs := newFakeCentralSystem(t)
	cs.on(core.StartTransactionFeatureName, func(call *ocpp.Call) interface{} {
		return map[string]interface{}{"idTagInfo": map[string]string{"status": "Invalid"}, "transactionId": 7}
	})
	sim := newTestSimulator(t, cs, 300*time.Millisecond)
	connectRegistered(t, cs, sim)

	result, err := sim.StartTransaction(context.Background(), 2, "TAG1")
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	c, _ := sim.Connector(2)
	assert.Equal(t, core.ChargePointStatusAvailable, c.Status())
	assert.Empty(t, sim.Transactions())
}

func TestStartTransactionFailureFaultsConnector(t *testing.T) {
	cs := newFakeCentralSystem(t)
	cs.on(core.AuthorizeFeatureName, func(call *ocpp.Call) interface{} { return nil })
	sim := newTestSimulator(t, cs, 100*time.Millisecond)
	connectRegistered(t, cs, sim)

	_, err := sim.StartTransaction(context.Background(), 1, "TAG1")
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.ErrorIs(t, err, ErrRequestTimeout)
	c, _ := sim.Connector(1)
	assert.Equal(t, core.ChargePointStatusFaulted, c.Status())
	cs.waitStatus(t, 1, core.ChargePointStatusFaulted)
}

func TestStartTransactionPreconditions(t *testing.T) {
	cs := newFakeCentralSystem(t)
	sim := newTestSimulator(t, cs, 300*time.Millisecond)

	_, err := sim.StartTransaction(context.Background(), 1, "TAG1")
	assert.ErrorIs(t, err, ErrConnectorNotReady)

	connectRegistered(t, cs, sim)
	_, err = sim.StartTransaction(context.Background(), 9, "TAG1")
	assert.ErrorIs(t, err, ErrInvalidConnector)
	_, err = sim.StartTransaction(context.Background(), 0, "TAG1")
	assert.ErrorIs(t, err, ErrInvalidConnector)
	assert.Empty(t, cs.callsFor(core.AuthorizeFeatureName))
}

func TestConcurrentStartsOnOneConnector(t *testing.T) {
	cs := newFakeCentralSystem(t)
	sim := newTestSimulator(t, cs, 300*time.Millisecond)
	connectRegistered(t, cs, sim)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := sim.StartTransaction(context.Background(), 1, "TAG1")
			if err == nil && !result.Accepted {
				err = assert.AnError
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	started := 0
	for err := range results {
		if err == nil {
			started++
			continue
		}
		assert.ErrorIs(t, err, ErrConnectorNotReady)
	}
	assert.Equal(t, 1, started)
	assert.Len(t, sim.Transactions(), 1)
	assert.Len(t, cs.callsFor(core.StartTransactionFeatureName), 1)
}

func TestStopTransactionForeignTag(t *testing.T) {
	cs := newFakeCentralSystem(t)
	cs.on(core.AuthorizeFeatureName, authorizeOnly("TAG1"))
	sim := newTestSimulator(t, cs, 300*time.Millisecond)
	connectRegistered(t, cs, sim)
	startCharging(t, sim)

	result, err := sim.StopTransaction(context.Background(), 42, "OTHER")
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	tx, ok := sim.Transaction(42)
	require.True(t, ok)
	assert.True(t, tx.IsActive())
	assert.Empty(t, cs.callsFor(core.StopTransactionFeatureName))

	sim.config.Set(configuration.KeyStopTransactionOnInvalidId, "true")
	result, err = sim.StopTransaction(context.Background(), 42, "OTHER")
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	_, ok = sim.Transaction(42)
	assert.False(t, ok)
}

func TestStopTransactionNotAccepted(t *testing.T) {
	cs := newFakeCentralSystem(t)
	cs.on(core.StopTransactionFeatureName, func(call *ocpp.Call) interface{} {
		return map[string]interface{}{"idTagInfo": map[string]string{"status": "Expired"}}
	})
	sim := newTestSimulator(t, cs, 300*time.Millisecond)
	connectRegistered(t, cs, sim)
	startCharging(t, sim)

	result, err := sim.StopTransaction(context.Background(), 42, "TAG1")
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	_, ok := sim.Transaction(42)
	assert.False(t, ok)
	c, _ := sim.Connector(1)
	assert.Equal(t, core.ChargePointStatusAvailable, c.Status())

	_, err = sim.StopTransaction(context.Background(), 42, "TAG1")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestPauseAndResumeTransaction(t *testing.T) {
	cs := newFakeCentralSystem(t)
	sim := newTestSimulator(t, cs, 300*time.Millisecond)
	connectRegistered(t, cs, sim)
	startCharging(t, sim)
	tx, _ := sim.Transaction(42)
	c := tx.Connector()

	require.NoError(t, sim.PauseTransaction(42))
	assert.False(t, tx.IsActive())
	assert.True(t, tx.IsSampling())
	assert.Equal(t, core.ChargePointStatusSuspendedEV, c.Status())
	cs.waitStatus(t, 1, core.ChargePointStatusSuspendedEV)
	assert.ErrorIs(t, sim.PauseTransaction(42), ErrTransactionPaused)

	require.NoError(t, sim.ResumeTransaction(42))
	assert.True(t, tx.IsActive())
	assert.Equal(t, core.ChargePointStatusCharging, c.Status())
	assert.ErrorIs(t, sim.ResumeTransaction(42), ErrTransactionActive)

	assert.ErrorIs(t, sim.PauseTransaction(7), ErrTransactionNotFound)
	assert.ErrorIs(t, sim.ResumeTransaction(7), ErrTransactionNotFound)
}

func TestResetEndsTransactionsAndReconnects(t *testing.T) {
	cs := newFakeCentralSystem(t)
	sim := newTestSimulator(t, cs, 300*time.Millisecond)
	connectRegistered(t, cs, sim)
	startCharging(t, sim)

	id := cs.push(core.ResetFeatureName, `{"type":"Soft"}`)
	var response core.ResetResponse
	decode(t, cs.reply(t, id)[2], &response)
	assert.Equal(t, core.ResetStatusAccepted, response.Status)

	stops := cs.callsFor(core.StopTransactionFeatureName)
	require.Len(t, stops, 1)
	var stop core.StopTransactionRequest
	decode(t, stops[0].Payload, &stop)
	assert.Equal(t, core.ReasonSoftReset, stop.Reason)
	assert.Equal(t, 42, stop.TransactionId)
	assert.Empty(t, sim.Transactions())
	cs.waitStatus(t, 1, core.ChargePointStatusFinishing)
	cs.waitStatus(t, 2, core.ChargePointStatusUnavailable)

	require.Eventually(t, func() bool {
		return len(cs.connections()) == 2 && sim.IsRegistered()
	}, waitFor, 5*time.Millisecond)
	cs.waitCalls(t, core.BootNotificationFeatureName, 2)
	require.Eventually(t, func() bool {
		c, _ := sim.Connector(1)
		return c.Status() == core.ChargePointStatusAvailable
	}, waitFor, 5*time.Millisecond)
}

func TestHardResetReason(t *testing.T) {
	request := &core.ResetRequest{Type: core.ResetTypeHard}
	assert.Equal(t, core.ReasonHardReset, request.StopReason())
	request.Type = core.ResetTypeSoft
	assert.Equal(t, core.ReasonSoftReset, request.StopReason())
}

func TestStopAccepted(t *testing.T) {
	assert.False(t, stopAccepted(nil))
	assert.True(t, stopAccepted(&core.StopTransactionResponse{}))
	assert.True(t, stopAccepted(&core.StopTransactionResponse{IdTagInfo: types.NewIdTagInfo(types.AuthorizationStatusAccepted)}))
	assert.False(t, stopAccepted(&core.StopTransactionResponse{IdTagInfo: types.NewIdTagInfo(types.AuthorizationStatusInvalid)}))
}
