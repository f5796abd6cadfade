package connector

import (
	"evsim/ocpp/core"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectorDefaults(t *testing.T) {
	c := New(Options{Id: 1, Type: TypeType2, MaxCurrent: 32})
	assert.Equal(t, 1, c.Id())
	assert.Equal(t, TypeType2, c.Type())
	assert.Equal(t, 32.0, c.MaxCurrent())
	assert.Equal(t, core.ChargePointStatusUnavailable, c.Status())
	assert.Equal(t, core.NoError, c.ErrorCode())
	assert.False(t, c.IsEnabled())
	assert.False(t, c.IsReserved())
	assert.False(t, c.IsReadyToCharge())
	assert.Zero(t, c.TotalEnergyImportedWh())
}

func TestIsReadyToChargeGrid(t *testing.T) {
	statuses := []core.ChargePointStatus{
		core.ChargePointStatusAvailable,
		core.ChargePointStatusPreparing,
		core.ChargePointStatusCharging,
		core.ChargePointStatusSuspendedEV,
		core.ChargePointStatusSuspendedEVSE,
		core.ChargePointStatusFinishing,
		core.ChargePointStatusFaulted,
		core.ChargePointStatusUnavailable,
		core.ChargePointStatusReserved,
	}
	errorCodes := []core.ChargePointErrorCode{core.NoError, core.OtherError, core.GroundFailure}

	c := New(Options{Id: 1, Type: TypeType2, MaxCurrent: 32})
	for _, status := range statuses {
		for _, errorCode := range errorCodes {
			for _, enabled := range []bool{true, false} {
				for _, reserved := range []bool{true, false} {
					c.SetStatus(status)
					c.SetErrorCode(errorCode)
					c.SetEnabled(enabled)
					c.SetReserved(reserved)
					expected := enabled && !reserved && status == core.ChargePointStatusAvailable && errorCode == core.NoError
					assert.Equal(t, expected, c.IsReadyToCharge(), "status=%s error=%s enabled=%v reserved=%v", status, errorCode, enabled, reserved)
				}
			}
		}
	}
}

func TestIncrementTotalImportedEnergy(t *testing.T) {
	c := New(Options{Id: 1, Type: TypeType2, MaxCurrent: 32})
	assert.Equal(t, 20.44, c.IncrementTotalImportedEnergy(20.44))
	assert.Equal(t, 40.88, c.IncrementTotalImportedEnergy(20.44))
	assert.Equal(t, 40.88, c.IncrementTotalImportedEnergy(-5))
	assert.Equal(t, 40.88, c.TotalEnergyImportedWh())
}

func TestUpdate(t *testing.T) {
	c := New(Options{Id: 2})
	c.Update(core.ChargePointStatusAvailable, true)
	assert.True(t, c.IsReadyToCharge())
	c.Update(core.ChargePointStatusUnavailable, false)
	assert.False(t, c.IsReadyToCharge())
}

func TestTryPrepare(t *testing.T) {
	c := New(Options{Id: 1, Type: TypeType2, MaxCurrent: 32})
	assert.False(t, c.TryPrepare())
	assert.Equal(t, core.ChargePointStatusUnavailable, c.Status())

	c.Update(core.ChargePointStatusAvailable, true)
	assert.True(t, c.TryPrepare())
	assert.Equal(t, core.ChargePointStatusPreparing, c.Status())
	assert.False(t, c.TryPrepare())
}

func TestTryPrepareConcurrent(t *testing.T) {
	c := New(Options{Id: 1, Type: TypeType2, MaxCurrent: 32})
	c.Update(core.ChargePointStatusAvailable, true)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryPrepare() {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestParseCatalog(t *testing.T) {
	connectors, err := ParseCatalog(`{"connectors":[{"maxCurrent":500,"pos":2,"type":"CCS2"},{"maxCurrent":32,"pos":1,"type":"Type2"}]}`)
	require.NoError(t, err)
	require.Len(t, connectors, 2)
	assert.Equal(t, 1, connectors[0].Id())
	assert.Equal(t, TypeType2, connectors[0].Type())
	assert.Equal(t, 32.0, connectors[0].MaxCurrent())
	assert.Equal(t, 2, connectors[1].Id())
	assert.Equal(t, TypeCCS2, connectors[1].Type())
	assert.Equal(t, 500.0, connectors[1].MaxCurrent())
}

func TestParseCatalogErrors(t *testing.T) {
	_, err := ParseCatalog(`not json`)
	assert.Error(t, err)

	_, err = ParseCatalog(`{"connectors":[{"maxCurrent":32,"pos":0,"type":"Type2"}]}`)
	assert.Error(t, err)

	_, err = ParseCatalog(`{"connectors":[{"maxCurrent":32,"pos":1},{"maxCurrent":16,"pos":1}]}`)
	assert.Error(t, err)
}
