package configuration

import (
	"evsim/internal/config"
	"evsim/ocpp/core"
	"strconv"
)

const (
	KeyHeartbeatInterval               = "HeartbeatInterval"
	KeyChargePointVendor               = "ChargePointVendor"
	KeyConnectors                      = "Connectors"
	KeyFirmwareVersion                 = "FirmwareVersion"
	KeyWebSocketPingInterval           = "WebSocketPingInterval"
	KeyWebSocketUrl                    = "WebSocketUrl"
	KeyChargePointSerialNumber         = "ChargePointSerialNumber"
	KeyGetConfigurationMaxKeys         = "GetConfigurationMaxKeys"
	KeyMeterValuesSampledData          = "MeterValuesSampledData"
	KeyAuthorizeRemoteTxRequests       = "AuthorizeRemoteTxRequests"
	KeyConnectorPhaseRotation          = "ConnectorPhaseRotation"
	KeyConnectorPhaseRotationMaxLength = "ConnectorPhaseRotationMaxLength"
	KeyMeterValuesAlignedData          = "MeterValuesAlignedData"
	KeyMeterValuesAlignedDataMaxLength = "MeterValuesAlignedDataMaxLength"
	KeyMeterValuesSampledDataMaxLength = "MeterValuesSampledDataMaxLength"
	KeyMeterValueSampleInterval        = "MeterValueSampleInterval"
	KeyClockAlignedDataInterval        = "ClockAlignedDataInterval"
	KeyStopTxnSampledData              = "StopTxnSampledData"
	KeyStopTransactionOnInvalidId      = "StopTransactionOnInvalidId"
)

const DefaultConnectors = `{"connectors":[{"maxCurrent":32,"pos":1,"type":"Type2"},{"maxCurrent":500,"pos":2,"type":"CCS2"}]}`

func entry(key, value string, readonly bool) core.ConfigurationKey {
	return core.ConfigurationKey{Key: key, Value: &value, Readonly: readonly}
}

// DefaultCatalog returns the charge point configuration keys in reporting order.
func DefaultCatalog(conf *config.Config) []core.ConfigurationKey {
	cp := conf.ChargePoint
	return []core.ConfigurationKey{
		entry(KeyHeartbeatInterval, "1800", false),
		entry(KeyChargePointVendor, cp.Vendor, true),
		entry(KeyConnectors, DefaultConnectors, true),
		entry(KeyFirmwareVersion, cp.FirmwareVersion, true),
		entry(KeyWebSocketPingInterval, strconv.Itoa(cp.WebSocketPingInterval), false),
		entry(KeyWebSocketUrl, cp.WebSocketUrl, true),
		entry(KeyChargePointSerialNumber, cp.SerialNumber, true),
		entry(KeyGetConfigurationMaxKeys, "100", false),
		entry(KeyMeterValuesSampledData, "Current.Import,Energy.Active.Import.Register,Power.Active.Import,Voltage", true),
		entry(KeyAuthorizeRemoteTxRequests, "false", false),
		entry(KeyConnectorPhaseRotation, "0.RST,1.RST,2.NotApplicable", true),
		entry(KeyConnectorPhaseRotationMaxLength, "5", true),
		entry(KeyMeterValuesAlignedData, "Energy.Active.Import.Register", true),
		entry(KeyMeterValuesAlignedDataMaxLength, "6", true),
		entry(KeyMeterValuesSampledDataMaxLength, "6", true),
		entry(KeyMeterValueSampleInterval, "60", false),
		entry(KeyClockAlignedDataInterval, "900", false),
		entry(KeyStopTxnSampledData, "Energy.Active.Import.Register", true),
		entry(KeyStopTransactionOnInvalidId, "false", true),
	}
}
