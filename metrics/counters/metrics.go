package counters

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectionGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "simulator",
	Name:      "connection_up",
	Help:      "1 while the charge point is connected to the central system",
}, []string{"charge_point_id"})

var registrationGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "simulator",
	Name:      "registration_accepted",
	Help:      "1 while the boot notification is accepted",
}, []string{"charge_point_id"})

var activeTransactionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "simulator",
	Name:      "transactions_active",
	Help:      "Number of transactions in progress",
}, []string{"charge_point_id"})

var energyGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "simulator",
	Name:      "energy_imported_wh",
	Help:      "Cumulative imported energy per connector",
}, []string{"charge_point_id", "connector_id"})

var pendingGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "ocpp",
	Name:      "pending_requests",
	Help:      "Requests waiting for a response",
}, []string{"charge_point_id"})

var timeoutCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "request_timeouts_total",
	Help:      "Requests that got no response in time",
}, []string{"charge_point_id", "action"})

var messageCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "messages_total",
	Help:      "Messages by direction and type",
}, []string{"charge_point_id", "direction", "type"})

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func ObserveConnection(chargePointId string, up bool) {
	if len(chargePointId) == 0 {
		return
	}
	connectionGauge.With(prometheus.Labels{"charge_point_id": chargePointId}).Set(boolValue(up))
}

func ObserveRegistration(chargePointId string, accepted bool) {
	if len(chargePointId) == 0 {
		return
	}
	registrationGauge.With(prometheus.Labels{"charge_point_id": chargePointId}).Set(boolValue(accepted))
}

func ObserveTransactions(chargePointId string, count int) {
	if len(chargePointId) == 0 {
		return
	}
	activeTransactionsGauge.With(prometheus.Labels{"charge_point_id": chargePointId}).Set(float64(count))
}

func ObserveEnergy(chargePointId string, connectorId int, energy float64) {
	if len(chargePointId) == 0 {
		return
	}
	energyGauge.With(prometheus.Labels{
		"charge_point_id": chargePointId,
		"connector_id":    strconv.Itoa(connectorId),
	}).Set(energy)
}

func ObservePending(chargePointId string, count int) {
	if len(chargePointId) == 0 {
		return
	}
	pendingGauge.With(prometheus.Labels{"charge_point_id": chargePointId}).Set(float64(count))
}

func CountTimeout(chargePointId, action string) {
	if len(chargePointId) == 0 || len(action) == 0 {
		return
	}
	timeoutCounter.With(prometheus.Labels{"charge_point_id": chargePointId, "action": action}).Inc()
}

func CountMessage(chargePointId, direction, messageType string) {
	if len(chargePointId) == 0 || len(direction) == 0 || len(messageType) == 0 {
		return
	}
	messageCounter.With(prometheus.Labels{
		"charge_point_id": chargePointId,
		"direction":       direction,
		"type":            messageType,
	}).Inc()
}
